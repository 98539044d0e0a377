// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import "github.com/pdiddy/evidence-engine/pkg/types"

// The taxonomies are static data tables so the clinical vocabulary can grow
// without touching matching logic. Phrases are matched after normalization
// (lowercase, accents stripped), longest phrase first.

// specialtyEntry maps a clinical phrase to a specialty tag.
type specialtyEntry struct {
	Phrase    string
	Specialty string
}

var specialtyTaxonomy = []specialtyEntry{
	// Musculoskeletal / kinesiology.
	{"rodilla", "kinesiology"},
	{"knee", "kinesiology"},
	{"hombro", "kinesiology"},
	{"shoulder", "kinesiology"},
	{"lumbalgia", "kinesiology"},
	{"low back pain", "kinesiology"},
	{"dolor lumbar", "kinesiology"},
	{"esguince", "kinesiology"},
	{"sprain", "kinesiology"},
	{"tendinitis", "kinesiology"},
	{"artrosis", "kinesiology"},
	{"osteoarthritis", "kinesiology"},
	{"menisco", "kinesiology"},
	{"ligamento cruzado", "kinesiology"},
	{"acl", "kinesiology"},
	{"kinesiologia", "kinesiology"},
	{"fisioterapia", "kinesiology"},
	{"physical therapy", "kinesiology"},
	{"rehabilitacion", "kinesiology"},

	// Cardiology.
	{"hipertension", "cardiology"},
	{"hypertension", "cardiology"},
	{"presion arterial", "cardiology"},
	{"blood pressure", "cardiology"},
	{"insuficiencia cardiaca", "cardiology"},
	{"heart failure", "cardiology"},
	{"arritmia", "cardiology"},
	{"infarto", "cardiology"},
	{"myocardial infarction", "cardiology"},

	// Endocrinology.
	{"diabetes", "endocrinology"},
	{"glicemia", "endocrinology"},
	{"glucose", "endocrinology"},
	{"insulina", "endocrinology"},
	{"insulin", "endocrinology"},
	{"tiroides", "endocrinology"},
	{"thyroid", "endocrinology"},
	{"hipotiroidismo", "endocrinology"},

	// Neurology.
	{"migrana", "neurology"},
	{"migraine", "neurology"},
	{"cefalea", "neurology"},
	{"headache", "neurology"},
	{"epilepsia", "neurology"},
	{"epilepsy", "neurology"},
	{"accidente cerebrovascular", "neurology"},
	{"stroke", "neurology"},
	{"parkinson", "neurology"},

	// Respiratory.
	{"asma", "pulmonology"},
	{"asthma", "pulmonology"},
	{"epoc", "pulmonology"},
	{"copd", "pulmonology"},
	{"neumonia", "pulmonology"},
	{"pneumonia", "pulmonology"},

	// Mental health.
	{"depresion", "psychiatry"},
	{"depression", "psychiatry"},
	{"ansiedad", "psychiatry"},
	{"anxiety", "psychiatry"},
	{"insomnio", "psychiatry"},
	{"insomnia", "psychiatry"},
}

// intentEntry maps a question phrase to an intent.
type intentEntry struct {
	Phrase string
	Intent types.Intent
}

var intentTaxonomy = []intentEntry{
	{"tratamiento", types.IntentTreatment},
	{"treatment", types.IntentTreatment},
	{"terapia", types.IntentTreatment},
	{"therapy", types.IntentTreatment},
	{"manejo", types.IntentTreatment},
	{"management", types.IntentTreatment},
	{"medicamento", types.IntentTreatment},
	{"farmaco", types.IntentTreatment},
	{"dosis", types.IntentTreatment},
	{"ejercicio", types.IntentTreatment},
	{"exercise", types.IntentTreatment},

	{"diagnostico", types.IntentDiagnosis},
	{"diagnosis", types.IntentDiagnosis},
	{"como detectar", types.IntentDiagnosis},
	{"sintomas de", types.IntentDiagnosis},
	{"signs of", types.IntentDiagnosis},
	{"criterios", types.IntentDiagnosis},
	{"screening", types.IntentDiagnosis},

	{"pronostico", types.IntentPrognosis},
	{"prognosis", types.IntentPrognosis},
	{"evolucion", types.IntentPrognosis},
	{"sobrevida", types.IntentPrognosis},
	{"survival", types.IntentPrognosis},
	{"riesgo de", types.IntentPrognosis},
	{"risk of", types.IntentPrognosis},

	{"seguimiento", types.IntentFollowUp},
	{"follow up", types.IntentFollowUp},
	{"follow-up", types.IntentFollowUp},
	{"control", types.IntentFollowUp},
	{"rehabilitacion post", types.IntentFollowUp},
}

// stopwords are tokens excluded from the meaningful-token count when
// computing confidence.
var stopwords = map[string]struct{}{
	// Spanish.
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {},
	"de": {}, "del": {}, "en": {}, "y": {}, "o": {}, "que": {}, "con": {},
	"para": {}, "por": {}, "es": {}, "se": {}, "al": {}, "como": {},
	"cual": {}, "su": {}, "mi": {}, "tiene": {}, "hay": {},
	// English.
	"the": {}, "a": {}, "an": {}, "of": {}, "in": {}, "on": {}, "and": {},
	"or": {}, "for": {}, "to": {}, "is": {}, "are": {}, "what": {},
	"which": {}, "with": {}, "how": {}, "my": {}, "has": {}, "have": {},
}
