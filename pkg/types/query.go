// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Intent categorizes what the clinician is asking for.
type Intent string

const (
	IntentTreatment Intent = "treatment"
	IntentDiagnosis Intent = "diagnosis"
	IntentPrognosis Intent = "prognosis"
	IntentFollowUp  Intent = "follow_up"
	IntentUnknown   Intent = "unknown"
)

// Query is the analyzed form of a free-text clinical question. It is
// immutable after analysis; the orchestrator owns it for the request lifetime.
type Query struct {
	// Raw is the original query text.
	Raw string `json:"raw" yaml:"raw"`

	// Entities lists recognized clinical phrases (symptoms, conditions,
	// anatomy) in order of first appearance.
	Entities []string `json:"entities" yaml:"entities"`

	// Specialty is the inferred clinical specialty tag, "general" when
	// nothing matched.
	Specialty string `json:"specialty" yaml:"specialty"`

	// Intent is the inferred question intent.
	Intent Intent `json:"intent" yaml:"intent"`

	// Confidence is the fraction of meaningful tokens the analyzer
	// recognized, in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Degraded is set when analysis soft-failed and the defaults above are
	// in effect. It is informational, never an error.
	Degraded bool `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}
