package rank

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

func kneeQuery() types.Query {
	return types.Query{
		Raw:       "tratamiento dolor rodilla",
		Entities:  []string{"knee", "osteoarthritis", "exercise"},
		Specialty: "kinesiology",
		Intent:    types.IntentTreatment,
	}
}

func article(source, title, year string, pubTypes ...string) types.Article {
	return types.Article{
		Source:           source,
		Title:            title,
		Abstract:         title,
		Journal:          "Journal of Physical Therapy",
		Year:             year,
		PublicationTypes: pubTypes,
	}
}

func TestClassifyLevel(t *testing.T) {
	tests := []struct {
		name     string
		pubTypes []string
		want     types.EvidenceLevel
	}{
		{"systematic review", []string{"Systematic Review", "Meta-Analysis"}, types.NivelI},
		{"meta-analysis alone", []string{"Meta-Analysis"}, types.NivelI},
		{"rct", []string{"Randomized Controlled Trial"}, types.NivelII},
		{"rct british spelling", []string{"Randomised Controlled Trial"}, types.NivelII},
		{"cohort", []string{"Cohort Study"}, types.NivelIII},
		{"case-control", []string{"Case-Control Study"}, types.NivelIII},
		{"case report", []string{"Case Report"}, types.NivelIV},
		{"unrecognized", []string{"Editorial"}, types.NivelIV},
		{"empty", []string{}, types.NivelIV},
		{"nil", nil, types.NivelIV},
		// The more rigorous level wins when several designs are tagged.
		{"review plus rct", []string{"Randomized Controlled Trial", "Systematic Review"}, types.NivelI},
		{"rct plus cohort", []string{"Cohort Study", "Randomized Controlled Trial"}, types.NivelII},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyLevel(tt.pubTypes); got != tt.want {
				t.Errorf("ClassifyLevel(%v) = %q, want %q", tt.pubTypes, got, tt.want)
			}
		})
	}
}

func TestIsPreprint(t *testing.T) {
	tests := []struct {
		name    string
		article types.Article
		want    bool
	}{
		{"medrxiv venue", types.Article{Venue: "medRxiv"}, true},
		{"biorxiv journal", types.Article{Journal: "bioRxiv preprints"}, true},
		{"ssrn", types.Article{Venue: "SSRN Electronic Journal"}, true},
		{"preprint pubtype", types.Article{PublicationTypes: []string{"Preprint"}}, true},
		{"journal article", types.Article{Journal: "BMJ", PublicationTypes: []string{"Journal Article"}}, false},
		{"empty", types.Article{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPreprint(tt.article); got != tt.want {
				t.Errorf("IsPreprint = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankFiltersPreprintsAndCounts(t *testing.T) {
	r := NewRanker(types.RankConfig{SimThreshold: 0.01}, nil)
	in := map[string][]types.Article{
		"europepmc": {
			article("pmid:1", "Exercise for knee osteoarthritis", "2023", "Randomized Controlled Trial"),
			{Source: "epmc:PPR:9", Title: "Exercise for knee osteoarthritis preprint", Venue: "medRxiv", Year: "2023"},
		},
	}

	out := r.Rank(kneeQuery(), in)
	if out.Candidates != 2 {
		t.Errorf("Candidates = %d, want 2", out.Candidates)
	}
	if out.PreprintsFiltered != 1 {
		t.Errorf("PreprintsFiltered = %d, want 1", out.PreprintsFiltered)
	}
	for _, c := range out.Chunks {
		if c.Article.Source == "epmc:PPR:9" {
			t.Error("preprint survived ranking")
		}
	}
}

func TestRankThresholdProperty(t *testing.T) {
	for _, threshold := range []float64{0.1, 0.4, 0.65, 0.9} {
		r := NewRanker(types.RankConfig{SimThreshold: threshold}, nil)
		in := map[string][]types.Article{
			"pubmed": {
				article("pmid:1", "Exercise therapy for knee osteoarthritis", "2023", "Randomized Controlled Trial"),
				article("pmid:2", "Knee exercise outcomes in osteoarthritis patients", "2022"),
				article("pmid:3", "Cardiac imaging in atrial fibrillation", "2021"),
			},
		}
		out := r.Rank(kneeQuery(), in)
		for _, c := range out.Chunks {
			if c.Relevance < threshold {
				t.Errorf("threshold %v: chunk %s has relevance %f", threshold, c.ID, c.Relevance)
			}
		}
	}
}

func TestRankTopKPerSourceAndGlobalCut(t *testing.T) {
	r := NewRanker(types.RankConfig{SimThreshold: 0.01, TopKPerSource: 2, MaxResults: 3}, nil)
	in := map[string][]types.Article{}
	for _, source := range []string{"pubmed", "europepmc"} {
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("%s-%d", source, i)
			in[source] = append(in[source], article("pmid:"+id, "Knee osteoarthritis exercise study "+id, "2023"))
		}
	}

	out := r.Rank(kneeQuery(), in)
	if len(out.Chunks) > 3 {
		t.Errorf("len(chunks) = %d, want <= 3 (global cut)", len(out.Chunks))
	}
	perSource := map[string]int{}
	for _, c := range out.Chunks {
		// Source client name is not carried on the chunk; count by origin id prefix.
		perSource[c.Article.Source[:10]]++
	}
	for k, n := range perSource {
		if n > 2 {
			t.Errorf("source %s contributed %d chunks, want <= 2", k, n)
		}
	}
}

func TestRankTieBreaks(t *testing.T) {
	r := NewRanker(types.RankConfig{SimThreshold: 0.01}, nil)

	// Identical text gives identical relevance; the newer year must win.
	in := map[string][]types.Article{
		"pubmed": {
			article("pmid:old", "Knee osteoarthritis exercise", "2019"),
			article("pmid:new", "Knee osteoarthritis exercise", "2023"),
		},
	}
	out := r.Rank(kneeQuery(), in)
	if len(out.Chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(out.Chunks))
	}
	if out.Chunks[0].Article.Source != "pmid:new" {
		t.Errorf("first chunk = %s, want the newer article", out.Chunks[0].Article.Source)
	}

	// Same year: the DOI-bearing article wins.
	withDOI := article("pmid:b", "Knee osteoarthritis exercise", "2023")
	withDOI.DOI = "10.1/x"
	in = map[string][]types.Article{
		"pubmed": {article("pmid:a", "Knee osteoarthritis exercise", "2023"), withDOI},
	}
	out = r.Rank(kneeQuery(), in)
	if out.Chunks[0].Article.DOI == "" {
		t.Error("DOI-bearing article must rank first on a year tie")
	}
}

func TestRankDeterministic(t *testing.T) {
	r := NewRanker(types.RankConfig{SimThreshold: 0.01}, nil)
	in := map[string][]types.Article{
		"pubmed": {
			article("pmid:1", "Exercise therapy for knee osteoarthritis", "2023", "Systematic Review"),
			article("pmid:2", "Knee exercise and osteoarthritis pain", "2022", "Cohort Study"),
		},
		"europepmc": {
			article("pmcid:PMC3", "Osteoarthritis of the knee and exercise", "2021"),
		},
	}

	first := r.Rank(kneeQuery(), in)
	for i := 0; i < 10; i++ {
		again := r.Rank(kneeQuery(), in)
		if !reflect.DeepEqual(first.Chunks, again.Chunks) {
			t.Fatal("ranking is not deterministic across runs")
		}
	}
}

func TestRankEmptyInput(t *testing.T) {
	r := NewRanker(types.RankConfig{}, nil)
	out := r.Rank(kneeQuery(), nil)
	if out.Chunks == nil {
		t.Error("Chunks must be an empty slice, not nil")
	}
	if len(out.Chunks) != 0 {
		t.Errorf("len(chunks) = %d, want 0", len(out.Chunks))
	}
}

func TestRankChunkFields(t *testing.T) {
	r := NewRanker(types.RankConfig{SimThreshold: 0.01}, nil)
	a := article("pmid:1", "Exercise therapy for knee osteoarthritis", "2023", "Systematic Review")
	a.Authors = []string{"Smith, J."}
	out := r.Rank(kneeQuery(), map[string][]types.Article{"pubmed": {a}})

	if len(out.Chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(out.Chunks))
	}
	c := out.Chunks[0]
	if c.Level != types.NivelI {
		t.Errorf("Level = %q, want Nivel I", c.Level)
	}
	if c.APA == "" {
		t.Error("APA citation must be precomputed")
	}
	if c.Text == "" {
		t.Error("chunk text must be populated")
	}
	if len(c.Entities) == 0 {
		t.Errorf("Entities = %v, want the matched query entities", c.Entities)
	}
}
