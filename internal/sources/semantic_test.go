package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const semanticJSON = `{"total":1,"data":[
	{
		"paperId":"abc123",
		"title":"Aquatic exercise programs for knee osteoarthritis",
		"abstract":"We randomized 120 participants...",
		"year":2021,
		"venue":"Clinical Rehabilitation",
		"journal":{"name":"Clinical Rehabilitation"},
		"authors":[{"authorId":"1","name":"Ana Torres"},{"authorId":"2","name":"Luis Vega"}],
		"externalIds":{"DOI":"10.1000/cr.2021.9","PubMed":"34567890"},
		"publicationTypes":["JournalArticle","Randomized Controlled Trial"]
	}
]}`

func TestSemanticScholarSearchNormalizes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "sekrit" {
			t.Errorf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(semanticJSON))
	}))
	defer ts.Close()

	old := semanticAPIBase
	semanticAPIBase = ts.URL
	defer func() { semanticAPIBase = old }()

	b := &SemanticScholarBackend{Client: ts.Client(), Res: testRes(), APIKey: "sekrit"}
	articles, err := b.Search(context.Background(), types.Query{Raw: "knee osteoarthritis"}, searchCfg())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("len(articles) = %d, want 1", len(articles))
	}

	a := articles[0]
	// A PubMed external ID wins the source slot so dedup can collapse
	// cross-source copies.
	if a.Source != "pmid:34567890" {
		t.Errorf("Source = %q, want pmid:34567890", a.Source)
	}
	if a.Year != "2021" {
		t.Errorf("Year = %q", a.Year)
	}
	if a.DOI != "10.1000/cr.2021.9" {
		t.Errorf("DOI = %q", a.DOI)
	}
	if len(a.PublicationTypes) != 2 {
		t.Errorf("PublicationTypes = %v", a.PublicationTypes)
	}
}
