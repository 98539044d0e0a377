package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const europePMCJSON = `{"resultList":{"result":[
	{
		"id":"37012345","source":"MED","pmid":"37012345",
		"doi":"10.1000/epmc.001",
		"title":"Manual therapy for chronic low back pain.",
		"authorString":"Lopez C, Rivas D.",
		"journalTitle":"Physiotherapy Research",
		"pubYear":"2023",
		"abstractText":"A cohort of 200 patients...",
		"pubTypeList":{"pubType":["research-article","Cohort Study"]}
	},
	{
		"id":"PPR654321","source":"PPR",
		"doi":"10.1101/2023.01.01.522000",
		"title":"Unreviewed manuscript on knee pain.",
		"authorString":"Doe J.",
		"pubYear":"2023",
		"bookOrReportDetails":{"publisher":"medRxiv"},
		"pubTypeList":{"pubType":["Preprint"]}
	}
]}}`

func TestEuropePMCSearchNormalizes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(europePMCJSON))
	}))
	defer ts.Close()

	old := europePMCBase
	europePMCBase = ts.URL
	defer func() { europePMCBase = old }()

	b := &EuropePMCBackend{Client: ts.Client(), Res: testRes(), Email: "dev@example.org"}
	articles, err := b.Search(context.Background(), types.Query{Raw: "low back pain"}, searchCfg())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("len(articles) = %d, want 2", len(articles))
	}

	med := articles[0]
	if med.Source != "pmid:37012345" {
		t.Errorf("Source = %q, want pmid:37012345", med.Source)
	}
	if len(med.Authors) != 2 || med.Authors[0] != "Lopez C" {
		t.Errorf("Authors = %v", med.Authors)
	}
	if med.Venue != "Physiotherapy Research" {
		t.Errorf("Venue = %q", med.Venue)
	}

	// Preprint record: venue must expose the server name for the filter.
	ppr := articles[1]
	if ppr.Source != "epmc:PPR:PPR654321" {
		t.Errorf("Source = %q", ppr.Source)
	}
	if ppr.Venue != "medRxiv" {
		t.Errorf("Venue = %q, want medRxiv", ppr.Venue)
	}
	if ppr.Journal != "" {
		t.Errorf("Journal = %q, want empty", ppr.Journal)
	}
}

func TestEuropePMCEmptyResultList(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"resultList":{"result":[]}}`))
	}))
	defer ts.Close()

	old := europePMCBase
	europePMCBase = ts.URL
	defer func() { europePMCBase = old }()

	b := &EuropePMCBackend{Client: ts.Client(), Res: testRes()}
	articles, err := b.Search(context.Background(), types.Query{Raw: "zzz"}, searchCfg())
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("len(articles) = %d, want 0", len(articles))
	}
}
