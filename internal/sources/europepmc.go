// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/evidence-engine/internal/resilience"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// europePMCBase is the Europe PMC REST search endpoint. Declared as a var so
// tests can substitute an httptest server.
var europePMCBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMCBackend queries the Europe PMC REST API. Europe PMC indexes
// preprint servers alongside journals; the venue is carried through so the
// ranker's preprint filter can act on it.
type EuropePMCBackend struct {
	Client *http.Client
	Res    *resilience.Service
	// Email is sent for polite-pool access.
	Email string
}

// Name returns the backend identifier.
func (b *EuropePMCBackend) Name() string { return "europepmc" }

// Search queries Europe PMC through the resilience layer.
func (b *EuropePMCBackend) Search(ctx context.Context, q types.Query, cfg types.SearchConfig) ([]types.Article, error) {
	terms := SearchTerms(q)
	if strings.TrimSpace(terms) == "" {
		return nil, fmt.Errorf("empty Europe PMC query")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	key := CacheKey(b.Name(), q, maxResults)
	result, err := b.Res.WithResilience(ctx, key, 0, func(ctx context.Context) (any, error) {
		return b.fetch(ctx, terms, maxResults, cfg)
	})
	if err != nil {
		return nil, err
	}
	articles, ok := result.Value.([]types.Article)
	if !ok {
		return nil, fmt.Errorf("unexpected cache payload for %s", key)
	}
	return articles, nil
}

func (b *EuropePMCBackend) fetch(ctx context.Context, terms string, maxResults int, cfg types.SearchConfig) ([]types.Article, error) {
	params := url.Values{
		"query":      {terms},
		"format":     {"json"},
		"pageSize":   {fmt.Sprintf("%d", maxResults)},
		"resultType": {"core"},
	}
	if b.Email != "" {
		params.Set("email", b.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, europePMCBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Source: b.Name(), Status: resp.StatusCode}
	}

	var er europePMCResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("parsing Europe PMC response: %w", err)
	}

	articles := []types.Article{}
	for _, r := range er.ResultList.Result {
		a := types.Article{
			Source:           europePMCSourceID(r),
			Title:            strings.TrimSpace(r.Title),
			Authors:          splitAuthorString(r.AuthorString),
			Abstract:         strings.TrimSpace(r.AbstractText),
			Journal:          r.JournalTitle,
			Year:             yearOf(r.PubYear),
			DOI:              r.DOI,
			PublicationTypes: []string{},
			Venue:            europePMCVenue(r),
		}
		a.PublicationTypes = append(a.PublicationTypes, r.PubTypeList.PubType...)
		articles = append(articles, a)
	}
	return articles, nil
}

// europePMCSourceID builds the globally unique origin identifier. PubMed
// records keep the pmid: scheme so cross-source dedup stays cheap.
func europePMCSourceID(r europePMCResult) string {
	if r.PMID != "" {
		return "pmid:" + r.PMID
	}
	if r.PMCID != "" {
		return "pmcid:" + r.PMCID
	}
	return "epmc:" + r.Source + ":" + r.ID
}

// europePMCVenue reports the hosting venue. Preprint records (source "PPR")
// carry the server name in publisher rather than journalTitle.
func europePMCVenue(r europePMCResult) string {
	if r.JournalTitle != "" {
		return r.JournalTitle
	}
	if r.BookOrReportDetails.Publisher != "" {
		return r.BookOrReportDetails.Publisher
	}
	if r.Source == "PPR" {
		return "preprint"
	}
	return ""
}

// splitAuthorString turns "Smith J, Doe A." into ["Smith J", "Doe A"].
func splitAuthorString(s string) []string {
	authors := []string{}
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSuffix(strings.TrimSpace(part), ".")
		if name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// Europe PMC REST JSON structures.
type europePMCResponse struct {
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	PMID         string `json:"pmid"`
	PMCID        string `json:"pmcid"`
	DOI          string `json:"doi"`
	Title        string `json:"title"`
	AuthorString string `json:"authorString"`
	JournalTitle string `json:"journalTitle"`
	PubYear      string `json:"pubYear"`
	AbstractText string `json:"abstractText"`
	PubTypeList  struct {
		PubType []string `json:"pubType"`
	} `json:"pubTypeList"`
	BookOrReportDetails struct {
		Publisher string `json:"publisher"`
	} `json:"bookOrReportDetails"`
}
