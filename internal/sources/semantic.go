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

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,venue,journal,publicationTypes"

// SemanticScholarBackend queries the Semantic Scholar API.
type SemanticScholarBackend struct {
	Client *http.Client
	Res    *resilience.Service
	APIKey string
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return "semantic_scholar" }

// Search queries the Semantic Scholar API through the resilience layer.
func (b *SemanticScholarBackend) Search(ctx context.Context, q types.Query, cfg types.SearchConfig) ([]types.Article, error) {
	terms := SearchTerms(q)
	if strings.TrimSpace(terms) == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
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

func (b *SemanticScholarBackend) fetch(ctx context.Context, terms string, maxResults int, cfg types.SearchConfig) ([]types.Article, error) {
	params := url.Values{
		"query":  {terms},
		"limit":  {fmt.Sprintf("%d", maxResults)},
		"fields": {semanticFields},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	if b.APIKey != "" {
		req.Header.Set("x-api-key", b.APIKey)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Source: b.Name(), Status: resp.StatusCode}
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	articles := []types.Article{}
	for _, paper := range sr.Data {
		a := types.Article{
			Source:           "s2:" + paper.PaperID,
			Title:            strings.TrimSpace(paper.Title),
			Authors:          []string{},
			Abstract:         strings.TrimSpace(paper.Abstract),
			Journal:          paper.Journal.Name,
			DOI:              paper.ExternalIDs.DOI,
			PublicationTypes: []string{},
			Venue:            paper.Venue,
		}
		if paper.ExternalIDs.PubMed != "" {
			a.Source = "pmid:" + paper.ExternalIDs.PubMed
		}
		if paper.Year > 0 {
			a.Year = fmt.Sprintf("%d", paper.Year)
		}
		for _, au := range paper.Authors {
			if au.Name != "" {
				a.Authors = append(a.Authors, au.Name)
			}
		}
		a.PublicationTypes = append(a.PublicationTypes, paper.PublicationTypes...)
		articles = append(articles, a)
	}
	return articles, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID          string              `json:"paperId"`
	Title            string              `json:"title"`
	Abstract         string              `json:"abstract"`
	Year             int                 `json:"year"`
	Venue            string              `json:"venue"`
	Authors          []semanticAuthor    `json:"authors"`
	ExternalIDs      semanticExternalIDs `json:"externalIds"`
	PublicationTypes []string            `json:"publicationTypes"`
	Journal          struct {
		Name string `json:"name"`
	} `json:"journal"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI    string `json:"DOI"`
	PubMed string `json:"PubMed"`
	ArXiv  string `json:"ArXiv"`
}
