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

// NCBI E-utilities endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	pubmedSearchBase  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubmedSummaryBase = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
)

// PubMedBackend queries PubMed through the NCBI E-utilities: esearch for
// PMIDs, esummary for metadata. An API key raises the rate limit from 3 to
// 10 requests per second.
type PubMedBackend struct {
	Client *http.Client
	Res    *resilience.Service
	APIKey string
}

// Name returns the backend identifier.
func (b *PubMedBackend) Name() string { return "pubmed" }

// Search runs the esearch+esummary round trip through the resilience layer
// and returns normalized articles.
func (b *PubMedBackend) Search(ctx context.Context, q types.Query, cfg types.SearchConfig) ([]types.Article, error) {
	terms := SearchTerms(q)
	if strings.TrimSpace(terms) == "" {
		return nil, fmt.Errorf("empty PubMed query")
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

func (b *PubMedBackend) fetch(ctx context.Context, terms string, maxResults int, cfg types.SearchConfig) ([]types.Article, error) {
	pmids, err := b.esearch(ctx, terms, maxResults, cfg)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return []types.Article{}, nil
	}
	return b.esummary(ctx, pmids, cfg)
}

func (b *PubMedBackend) esearch(ctx context.Context, terms string, maxResults int, cfg types.SearchConfig) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {terms},
		"retmode": {"json"},
		"retmax":  {fmt.Sprintf("%d", maxResults)},
		"sort":    {"relevance"},
	}
	if b.APIKey != "" {
		params.Set("api_key", b.APIKey)
	}

	var sr pubmedSearchResponse
	if err := b.getJSON(ctx, pubmedSearchBase+"?"+params.Encode(), cfg, &sr); err != nil {
		return nil, fmt.Errorf("PubMed esearch: %w", err)
	}
	return sr.ESearchResult.IDList, nil
}

func (b *PubMedBackend) esummary(ctx context.Context, pmids []string, cfg types.SearchConfig) ([]types.Article, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"json"},
	}
	if b.APIKey != "" {
		params.Set("api_key", b.APIKey)
	}

	var sr pubmedSummaryResponse
	if err := b.getJSON(ctx, pubmedSummaryBase+"?"+params.Encode(), cfg, &sr); err != nil {
		return nil, fmt.Errorf("PubMed esummary: %w", err)
	}

	var articles []types.Article
	for _, pmid := range sr.Result.UIDs {
		raw, ok := sr.Result.Docs[pmid]
		if !ok {
			continue
		}
		var doc pubmedDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}

		a := types.Article{
			Source:           "pmid:" + pmid,
			Title:            strings.TrimSpace(doc.Title),
			Authors:          []string{},
			Journal:          doc.FullJournalName,
			Year:             yearOf(doc.PubDate),
			DOI:              "",
			PublicationTypes: []string{},
		}
		for _, au := range doc.Authors {
			if au.Name != "" {
				a.Authors = append(a.Authors, au.Name)
			}
		}
		for _, id := range doc.ArticleIDs {
			if id.IDType == "doi" {
				a.DOI = id.Value
			}
		}
		a.PublicationTypes = append(a.PublicationTypes, doc.PubTypes...)
		articles = append(articles, a)
	}
	return articles, nil
}

// getJSON performs one GET and decodes the body. Non-200 responses become
// StatusErrors so the resilience layer can classify them.
func (b *PubMedBackend) getJSON(ctx context.Context, reqURL string, cfg types.SearchConfig, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := b.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &resilience.StatusError{Source: b.Name(), Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// NCBI E-utilities JSON structures.
type pubmedSearchResponse struct {
	ESearchResult struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// pubmedSummaryResponse carries the esummary result map, which mixes a
// "uids" array with one object per PMID under dynamic keys.
type pubmedSummaryResponse struct {
	Result pubmedResultMap `json:"result"`
}

type pubmedResultMap struct {
	UIDs []string
	Docs map[string]json.RawMessage
}

// UnmarshalJSON splits the esummary result object into the uid list and the
// per-PMID documents.
func (m *pubmedResultMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Docs = make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if k == "uids" {
			if err := json.Unmarshal(v, &m.UIDs); err != nil {
				return err
			}
			continue
		}
		m.Docs[k] = v
	}
	return nil
}

type pubmedDoc struct {
	Title           string         `json:"title"`
	FullJournalName string         `json:"fulljournalname"`
	PubDate         string         `json:"pubdate"`
	Authors         []pubmedAuthor `json:"authors"`
	ArticleIDs      []pubmedID     `json:"articleids"`
	PubTypes        []string       `json:"pubtype"`
}

type pubmedAuthor struct {
	Name string `json:"name"`
}

type pubmedID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}
