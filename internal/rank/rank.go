// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank scores article relevance, filters preprints, assigns evidence
// levels, and cuts the ranked evidence set.
package rank

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/cite"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// chunkTextLimit caps the abstract excerpt carried into an EvidenceChunk.
const chunkTextLimit = 600

// preprintDenylist marks preprint servers whose items are excluded from
// ranked evidence.
var preprintDenylist = []string{
	"biorxiv",
	"medrxiv",
	"arxiv",
	"ssrn",
	"research square",
	"preprints.org",
}

// Ranker turns deduplicated articles into ranked, classified evidence chunks.
type Ranker struct {
	cfg types.RankConfig
	log *zap.Logger
}

// NewRanker builds a Ranker; zero config fields fall back to defaults.
func NewRanker(cfg types.RankConfig, log *zap.Logger) *Ranker {
	def := types.DefaultEngineConfig().Rank
	if cfg.SimThreshold <= 0 {
		cfg.SimThreshold = def.SimThreshold
	}
	if cfg.TopKPerSource <= 0 {
		cfg.TopKPerSource = def.TopKPerSource
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = def.MaxResults
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ranker{cfg: cfg, log: log}
}

// Output holds the ranked chunks and the counters the metrics layer consumes.
type Output struct {
	Chunks            []types.EvidenceChunk
	Candidates        int
	PreprintsFiltered int
	BelowThreshold    int
}

// Rank scores each article against the query, filters preprints and
// low-relevance items, keeps the top k per source, then merges and re-sorts
// globally before the final cut. Empty input yields empty output, never an
// error.
func (r *Ranker) Rank(q types.Query, bySource map[string][]types.Article) Output {
	out := Output{Chunks: []types.EvidenceChunk{}}

	// Preprint filtering happens before any scoring.
	filtered := make(map[string][]types.Article, len(bySource))
	var corpus []string
	for source, articles := range bySource {
		for _, a := range articles {
			out.Candidates++
			if IsPreprint(a) {
				out.PreprintsFiltered++
				r.log.Debug("preprint filtered",
					zap.String("source", a.Source),
					zap.String("venue", a.Venue))
				continue
			}
			filtered[source] = append(filtered[source], a)
			corpus = append(corpus, a.Title+" "+a.Abstract)
		}
	}
	if len(corpus) == 0 {
		return out
	}

	model := newTFIDF(corpus)
	queryVec := model.vector(queryText(q))

	var merged []scored
	for _, source := range sortedKeys(filtered) {
		var kept []scored
		for _, a := range filtered[source] {
			rel := cosine(queryVec, model.vector(a.Title+" "+a.Abstract))
			if rel < r.cfg.SimThreshold {
				out.BelowThreshold++
				continue
			}
			kept = append(kept, scored{article: a, relevance: rel})
		}
		sortScored(kept)
		if len(kept) > r.cfg.TopKPerSource {
			kept = kept[:r.cfg.TopKPerSource]
		}
		merged = append(merged, kept...)
	}

	sortScored(merged)
	if len(merged) > r.cfg.MaxResults {
		merged = merged[:r.cfg.MaxResults]
	}

	for i, s := range merged {
		out.Chunks = append(out.Chunks, types.EvidenceChunk{
			ID:        fmt.Sprintf("chunk-%02d-%s", i+1, s.article.Source),
			Text:      chunkText(s.article),
			Article:   s.article,
			Relevance: s.relevance,
			Level:     ClassifyLevel(s.article.PublicationTypes),
			APA:       cite.ToAPA(s.article),
			Entities:  entitiesIn(q.Entities, s.article),
		})
	}
	return out
}

// scored pairs an article with its relevance while ranking is in flight.
type scored struct {
	article   types.Article
	relevance float64
}

// sortScored orders by relevance desc, then newer year, then non-empty DOI,
// then source ID for full determinism.
func sortScored(items []scored) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.relevance != b.relevance {
			return a.relevance > b.relevance
		}
		if a.article.Year != b.article.Year {
			return a.article.Year > b.article.Year
		}
		if (a.article.DOI != "") != (b.article.DOI != "") {
			return a.article.DOI != ""
		}
		return a.article.Source < b.article.Source
	})
}

// IsPreprint reports whether the article's venue, journal, or source matches
// the preprint-server denylist, or the source tagged it as a preprint.
func IsPreprint(a types.Article) bool {
	haystacks := []string{
		strings.ToLower(a.Venue),
		strings.ToLower(a.Journal),
		strings.ToLower(a.Source),
	}
	for _, h := range haystacks {
		if h == "" {
			continue
		}
		for _, deny := range preprintDenylist {
			if strings.Contains(h, deny) {
				return true
			}
		}
	}
	for _, pt := range a.PublicationTypes {
		if strings.EqualFold(pt, "preprint") {
			return true
		}
	}
	return false
}

// levelRule maps a publication-type fragment to an evidence level. Rules are
// ordered by rigor; the first match wins.
type levelRule struct {
	fragment string
	level    types.EvidenceLevel
}

var levelRules = []levelRule{
	{"systematic review", types.NivelI},
	{"meta-analysis", types.NivelI},
	{"meta analysis", types.NivelI},
	{"randomized controlled trial", types.NivelII},
	{"randomised controlled trial", types.NivelII},
	{"cohort", types.NivelIII},
	{"case-control", types.NivelIII},
	{"case control", types.NivelIII},
}

// ClassifyLevel assigns an evidence level from publication-type tags. The
// classification is total: unrecognized or empty tag sets fall through to
// Nivel IV (case reports and unclassified designs).
func ClassifyLevel(pubTypes []string) types.EvidenceLevel {
	joined := strings.ToLower(strings.Join(pubTypes, " | "))
	for _, rule := range levelRules {
		if strings.Contains(joined, rule.fragment) {
			return rule.level
		}
	}
	return types.NivelIV
}

// chunkText builds the evidence span: title plus a bounded abstract excerpt,
// cut at a word boundary.
func chunkText(a types.Article) string {
	text := strings.TrimSpace(a.Title)
	if a.Abstract == "" {
		return text
	}
	abstract := strings.TrimSpace(a.Abstract)
	if len(abstract) > chunkTextLimit {
		cut := abstract[:chunkTextLimit]
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
		abstract = cut + "..."
	}
	return text + " " + abstract
}

// entitiesIn returns the query entities present in the article text.
func entitiesIn(entities []string, a types.Article) []string {
	text := strings.ToLower(a.Title + " " + a.Abstract)
	found := []string{}
	for _, e := range entities {
		if strings.Contains(text, strings.ToLower(e)) {
			found = append(found, e)
		}
	}
	return found
}

// queryText is the text scored against each article.
func queryText(q types.Query) string {
	if len(q.Entities) > 0 {
		return strings.Join(q.Entities, " ")
	}
	return q.Raw
}

// sortedKeys returns map keys in sorted order for deterministic iteration.
func sortedKeys(m map[string][]types.Article) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
