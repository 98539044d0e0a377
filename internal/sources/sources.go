// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources queries biomedical literature APIs and returns normalized,
// deduplicated Article records. Every client calls its API through the
// resilience layer, so rate limits and transient failures are retried and a
// stale cache entry can stand in for a dead upstream.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// Backend searches a single literature API. Each backend (PubMed,
// Europe PMC, Semantic Scholar) implements this interface.
type Backend interface {
	Name() string
	Search(ctx context.Context, q types.Query, cfg types.SearchConfig) ([]types.Article, error)
}

// CacheKey derives the resilience-layer cache key for a search call.
func CacheKey(source string, q types.Query, maxResults int) string {
	return fmt.Sprintf("%s|%s|%d", source, normalizeQuery(SearchTerms(q)), maxResults)
}

// SearchTerms builds the text sent to an API from an analyzed query:
// recognized entities when the analyzer found any, the raw text otherwise.
func SearchTerms(q types.Query) string {
	if len(q.Entities) > 0 {
		return strings.Join(q.Entities, " ")
	}
	return q.Raw
}

// normalizeQuery lowercases and collapses whitespace so equivalent queries
// share a cache entry.
func normalizeQuery(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Deduplicate merges articles that share a DOI or, failing that, a
// normalized title. The first-seen record wins; later duplicates only fill
// its empty fields.
func Deduplicate(articles []types.Article) ([]types.Article, int) {
	seen := make(map[string]int) // dedup key → index in deduped
	var deduped []types.Article
	removed := 0

	for _, a := range articles {
		key := dedupKey(a)
		if idx, ok := seen[key]; ok {
			mergeInto(&deduped[idx], a)
			removed++
			continue
		}

		// A DOI-bearing record can still duplicate a DOI-less one by title.
		titleKey := "title:" + normalizeTitle(a.Title)
		if titleKey != "title:" && titleKey != key {
			if idx, ok := seen[titleKey]; ok {
				mergeInto(&deduped[idx], a)
				removed++
				continue
			}
		}

		idx := len(deduped)
		deduped = append(deduped, a)
		seen[key] = idx
		if titleKey != "title:" {
			if _, ok := seen[titleKey]; !ok {
				seen[titleKey] = idx
			}
		}
	}
	return deduped, removed
}

// DeduplicateGrouped deduplicates across backends while keeping each
// surviving article attributed to the backend that returned it first.
// Backends are visited in sorted name order so the first-seen winner is
// deterministic regardless of completion order.
func DeduplicateGrouped(bySource map[string][]types.Article) (map[string][]types.Article, int) {
	type entry struct {
		source  string
		article types.Article
	}
	seen := make(map[string]int)
	var deduped []entry
	removed := 0

	names := make([]string, 0, len(bySource))
	for name := range bySource {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, a := range bySource[name] {
			key := dedupKey(a)
			if idx, ok := seen[key]; ok {
				mergeInto(&deduped[idx].article, a)
				removed++
				continue
			}
			titleKey := "title:" + normalizeTitle(a.Title)
			if titleKey != "title:" && titleKey != key {
				if idx, ok := seen[titleKey]; ok {
					mergeInto(&deduped[idx].article, a)
					removed++
					continue
				}
			}
			idx := len(deduped)
			deduped = append(deduped, entry{source: name, article: a})
			seen[key] = idx
			if titleKey != "title:" {
				if _, ok := seen[titleKey]; !ok {
					seen[titleKey] = idx
				}
			}
		}
	}

	out := make(map[string][]types.Article, len(bySource))
	for _, e := range deduped {
		out[e.source] = append(out[e.source], e.article)
	}
	return out, removed
}

// dedupKey prefers the normalized DOI and falls back to the normalized title.
func dedupKey(a types.Article) string {
	if doi := normalizeDOI(a.DOI); doi != "" {
		return "doi:" + doi
	}
	return "title:" + normalizeTitle(a.Title)
}

// mergeInto fills empty fields of dst from src.
func mergeInto(dst *types.Article, src types.Article) {
	if dst.Title == "" && src.Title != "" {
		dst.Title = src.Title
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = src.Authors
	}
	if dst.Abstract == "" && src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
	if dst.Journal == "" && src.Journal != "" {
		dst.Journal = src.Journal
	}
	if dst.Year == "" && src.Year != "" {
		dst.Year = src.Year
	}
	if dst.DOI == "" && src.DOI != "" {
		dst.DOI = src.DOI
	}
	if len(dst.PublicationTypes) == 0 && len(src.PublicationTypes) > 0 {
		dst.PublicationTypes = src.PublicationTypes
	}
	if dst.Venue == "" && src.Venue != "" {
		dst.Venue = src.Venue
	}
}

// normalizeDOI lowercases a DOI and strips resolver prefixes.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return doi
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// yearOf extracts a 4-digit year from a free-form date string
// (e.g. "2023 Jan 15" → "2023"). Returns "" when none is found.
func yearOf(date string) string {
	for i := 0; i+4 <= len(date); i++ {
		if isDigit(date[i]) && isDigit(date[i+1]) && isDigit(date[i+2]) && isDigit(date[i+3]) {
			return date[i : i+4]
		}
	}
	return ""
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
