// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyzer extracts clinical entities, specialty, and intent from a
// free-text query. It never fails: unrecognized input degrades to low
// confidence defaults so the pipeline can continue.
package analyzer

import (
	"sort"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// maxQueryLen caps the analyzed input. Longer queries are truncated, not
// rejected.
const maxQueryLen = 2000

// SpecialtyGeneral is the soft-fail specialty tag.
const SpecialtyGeneral = "general"

// accentReplacer folds the accented characters that appear in Spanish
// clinical vocabulary.
var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"ü", "u", "ñ", "n",
)

// Analyze tokenizes the query, matches it against the specialty and intent
// taxonomies, and scores confidence as the fraction of meaningful tokens
// covered by recognized phrases.
func Analyze(raw string) types.Query {
	if len(raw) > maxQueryLen {
		raw = raw[:maxQueryLen]
	}

	q := types.Query{
		Raw:       raw,
		Entities:  []string{},
		Specialty: SpecialtyGeneral,
		Intent:    types.IntentUnknown,
	}

	normalized := normalize(raw)
	if normalized == "" {
		q.Degraded = true
		return q
	}

	// Specialty matching doubles as entity extraction: each matched phrase
	// is a clinical entity, ordered by first appearance.
	type hit struct {
		phrase string
		pos    int
	}
	var hits []hit
	specialtyVotes := make(map[string]int)
	recognizedTokens := 0

	for _, e := range specialtyTaxonomy {
		pos := phraseIndex(normalized, e.Phrase)
		if pos < 0 {
			continue
		}
		hits = append(hits, hit{phrase: e.Phrase, pos: pos})
		specialtyVotes[e.Specialty]++
		recognizedTokens += len(strings.Fields(e.Phrase))
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].phrase < hits[j].phrase
	})
	for _, h := range hits {
		q.Entities = append(q.Entities, h.phrase)
	}

	if len(specialtyVotes) > 0 {
		q.Specialty = topSpecialty(specialtyVotes)
	}

	// Intent: most-voted wins; table order breaks ties, so treatment
	// phrases dominate ambiguous questions.
	intentVotes := make(map[types.Intent]int)
	var intentOrder []types.Intent
	for _, e := range intentTaxonomy {
		if phraseIndex(normalized, e.Phrase) < 0 {
			continue
		}
		if intentVotes[e.Intent] == 0 {
			intentOrder = append(intentOrder, e.Intent)
		}
		intentVotes[e.Intent]++
		recognizedTokens += len(strings.Fields(e.Phrase))
	}
	best := 0
	for _, in := range intentOrder {
		if intentVotes[in] > best {
			best = intentVotes[in]
			q.Intent = in
		}
	}

	meaningful := meaningfulTokens(normalized)
	if meaningful > 0 {
		q.Confidence = float64(recognizedTokens) / float64(meaningful)
		if q.Confidence > 1 {
			q.Confidence = 1
		}
	}

	if len(q.Entities) == 0 && q.Intent == types.IntentUnknown {
		q.Degraded = true
		q.Confidence = 0
	}
	return q
}

// phraseIndex locates phrase in normalized text, matching on whole-token
// boundaries only, so a short phrase like "acl" cannot fire inside an
// unrelated word like "miracle". Returns -1 when absent.
func phraseIndex(normalized, phrase string) int {
	idx := strings.Index(" "+normalized+" ", " "+phrase+" ")
	if idx < 0 {
		return -1
	}
	return idx
}

// topSpecialty returns the most-voted specialty; ties break lexically for
// determinism.
func topSpecialty(votes map[string]int) string {
	best, bestCount := "", 0
	for s, n := range votes {
		if n > bestCount || (n == bestCount && (best == "" || s < best)) {
			best, bestCount = s, n
		}
	}
	return best
}

// normalize lowercases, folds accents, and collapses non-alphanumeric runs
// into single spaces.
func normalize(s string) string {
	s = accentReplacer.Replace(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// meaningfulTokens counts non-stopword tokens in normalized text.
func meaningfulTokens(normalized string) int {
	n := 0
	for _, tok := range strings.Fields(normalized) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		n++
	}
	return n
}
