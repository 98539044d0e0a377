// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

var wordPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// assignStopwords are short function words excluded from overlap scoring so
// connective tissue does not inflate match confidence.
var assignStopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "de": {}, "del": {}, "en": {},
	"y": {}, "o": {}, "que": {}, "con": {}, "para": {}, "por": {}, "un": {},
	"una": {}, "es": {}, "se": {}, "al": {},
	"the": {}, "a": {}, "an": {}, "of": {}, "in": {}, "on": {}, "and": {},
	"or": {}, "for": {}, "to": {}, "is": {}, "are": {}, "with": {}, "was": {},
	"were": {}, "this": {}, "that": {},
}

// Assigner maps answer sentences to supporting evidence chunks.
type Assigner struct {
	cfg types.CiteConfig
	log *zap.Logger
}

// NewAssigner builds an Assigner; zero config fields fall back to defaults.
func NewAssigner(cfg types.CiteConfig, log *zap.Logger) *Assigner {
	def := types.DefaultEngineConfig().Cite
	if cfg.AssignThreshold <= 0 {
		cfg.AssignThreshold = def.AssignThreshold
	}
	if cfg.MinDistinctSources <= 0 {
		cfg.MinDistinctSources = def.MinDistinctSources
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Assigner{cfg: cfg, log: log}
}

// Stats summarizes an assignment for the orchestrator's policy checks and
// the metrics layer. The assigner only reports; it never rejects.
type Stats struct {
	Sentences          int
	SentencesWithCites int
	DistinctSources    int
	MeetsSourceFloor   bool
}

// Assign scores every sentence against every chunk and attaches a citation
// wherever the overlap reaches the threshold. A sentence may receive several
// citations, sorted by descending confidence; sentences with no qualifying
// chunk stay uncited. Empty inputs produce empty outputs, never an error.
func (as *Assigner) Assign(sentences []types.AnswerSentence, chunks []types.EvidenceChunk) ([]types.AnswerSentence, Stats) {
	stats := Stats{Sentences: len(sentences)}

	chunkTokens := make([][]string, len(chunks))
	for i, c := range chunks {
		chunkTokens[i] = meaningfulWords(c.Text)
	}

	cited := make(map[string]struct{})
	for i := range sentences {
		sentences[i].Citations = []types.Citation{}
		sTokens := meaningfulWords(sentences[i].Text)
		if len(sTokens) == 0 {
			continue
		}

		for j, c := range chunks {
			conf, overlap := overlapScore(sTokens, chunkTokens[j])
			if conf < as.cfg.AssignThreshold {
				continue
			}
			sentences[i].Citations = append(sentences[i].Citations, types.Citation{
				ChunkID:    c.ID,
				Confidence: conf,
				Overlap:    overlap,
			})
			cited[c.Article.Source] = struct{}{}
		}

		sort.SliceStable(sentences[i].Citations, func(a, b int) bool {
			ca, cb := sentences[i].Citations[a], sentences[i].Citations[b]
			if ca.Confidence != cb.Confidence {
				return ca.Confidence > cb.Confidence
			}
			return ca.ChunkID < cb.ChunkID
		})

		if len(sentences[i].Citations) > 0 {
			stats.SentencesWithCites++
		}
	}

	stats.DistinctSources = len(cited)
	stats.MeetsSourceFloor = len(chunks) == 0 || stats.DistinctSources >= as.cfg.MinDistinctSources
	return sentences, stats
}

// overlapScore returns the fraction of sentence tokens found in the chunk,
// plus the longest contiguous shared token run as justification text.
func overlapScore(sentence, chunk []string) (float64, string) {
	chunkSet := make(map[string]struct{}, len(chunk))
	for _, t := range chunk {
		chunkSet[t] = struct{}{}
	}

	matched := 0
	for _, t := range sentence {
		if _, ok := chunkSet[t]; ok {
			matched++
		}
	}
	if matched == 0 {
		return 0, ""
	}
	score := float64(matched) / float64(len(sentence))
	return score, longestCommonRun(sentence, chunk)
}

// longestCommonRun finds the longest contiguous token subsequence shared by
// both texts and returns it space-joined.
func longestCommonRun(a, b []string) string {
	best, bestEnd := 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
					bestEnd = i
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	if best == 0 {
		return ""
	}
	return strings.Join(a[bestEnd-best:bestEnd], " ")
}

// meaningfulWords tokenizes to lowercase words with stopwords removed.
func meaningfulWords(text string) []string {
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := assignStopwords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}
