// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cite

import (
	"regexp"
	"strings"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// sentencePattern matches a run of text up to and including terminal
// punctuation.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// SplitSentences divides an answer into sentences with character spans into
// the original text. Trailing text without terminal punctuation forms a
// final sentence. Whitespace is trimmed from sentence text and excluded from
// spans.
func SplitSentences(answer string) []types.AnswerSentence {
	var sentences []types.AnswerSentence
	matches := sentencePattern.FindAllStringIndex(answer, -1)

	appendSentence := func(start, end int) {
		raw := answer[start:end]
		trimmedLeft := strings.TrimLeft(raw, " \t\n\r")
		start += len(raw) - len(trimmedLeft)
		trimmed := strings.TrimRight(trimmedLeft, " \t\n\r")
		end = start + len(trimmed)
		if trimmed == "" {
			return
		}
		sentences = append(sentences, types.AnswerSentence{
			Text:      trimmed,
			Span:      types.Span{Start: start, End: end},
			Citations: []types.Citation{},
		})
	}

	last := 0
	for _, m := range matches {
		appendSentence(m[0], m[1])
		last = m[1]
	}
	if last < len(answer) {
		appendSentence(last, len(answer))
	}
	return sentences
}
