// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EvidenceLevel is the methodological-strength tier assigned to a literature
// item based on study design, Nivel I strongest.
type EvidenceLevel string

const (
	NivelI   EvidenceLevel = "Nivel I"
	NivelII  EvidenceLevel = "Nivel II"
	NivelIII EvidenceLevel = "Nivel III"
	NivelIV  EvidenceLevel = "Nivel IV"
)

// EvidenceChunk is a ranked, classified slice of evidence derived from an
// Article. Chunks are never mutated after creation; a new analysis produces
// new chunks.
type EvidenceChunk struct {
	// ID is a stable identifier for this chunk within a result set.
	ID string `json:"id" yaml:"id"`

	// Text is the evidence span (title plus abstract excerpt).
	Text string `json:"text" yaml:"text"`

	// Article is the source record the chunk was derived from.
	Article Article `json:"article" yaml:"article"`

	// Relevance is the similarity to the analyzed query, in [0,1].
	Relevance float64 `json:"relevance" yaml:"relevance"`

	// Level is the evidence level, total over all inputs.
	Level EvidenceLevel `json:"level" yaml:"level"`

	// APA is the precomputed APA citation string for the article.
	APA string `json:"apa" yaml:"apa"`

	// Entities lists the query entities found in the chunk text.
	Entities []string `json:"entities" yaml:"entities"`
}

// Citation links an answer sentence to a supporting EvidenceChunk.
// Immutable once created.
type Citation struct {
	// ChunkID references the supporting EvidenceChunk.
	ChunkID string `json:"chunk_id" yaml:"chunk_id"`

	// Confidence is the sentence/chunk match score, in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Overlap is the contiguous text overlap used as justification.
	Overlap string `json:"overlap" yaml:"overlap"`
}

// AnswerSentence is one sentence of a generated answer together with its
// position in the full text and the citations assigned to it. It is mutated
// only by appending citations.
type AnswerSentence struct {
	// Text is the sentence text.
	Text string `json:"text" yaml:"text"`

	// Span locates the sentence within the full answer.
	Span Span `json:"span" yaml:"span"`

	// Citations lists assigned citations, sorted by descending confidence.
	// An empty list means the sentence is uncited, which is observable but
	// not an error.
	Citations []Citation `json:"citations" yaml:"citations"`
}
