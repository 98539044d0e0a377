// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the evidence-engine pipeline.
package types

// Article is the normalized record every source client produces. Optional
// fields default to empty strings and empty slices, never nil-with-meaning,
// so downstream stages stay branch-free.
type Article struct {
	// Source is the globally unique origin identifier (e.g. "pmid:12345678",
	// "pmcid:PMC9876543").
	Source string `json:"source" yaml:"source"`

	// Title is the article title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the article authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is the article abstract, possibly empty.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Journal is the publication venue.
	Journal string `json:"journal" yaml:"journal"`

	// Year is the 4-digit publication year, or "" when unknown.
	Year string `json:"year" yaml:"year"`

	// DOI is the digital object identifier, or "" when unknown.
	DOI string `json:"doi" yaml:"doi"`

	// PublicationTypes holds the source's study-design tags
	// (e.g. "Systematic Review", "Randomized Controlled Trial").
	PublicationTypes []string `json:"publication_types" yaml:"publication_types"`

	// Venue is the hosting venue or server name when it differs from Journal
	// (Europe PMC reports preprint servers here).
	Venue string `json:"venue,omitempty" yaml:"venue,omitempty"`
}

// Span identifies a substring of a larger text by character offsets.
// End is exclusive.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}
