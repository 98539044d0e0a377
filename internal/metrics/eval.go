// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// GoldenCase is one labeled evaluation query: the sources a correct ranking
// should surface.
type GoldenCase struct {
	Query           string   `yaml:"query"`
	RelevantSources []string `yaml:"relevant_sources"`
}

// LoadGoldenSet reads a labeled evaluation file.
func LoadGoldenSet(path string) ([]GoldenCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading golden set: %w", err)
	}
	var cases []GoldenCase
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing golden set: %w", err)
	}
	return cases, nil
}

// Evaluate computes ranking precision and search coverage against a golden
// set. results maps each case's query to the source IDs the engine returned.
// Precision is the fraction of returned sources that are labeled relevant;
// coverage is the fraction of labeled sources the engine returned.
func Evaluate(golden []GoldenCase, results map[string][]string) (precision, coverage float64) {
	var returned, returnedRelevant, relevant, relevantFound int

	for _, gc := range golden {
		labeled := make(map[string]struct{}, len(gc.RelevantSources))
		for _, s := range gc.RelevantSources {
			labeled[s] = struct{}{}
		}
		relevant += len(labeled)

		got := results[gc.Query]
		returned += len(got)
		seen := make(map[string]struct{}, len(got))
		for _, s := range got {
			if _, ok := labeled[s]; ok {
				returnedRelevant++
				if _, dup := seen[s]; !dup {
					seen[s] = struct{}{}
					relevantFound++
				}
			}
		}
	}

	if returned > 0 {
		precision = float64(returnedRelevant) / float64(returned)
	}
	if relevant > 0 {
		coverage = float64(relevantFound) / float64(relevant)
	}
	return precision, coverage
}
