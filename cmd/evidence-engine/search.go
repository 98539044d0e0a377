// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/cite"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
	"github.com/pdiddy/evidence-engine/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Analyze a clinical query and retrieve ranked evidence",
	Long: `Search analyzes a free-text clinical query, fans out to the enabled
literature sources (PubMed, Europe PMC, Semantic Scholar), deduplicates
across sources, and returns evidence ranked by relevance and classified by
methodological strength (Nivel I-IV). Preprints are excluded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	specialty, _ := cmd.Flags().GetString("specialty")
	age, _ := cmd.Flags().GetInt("age")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	cslOutput, _ := cmd.Flags().GetBool("csl")
	persist, _ := cmd.Flags().GetBool("save")

	var engineOpts []pipeline.Option
	if persist {
		s, err := store.NewStore(engineConfig().Store)
		if err != nil {
			return err
		}
		defer s.Close()
		engineOpts = append(engineOpts, pipeline.WithSaver(s))
	}

	engine, _, log, err := buildEngine(engineOpts...)
	if err != nil {
		return err
	}
	defer log.Sync()

	res, err := engine.AnalyzeAndSearch(context.Background(), strings.Join(args, " "), pipeline.SearchOptions{
		Specialty: specialty,
		Age:       age,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if cslOutput {
		return cite.FormatCSL(res.Evidence, os.Stdout)
	}

	for _, msg := range res.SourceErrors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
	}
	if res.Status == pipeline.StatusNoEvidence {
		fmt.Println("No evidence found.")
		return nil
	}

	fmt.Printf("Specialty: %s  Intent: %s  Confidence: %.2f\n\n",
		res.Query.Specialty, res.Query.Intent, res.Query.Confidence)
	for i, c := range res.Evidence {
		fmt.Printf("%d. [%s] (%.2f) %s\n   %s\n", i+1, c.Level, c.Relevance, c.Article.Title, c.APA)
	}
	fmt.Printf("\n%d evidence chunks\n", len(res.Evidence))
	return nil
}

func init() {
	searchCmd.Flags().String("specialty", "", "override the inferred specialty")
	searchCmd.Flags().Int("age", 0, "patient age, if known")
	searchCmd.Flags().Bool("json", false, "output the full result as JSON")
	searchCmd.Flags().Bool("csl", false, "output evidence as CSL-YAML references")
	searchCmd.Flags().Bool("save", false, "persist ranked evidence to the store")

	rootCmd.AddCommand(searchCmd)
}
