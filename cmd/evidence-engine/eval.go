// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/metrics"
	"github.com/pdiddy/evidence-engine/internal/pipeline"
)

var evalCmd = &cobra.Command{
	Use:   "eval [golden-set.yaml]",
	Short: "Evaluate ranking quality against a labeled golden set",
	Long: `Eval runs every query in a golden-set file through the engine and scores
the returned evidence against the labeled relevant sources. The golden set is
a YAML list of cases, each with a query and its relevant_sources. Queries
whose sources all fail are skipped and reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	golden, err := metrics.LoadGoldenSet(args[0])
	if err != nil {
		return err
	}
	if len(golden) == 0 {
		return fmt.Errorf("golden set %s has no cases", args[0])
	}

	engine, rec, log, err := buildEngine()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	results := make(map[string][]string, len(golden))
	var skipped int
	for _, gc := range golden {
		res, err := engine.AnalyzeAndSearch(ctx, gc.Query, pipeline.SearchOptions{})
		if errors.Is(err, pipeline.ErrAllSourcesFailed) {
			skipped++
			continue
		}
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(res.Evidence))
		for _, c := range res.Evidence {
			ids = append(ids, c.Article.Source)
		}
		results[gc.Query] = ids
	}

	precision, coverage := metrics.Evaluate(golden, results)
	rec.SetEvaluation(precision, coverage)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec.Snapshot())
	}

	fmt.Printf("cases: %d (skipped %d)\n", len(golden), skipped)
	fmt.Printf("precision: %.3f\n", precision)
	fmt.Printf("coverage: %.3f\n", coverage)
	return nil
}

func init() {
	evalCmd.Flags().Bool("json", false, "output the full metrics snapshot as JSON")

	rootCmd.AddCommand(evalCmd)
}
