// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/store"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Query stored evidence from past searches",
	Long: `Store manages the local SQLite evidence database that accumulates
ranked evidence from searches run with --save or via the HTTP server. Use
subcommands to query it or view summary statistics.`,
}

// --- query subcommand ---

var storeQueryCmd = &cobra.Command{
	Use:   "query [terms]",
	Short: "Full-text and filtered search over stored evidence",
	Long: `Query searches stored evidence with FTS5 full-text search, structured
filters (specialty, evidence level), or both.`,
	RunE: runStoreQuery,
}

func runStoreQuery(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	specialty, _ := cmd.Flags().GetString("specialty")
	level, _ := cmd.Flags().GetString("level")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := store.QueryOptions{
		Query:      strings.Join(args, " "),
		Specialty:  specialty,
		Level:      types.EvidenceLevel(level),
		MaxResults: limit,
	}
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide search terms, --specialty, or --level")
	}

	results, err := s.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	for i, r := range results {
		text := r.Text
		if len(text) > 70 {
			text = text[:67] + "..."
		}
		fmt.Printf("%d. [%s] (%.2f) %s\n   %s\n", i+1, r.Level, r.Relevance, text, r.APA)
	}
	fmt.Printf("\n%d results\n", len(results))
	return nil
}

// --- stats subcommand ---

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the evidence store",
	RunE:  runStoreStats,
}

func runStoreStats(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.Stats(context.Background())
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Printf("Articles: %d\nChunks:   %d\n", stats.Articles, stats.Chunks)
	for _, level := range []string{"Nivel I", "Nivel II", "Nivel III", "Nivel IV"} {
		if n, ok := stats.ChunksByLevel[level]; ok {
			fmt.Printf("  %-9s %d\n", level, n)
		}
	}
	return nil
}

// --- shared helpers ---

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg := engineConfig().Store
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Dir = dir
	}
	return store.NewStore(cfg)
}

func init() {
	storeCmd.PersistentFlags().String("dir", "", "base directory for the store (default from config)")
	storeCmd.PersistentFlags().Bool("json", false, "output as JSON")

	storeQueryCmd.Flags().String("specialty", "", "filter by specialty")
	storeQueryCmd.Flags().String("level", "", "filter by evidence level: Nivel I .. Nivel IV")
	storeQueryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")

	storeCmd.AddCommand(storeQueryCmd)
	storeCmd.AddCommand(storeStatsCmd)

	rootCmd.AddCommand(storeCmd)
}
