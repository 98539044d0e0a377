// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

var citeCmd = &cobra.Command{
	Use:   "cite [answer text]",
	Short: "Assign evidence citations to the sentences of an answer",
	Long: `Cite splits an answer into sentences and assigns each one the evidence
chunks that support it. Evidence is read as JSON from --evidence (the output
of "search --json") or from stdin. Sentences without qualifying evidence stay
uncited; that is reported, not an error.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCite,
}

func runCite(cmd *cobra.Command, args []string) error {
	evidencePath, _ := cmd.Flags().GetString("evidence")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	evidence, err := readEvidence(evidencePath)
	if err != nil {
		return err
	}

	engine, _, log, err := buildEngine()
	if err != nil {
		return err
	}
	defer log.Sync()

	res, err := engine.AssignCitations(context.Background(), strings.Join(args, " "), evidence)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	for i, s := range res.Sentences {
		fmt.Printf("%d. %s\n", i+1, s.Text)
		if len(s.Citations) == 0 {
			fmt.Println("   (uncited)")
			continue
		}
		for _, c := range s.Citations {
			fmt.Printf("   [%s] confidence %.2f\n", c.ChunkID, c.Confidence)
		}
	}
	return nil
}

// readEvidence loads EvidenceChunks from a JSON file, or stdin when path is
// "-" or empty. Accepts either a bare chunk array or a full search result.
func readEvidence(path string) ([]types.EvidenceChunk, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening evidence file: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading evidence: %w", err)
	}

	var chunks []types.EvidenceChunk
	if err := json.Unmarshal(data, &chunks); err == nil {
		return chunks, nil
	}

	var wrapped struct {
		Evidence []types.EvidenceChunk `json:"evidence"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parsing evidence JSON: %w", err)
	}
	return wrapped.Evidence, nil
}

func init() {
	citeCmd.Flags().String("evidence", "", "JSON file with evidence chunks (default: stdin)")
	citeCmd.Flags().Bool("json", false, "output the full result as JSON")

	rootCmd.AddCommand(citeCmd)
}
