package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harbor-analytics/claimlens/internal/config"
	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/harbor-analytics/claimlens/internal/index"
)

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	var (
		caseID       string
		claimType    string
		state        string
		propertyType string
		amount       float64
		notes        string
		docsDir      string
		outputJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find documents relevant to a claim case",
		Long:  "Builds a query from claim case fields and retrieves the most relevant document excerpts with page-level citations.",
		RunE: func(cmd *cobra.Command, args []string) error {
			caseRec := domain.CaseRecord{
				CaseID:       caseID,
				ClaimType:    claimType,
				State:        state,
				PropertyType: propertyType,
				ClaimAmount:  amount,
				Notes:        notes,
			}
			return runSearch(caseRec, docsDir, outputJSON)
		},
	}

	cmd.Flags().StringVar(&caseID, "case-id", "", "Case identifier, used for tracing only")
	cmd.Flags().StringVarP(&claimType, "claim-type", "t", "", "Claim type (e.g. water_damage)")
	cmd.Flags().StringVarP(&state, "state", "s", "", "US state code (e.g. CA)")
	cmd.Flags().StringVar(&propertyType, "property-type", "", "Property type (e.g. residential)")
	cmd.Flags().Float64VarP(&amount, "amount", "a", 0, "Claimed amount in dollars")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text adjuster notes")
	cmd.Flags().StringVar(&docsDir, "docs", "", "Ingest this directory into an in-memory index instead of using the database")
	cmd.Flags().BoolVarP(&outputJSON, "output", "o", false, "Output results as JSON")

	return cmd
}

func runSearch(caseRec domain.CaseRecord, docsDir string, outputJSON bool) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry := initTelemetry()
	defer shutdownTelemetry()

	embSvc, err := newEmbeddingService(cfg)
	if err != nil {
		return err
	}

	var idx index.Index
	if docsDir != "" {
		// One-shot mode: build a throwaway in-memory index from a directory.
		mem := index.NewMemoryIndex()
		svc, err := newIngestService(cfg, embSvc, mem)
		if err != nil {
			return err
		}
		report, err := svc.IngestDirectory(ctx, docsDir)
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d documents (%d chunks)\n\n", report.Succeeded, report.Chunks)
		idx = mem
	} else {
		pgIdx, pool, err := newPgIndex(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer pool.Close()
		idx = pgIdx
	}

	retrievalSvc := newRetrievalService(cfg, embSvc, idx)

	results, err := retrievalSvc.Retrieve(ctx, caseRec)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No relevant documents found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, r := range results {
		fmt.Printf("%d. %s, page %d (score %.2f, %s confidence)\n",
			i+1, r.DocumentName, r.PageNumber, r.Score, r.Confidence)
		if r.Excerpt != "" {
			fmt.Printf("   %s\n", r.Excerpt)
		}
		fmt.Printf("   Chunk: %s\n", r.ChunkID)
		if i < len(results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
