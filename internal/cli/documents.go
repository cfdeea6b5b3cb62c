package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harbor-analytics/claimlens/internal/config"
)

// DocumentsCmd returns the documents command
func DocumentsCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"ls"},
		Short:   "List indexed documents",
		Long:    "Lists every document in the search index with its chunk count and last ingestion time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocuments(outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&outputJSON, "output", "o", false, "Output listing as JSON")

	return cmd
}

func runDocuments(outputJSON bool) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	idx, pool, err := newPgIndex(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer pool.Close()

	stats, err := idx.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if outputJSON {
		type docJSON struct {
			DocumentID   string `json:"document_id"`
			DocumentName string `json:"document_name"`
			Chunks       int    `json:"chunks"`
			UpdatedAt    string `json:"updated_at,omitempty"`
		}
		out := make([]docJSON, len(stats))
		for i, s := range stats {
			out[i] = docJSON{
				DocumentID:   s.DocumentID,
				DocumentName: s.DocumentName,
				Chunks:       s.Chunks,
			}
			if !s.UpdatedAt.IsZero() {
				out[i].UpdatedAt = s.UpdatedAt.Format(time.RFC3339)
			}
		}
		payload, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(payload))
		return nil
	}

	if len(stats) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tNAME\tCHUNKS\tUPDATED")
	for _, s := range stats {
		updated := ""
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.DocumentID, s.DocumentName, s.Chunks, updated)
	}
	return w.Flush()
}
