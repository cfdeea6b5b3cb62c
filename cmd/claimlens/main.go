package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harbor-analytics/claimlens/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "claimlens",
		Short: "Case-aware document retrieval for insurance claims",
		Long:  "claimlens indexes SOP and policy documents and retrieves the passages most relevant to a claim case, with page-level citations",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.SearchCmd())
	rootCmd.AddCommand(cli.DocumentsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
