package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Rebuild the index from the upload directory",
	Long: `Clear the vector index and the processing ledger, then process every
PDF in the upload directory from scratch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitConfigError)
		}

		proc, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		result := proc.ReprocessAll(cmd.Context())

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}

		if result.Failed > 0 {
			os.Exit(ExitError)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reprocessCmd)
}
