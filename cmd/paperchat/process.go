package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <file.pdf>...",
	Short: "Process PDFs from the command line",
	Long: `Process one or more PDF files into the index and ledger without
going through the HTTP API. Files are read in place; they are not
copied into the upload directory.`,
	Args: cobra.MinimumNArgs(1),
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

		failed := 0
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		for _, path := range args {
			result := proc.Process(cmd.Context(), path)
			if result.Status != "success" {
				failed++
			}
			if err := enc.Encode(result); err != nil {
				return err
			}
		}

		if failed > 0 {
			os.Exit(ExitError)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
