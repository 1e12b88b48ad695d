// Package main provides the paperchat CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// configPath is the --config flag shared by every command.
var configPath string

func main() {
	// Load .env if present; environment always wins over the config file.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "paperchat",
	Short: "Chat with a collection of research papers",
	Long: `paperchat indexes uploaded PDF research papers into a local vector
store and answers natural-language questions about them, citing the
papers it draws on. When the vector store is unavailable it falls back
to keyword search over the full paper texts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "paperchat.yml", "Path to the YAML config file")
	rootCmd.Version = Version
}
