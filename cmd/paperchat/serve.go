package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"paperchat/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the paper chat API. Endpoints require a bearer token; upload
and reprocess require the admin token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitConfigError)
		}

		if cfg.UsingDefaultTokens() {
			log.Printf("[paperchat] WARNING: serving with default access tokens; set ADMIN_TOKEN and PUBLIC_TOKEN")
		}

		proc, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		srv := server.New(proc, proc.Ledger(), cfg.UploadDir, cfg.AdminToken, cfg.PublicToken)

		log.Printf("[paperchat] listening on %s", cfg.ListenAddr)
		return http.ListenAndServe(cfg.ListenAddr, srv.Handler())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
