package main

import (
	"fmt"
	"os"

	"cmip6-pipeline/internal/api"
	"cmip6-pipeline/internal/store"
	"cmip6-pipeline/pkg/router"

	"github.com/spf13/cobra"
)

var (
	addr   string
	dbPath string
)

// @title CMIP6 Batch Dispatch API
// @version 1.0
// @description Status API for CMIP6 catalog matching and batch dispatch runs.
// @BasePath /api/v1
var rootCmd = &cobra.Command{
	Use:   "jobs-api",
	Short: "Serve run and submission status over HTTP",
	Long: `jobs-api exposes the batch tracking database: past dispatch runs,
their per-year job submissions, and per-dataset errors. Swagger UI is
served at /swagger/index.html.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.InitDB(dbPath); err != nil {
			return fmt.Errorf("failed to open %s: %w", dbPath, err)
		}

		r := router.New()
		api.RegisterRoutes(r)
		return r.Start(addr)
	},
}

func main() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	rootCmd.Flags().StringVar(&dbPath, "db", "batch.db", "tracking database path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
