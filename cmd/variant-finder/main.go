package main

import (
	"fmt"
	"os"
	"path/filepath"

	"cmip6-pipeline/internal/catalog"
	"cmip6-pipeline/internal/objectstore"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose        bool
	variable       string
	timeResolution string
	bucket         string
	outputDir      string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "variant-finder [scenarios...]",
	Short: "Find CMIP6 model runs shared by every scenario and the historical record",
	Long: `variant-finder scans the public CMIP6 bucket for one variable at one
time resolution, collects the (model, variant) runs available per
scenario, intersects them with the historical experiment, and writes
the matched run URLs to a CSV.

Only runs present in every requested scenario AND in historical are
exported; a model missing anywhere is dropped entirely.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: findVariants,
}

func findVariants(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scenarios := args
	if len(scenarios) == 0 {
		scenarios = []string{"ssp126", "ssp245", "ssp370", "ssp585"}
	}

	cfg := objectstore.ConfigFromEnv()
	cfg.Anonymous = true // the public catalog needs no credentials
	if bucket != "" {
		cfg.Bucket = bucket
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	client, err := objectstore.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	tables := make([]*catalog.RunTable, 0, len(scenarios))
	for _, scenario := range scenarios {
		tbl, err := catalog.ListRuns(ctx, client, scenario, variable, timeResolution, logger)
		if err != nil {
			return fmt.Errorf("failed to list %s runs: %w", scenario, err)
		}
		fmt.Printf("🔍 %s: %d runs\n", scenario, tbl.Len())
		tables = append(tables, tbl)
	}
	historical, err := catalog.ListRuns(ctx, client, "historical", variable, timeResolution, logger)
	if err != nil {
		return fmt.Errorf("failed to list historical runs: %w", err)
	}
	fmt.Printf("🔍 historical: %d runs\n", historical.Len())

	matched := catalog.MatchVariants(tables, historical)
	if len(matched) == 0 {
		fmt.Println("⚠️  No common model variants found")
		return nil
	}

	path := filepath.Join(outputDir, catalog.OutputFileName(variable, timeResolution))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := catalog.Export(f, matched, tables, historical); err != nil {
		return err
	}

	fmt.Printf("✅ Wrote %d matched runs to %s\n", len(matched), path)
	return nil
}

func main() {
	rootCmd.Flags().StringVar(&variable, "variable", "tasmax", "CMIP6 variable to search for")
	rootCmd.Flags().StringVar(&timeResolution, "time_resolution", "Amon", "CMIP6 table ID (time resolution)")
	rootCmd.Flags().StringVar(&bucket, "bucket", "", "catalog bucket (default cmip6-pds, or CMIP6_BUCKET)")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", ".", "directory for the result CSV")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
