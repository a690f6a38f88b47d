package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"cmip6-pipeline/internal/dispatch"
	"cmip6-pipeline/internal/objectstore"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose   bool
	payload   bool
	inputURL  string
	outputURL string
	variable  string
	transform string
	year      int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "year-worker",
	Short: "Process one dispatched year job",
	Long: `year-worker is the container entrypoint the dispatcher invokes once
per year. It computes one year of the transformed dataset and writes it
into that year's region of the output store. The job comes either from
flags or, with --payload, as a JSON job document on stdin.`,
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
	RunE: runJob,
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var job dispatch.Job
	if payload {
		doc, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read job payload: %w", err)
		}
		if err := json.Unmarshal(doc, &job); err != nil {
			return fmt.Errorf("failed to parse job payload: %w", err)
		}
	} else {
		if inputURL == "" || outputURL == "" || year == 0 {
			return fmt.Errorf("need --input, --output and --year (or --payload)")
		}
		job = dispatch.Job{
			Input:     inputURL,
			Output:    outputURL,
			Variable:  variable,
			Transform: transform,
			Year:      year,
		}
	}

	cfg := objectstore.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	factory := objectstore.NewFactory(cfg, logger)

	if err := dispatch.Process(ctx, factory, job, logger); err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	fmt.Printf("✅ Wrote year %d to %s\n", job.Year, job.Output)
	return nil
}

func main() {
	rootCmd.Flags().BoolVar(&payload, "payload", false, "read a JSON job document from stdin")
	rootCmd.Flags().StringVar(&inputURL, "input", "", "input dataset URL")
	rootCmd.Flags().StringVar(&outputURL, "output", "", "output store URL")
	rootCmd.Flags().StringVar(&variable, "variable", "hus", "input variable to read")
	rootCmd.Flags().StringVar(&transform, "transform", "tpw", "named transform to apply")
	rootCmd.Flags().IntVar(&year, "year", 0, "calendar year to process")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
