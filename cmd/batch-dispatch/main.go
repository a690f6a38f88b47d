package main

import (
	"fmt"
	"os"

	"cmip6-pipeline/internal/dispatch"
	"cmip6-pipeline/internal/objectstore"
	"cmip6-pipeline/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose      bool
	inputPath    string
	variable     string
	transform    string
	outputBucket string
	functionName string
	memoryMB     int32
	local        bool
	verify       bool
	dbPath       string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "batch-dispatch",
	Short: "Fan CMIP6 datasets out into one serverless job per year",
	Long: `batch-dispatch reads dataset URLs from a CSV, and for each one
builds an empty output store normalized to 366-day years, then submits
one fire-and-forget job per calendar year. Each job fills its own
chunk-aligned region, so jobs never coordinate.

Submissions are recorded in a local SQLite database; --verify inspects
the output stores afterwards and marks each submission succeeded or
missing.`,
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
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if outputBucket == "" {
		outputBucket = os.Getenv("OUTPUT_BUCKET")
	}
	if outputBucket == "" {
		return fmt.Errorf("no output bucket: set --output-bucket or OUTPUT_BUCKET")
	}
	if functionName == "" {
		functionName = os.Getenv("IMAGE_NAME")
	}
	if functionName == "" {
		functionName = "serverless-demo:latest"
	}

	if err := store.InitDB(dbPath); err != nil {
		return fmt.Errorf("failed to open %s: %w", dbPath, err)
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	inputs, err := dispatch.ReadInputs(f)
	f.Close()
	if err != nil {
		return err
	}

	cfg := objectstore.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	factory := objectstore.NewFactory(cfg, logger)
	resolver, err := objectstore.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var localExec *dispatch.LocalExecutor
	var exec dispatch.Executor
	if local {
		localExec = &dispatch.LocalExecutor{Stores: factory, Log: logger}
		exec = localExec
	} else {
		lambdaExec, err := dispatch.NewLambdaExecutor(ctx, functionName, logger)
		if err != nil {
			return err
		}
		if err := lambdaExec.EnsureRuntime(ctx, memoryMB); err != nil {
			return err
		}
		exec = lambdaExec
	}

	d := &dispatch.Dispatcher{
		Stores:       factory,
		Exec:         exec,
		Resolver:     resolver,
		OutputBucket: outputBucket,
		Variable:     variable,
		Transform:    transform,
		Log:          logger,
	}

	runID := uuid.New().String()
	if err := store.CreateRun(runID, inputPath, outputBucket); err != nil {
		return err
	}
	fmt.Printf("🚀 Run %s: dispatching %d datasets via %s\n", runID, len(inputs), exec.Name())

	results := d.Run(ctx, inputs)

	submitted, failed := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			if err := store.SaveRunError(runID, r.Input, r.Err); err != nil {
				return err
			}
			continue
		}
		for _, s := range r.Submissions {
			submitted++
			if err := store.SaveSubmission(runID, s.Job.Input, s.Job.Output, s.Job.Year, s.Handle); err != nil {
				return err
			}
		}
	}

	status := "completed"
	if failed > 0 {
		status = "completed_with_errors"
	}
	if err := store.UpdateRunStatus(runID, status); err != nil {
		return err
	}

	if localExec != nil {
		if err := localExec.Wait(); err != nil {
			logger.Error("local jobs failed", zap.Error(err))
		}
		for _, handle := range localExec.Failed() {
			if err := store.UpdateSubmissionStatus(handle, store.StatusFailed); err != nil {
				logger.Warn("failed to record job failure", zap.String("handle", handle), zap.Error(err))
			}
		}
	}
	if verify {
		succeeded, missing, err := dispatch.VerifyRun(ctx, factory, runID, logger)
		if err != nil {
			return err
		}
		fmt.Printf("🔎 Verified: %d succeeded, %d missing\n", succeeded, missing)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d datasets failed; %d jobs submitted (run %s)", failed, len(results), submitted, runID)
	}
	fmt.Printf("✅ Submitted %d jobs across %d datasets\n", submitted, len(results))
	return nil
}

func main() {
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "urls.csv", "CSV with a urls column of input datasets")
	rootCmd.Flags().StringVar(&variable, "variable", "hus", "input variable to read")
	rootCmd.Flags().StringVar(&transform, "transform", "tpw", "named transform to apply per year")
	rootCmd.Flags().StringVar(&outputBucket, "output-bucket", "", "bucket for output stores (or OUTPUT_BUCKET)")
	rootCmd.Flags().StringVar(&functionName, "image-name", "", "worker function to invoke (or IMAGE_NAME)")
	rootCmd.Flags().Int32Var(&memoryMB, "mem", 3000, "worker memory in MB")
	rootCmd.Flags().BoolVar(&local, "local", false, "run jobs in-process instead of invoking the worker function")
	rootCmd.Flags().BoolVar(&verify, "verify", false, "after submitting, check the output stores for written years")
	rootCmd.Flags().StringVar(&dbPath, "db", "batch.db", "tracking database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}
