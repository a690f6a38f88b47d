// Package dispatch turns one input Zarr dataset into an output shell
// plus one fire-and-forget serverless job per 366-day year, and carries
// the worker-side logic those jobs run.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cmip6-pipeline/internal/cmip6"
	"cmip6-pipeline/internal/dataset"
	"cmip6-pipeline/internal/zarr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoreFactory opens a zarr store for a dataset URL.
type StoreFactory interface {
	OpenStore(ctx context.Context, url string) (zarr.Store, error)
}

// Resolver expands a dataset prefix to its deepest concrete store path,
// picking the latest version when several exist.
type Resolver interface {
	Bucket() string
	ResolveDeepest(ctx context.Context, prefix string, levels int) (string, error)
}

// Submission pairs a submitted job with the executor's handle for it.
type Submission struct {
	Job    Job
	Handle string
}

// Dispatcher drives the batch side: per input dataset it builds the
// output shell and submits one job per year.
type Dispatcher struct {
	Stores       StoreFactory
	Exec         Executor
	Resolver     Resolver // optional; nil means input URLs are already complete
	OutputBucket string
	Variable     string
	Transform    string
	Log          *zap.Logger
}

// outputAttrs is the group attribute template stamped onto every output
// store, identifying the run the data came from.
func outputAttrs(p cmip6.DatasetPath) zarr.Attrs {
	return zarr.Attrs{
		"title":        "Serverless Climate Data Processing Demo",
		"institution":  "NC Institute for Climate Studies",
		"date_created": time.Now().UTC().Format(time.RFC3339),
		"model":        p.Model,
		"scenario":     p.Experiment,
		"variant":      p.Variant,
	}
}

// resolve completes a catalog URL that stops at the variable segment by
// descending through the grid and version levels.
func (d *Dispatcher) resolve(ctx context.Context, inputURL string) (string, error) {
	if d.Resolver == nil {
		return inputURL, nil
	}
	bucket, key, err := cmip6.SplitURL(inputURL)
	if err != nil {
		return "", err
	}
	if bucket != d.Resolver.Bucket() {
		return "", fmt.Errorf("input %q is not in bucket %q", inputURL, d.Resolver.Bucket())
	}
	p, err := cmip6.ParseKey(key)
	if err != nil {
		return "", err
	}

	levels := 0
	switch {
	case p.Grid == "":
		levels = 2
	case p.Version == "":
		levels = 1
	}
	if levels == 0 {
		return inputURL, nil
	}
	resolved, err := d.Resolver.ResolveDeepest(ctx, key, levels)
	if err != nil {
		return "", fmt.Errorf("no zarr store found under %q: %w", inputURL, err)
	}
	return "s3://" + bucket + "/" + strings.TrimSuffix(resolved, "/"), nil
}

// Preprocess opens the input with metadata only, normalizes and
// transforms its schema, and writes the output shell. It returns the
// output URL and the years a full run must compute.
func (d *Dispatcher) Preprocess(ctx context.Context, inputURL string) (string, []int, error) {
	p, err := cmip6.ParseURL(inputURL)
	if err != nil {
		return "", nil, err
	}
	transform, err := dataset.Lookup(d.Transform)
	if err != nil {
		return "", nil, err
	}

	in, err := d.Stores.OpenStore(ctx, inputURL)
	if err != nil {
		return "", nil, err
	}
	g, err := zarr.OpenGroup(ctx, in)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open input %q: %w", inputURL, err)
	}
	a, err := readVariable(ctx, g, d.Variable, true)
	if err != nil {
		return "", nil, err
	}

	norm, err := dataset.Normalize366(a)
	if err != nil {
		return "", nil, err
	}
	out, err := transform(norm)
	if err != nil {
		return "", nil, err
	}
	years, err := dataset.Years(norm)
	if err != nil {
		return "", nil, err
	}

	outputURL := cmip6.OutputURL(p, d.OutputBucket, out.Name)
	outStore, err := d.Stores.OpenStore(ctx, outputURL)
	if err != nil {
		return "", nil, err
	}
	if err := writeShell(ctx, outStore, out, outputAttrs(p)); err != nil {
		return "", nil, fmt.Errorf("failed to write output shell %q: %w", outputURL, err)
	}

	d.Log.Info("created output shell",
		zap.String("input", inputURL),
		zap.String("output", outputURL),
		zap.Int("years", len(years)))
	return outputURL, years, nil
}

// DispatchDataset resolves one input, builds its shell, and submits one
// job per year. The returned submissions carry the executor handles the
// tracking store records.
func (d *Dispatcher) DispatchDataset(ctx context.Context, inputURL string) ([]Submission, error) {
	resolved, err := d.resolve(ctx, inputURL)
	if err != nil {
		return nil, err
	}
	outputURL, years, err := d.Preprocess(ctx, resolved)
	if err != nil {
		return nil, err
	}

	subs := make([]Submission, 0, len(years))
	for _, year := range years {
		job := Job{
			ID:        uuid.NewString(),
			Input:     resolved,
			Output:    outputURL,
			Variable:  d.Variable,
			Transform: d.Transform,
			Year:      year,
		}
		handle, err := d.Exec.Submit(ctx, job)
		if err != nil {
			return subs, fmt.Errorf("failed to submit year %d of %q: %w", year, resolved, err)
		}
		subs = append(subs, Submission{Job: job, Handle: handle})
	}

	d.Log.Info("submitted dataset",
		zap.String("input", resolved),
		zap.String("executor", d.Exec.Name()),
		zap.Int("jobs", len(subs)))
	return subs, nil
}

// Process is the worker side of a year job: read the input variable,
// normalize its calendar, apply the transform, cut out the job's year,
// and write it into the output region its offset addresses.
func Process(ctx context.Context, stores StoreFactory, job Job, log *zap.Logger) error {
	transform, err := dataset.Lookup(job.Transform)
	if err != nil {
		return err
	}

	in, err := stores.OpenStore(ctx, job.Input)
	if err != nil {
		return err
	}
	g, err := zarr.OpenGroup(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to open input %q: %w", job.Input, err)
	}
	a, err := readVariable(ctx, g, job.Variable, false)
	if err != nil {
		return err
	}

	norm, err := dataset.Normalize366(a)
	if err != nil {
		return err
	}
	out, err := transform(norm)
	if err != nil {
		return err
	}
	offset, sliced, err := dataset.YearSlice(out, job.Year)
	if err != nil {
		return err
	}

	outStore, err := stores.OpenStore(ctx, job.Output)
	if err != nil {
		return err
	}
	og, err := zarr.OpenGroup(ctx, outStore)
	if err != nil {
		return fmt.Errorf("failed to open output %q: %w", job.Output, err)
	}
	arr, ok := og.Array(out.Name)
	if !ok {
		return fmt.Errorf("output %q has no array %q", job.Output, out.Name)
	}
	if err := arr.WriteRegion0(ctx, offset, sliced.Data); err != nil {
		return fmt.Errorf("failed to write year %d at row %d: %w", job.Year, offset, err)
	}

	log.Info("wrote year region",
		zap.String("output", job.Output),
		zap.Int("year", job.Year),
		zap.Int("row_offset", offset))
	return nil
}
