package dispatch

import (
	"context"
	"fmt"

	"cmip6-pipeline/internal/dataset"
	"cmip6-pipeline/internal/store"
	"cmip6-pipeline/internal/zarr"

	"go.uber.org/zap"
)

// YearWritten reports whether a job's year chunk has been materialized
// in an output group.
func YearWritten(ctx context.Context, g *zarr.Group, year int) (bool, error) {
	arr, err := dataArray(g)
	if err != nil {
		return false, err
	}
	timeArr, ok := g.Array("time")
	if !ok {
		return false, fmt.Errorf("output store has no time coordinate")
	}

	tc := dataset.TimeCoord{
		Values:   []float64{0},
		Units:    timeArr.Attrs().StringAttr("units"),
		Calendar: timeArr.Attrs().StringAttr("calendar"),
	}
	epoch, err := tc.Date(0)
	if err != nil {
		return false, err
	}

	offset := (year - epoch.Year) * dataset.DaysPerYear
	if offset < 0 || offset >= arr.Meta().Shape[0] {
		return false, fmt.Errorf("year %d is outside the output time axis", year)
	}
	return arr.ChunkExists0(ctx, offset)
}

// VerifyRun inspects the output stores behind a run's submissions and
// moves each to succeeded or missing. Submission is fire-and-forget, so
// this is the only place job completion is ever established.
func VerifyRun(ctx context.Context, stores StoreFactory, runID string, log *zap.Logger) (succeeded, missing int, err error) {
	subs, err := store.ListSubmissions(runID)
	if err != nil {
		return 0, 0, err
	}

	groups := make(map[string]*zarr.Group)
	for _, sub := range subs {
		g, ok := groups[sub.OutputURL]
		if !ok {
			st, err := stores.OpenStore(ctx, sub.OutputURL)
			if err != nil {
				return succeeded, missing, err
			}
			g, err = zarr.OpenGroup(ctx, st)
			if err != nil {
				return succeeded, missing, fmt.Errorf("failed to open output %q: %w", sub.OutputURL, err)
			}
			groups[sub.OutputURL] = g
		}

		written, err := YearWritten(ctx, g, sub.Year)
		if err != nil {
			return succeeded, missing, fmt.Errorf("submission %q: %w", sub.Handle, err)
		}
		status := store.StatusMissing
		if written {
			status = store.StatusSucceeded
			succeeded++
		} else {
			missing++
		}
		if err := store.UpdateSubmissionStatus(sub.Handle, status); err != nil {
			return succeeded, missing, err
		}
	}

	log.Info("verified run",
		zap.String("run_id", runID),
		zap.Int("succeeded", succeeded),
		zap.Int("missing", missing))
	return succeeded, missing, nil
}
