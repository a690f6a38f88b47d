package dispatch

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Result is the per-dataset outcome of a batch run.
type Result struct {
	Input       string
	Submissions []Submission
	Err         error
}

// Run dispatches every input dataset through a fixed-size worker pool.
// A dataset that fails to preprocess or submit is recorded in its
// result and does not stop the rest of the batch.
func (d *Dispatcher) Run(ctx context.Context, inputs []string) []Result {
	workers := runtime.NumCPU()
	if workers > len(inputs) {
		workers = len(inputs)
	}

	urls := make(chan string)
	results := make(chan Result)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range urls {
				subs, err := d.DispatchDataset(ctx, url)
				results <- Result{Input: url, Submissions: subs, Err: err}
			}
		}()
	}

	go func() {
		for _, url := range inputs {
			urls <- url
		}
		close(urls)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var out []Result
	for r := range results {
		if r.Err != nil {
			d.Log.Error("dataset failed", zap.String("input", r.Input), zap.Error(r.Err))
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Input < out[j].Input })
	return out
}
