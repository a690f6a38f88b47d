// Package catalog discovers which CMIP6 model variants have complete
// data coverage across a set of experiments, by listing the public
// bucket and intersecting the (model, variant) keys found per
// experiment.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cmip6-pipeline/internal/cmip6"

	"go.uber.org/zap"
)

// VariantKey identifies one ensemble member of one model.
type VariantKey struct {
	Model   string
	Variant string
}

func (k VariantKey) String() string {
	return k.Model + "/" + k.Variant
}

// RunTable maps variant keys to storage URLs for a single experiment.
// Each key holds exactly one URL; a duplicate listing hit is a
// data-quality problem reported by Add.
type RunTable struct {
	Experiment string
	urls       map[VariantKey]string
}

func NewRunTable(experiment string) *RunTable {
	return &RunTable{Experiment: experiment, urls: make(map[VariantKey]string)}
}

// Add records a run. Adding a key twice is an error.
func (t *RunTable) Add(key VariantKey, url string) error {
	if prev, ok := t.urls[key]; ok {
		return fmt.Errorf("experiment %s already has %s at %s", t.Experiment, key, prev)
	}
	t.urls[key] = url
	return nil
}

// URL looks up the storage location for a key.
func (t *RunTable) URL(key VariantKey) (string, bool) {
	url, ok := t.urls[key]
	return url, ok
}

// Len is the number of recorded runs.
func (t *RunTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.urls)
}

// Keys returns the table's variant keys, sorted by model then variant.
func (t *RunTable) Keys() []VariantKey {
	if t == nil {
		return nil
	}
	keys := make([]VariantKey, 0, len(t.urls))
	for k := range t.urls {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func sortKeys(keys []VariantKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Model != keys[j].Model {
			return keys[i].Model < keys[j].Model
		}
		return keys[i].Variant < keys[j].Variant
	})
}

// Lister lists bucket prefixes matching a wildcard pattern.
type Lister interface {
	Bucket() string
	Glob(ctx context.Context, pattern string) ([]string, error)
}

// ListRuns builds the run table for one experiment by globbing
// CMIP6/*/*/*/<experiment>/*/<table>/<variable>/ and parsing every hit.
// A parse failure is a hard error: a misshapen key would otherwise be
// recorded under the wrong variant. An empty listing yields a nil table.
func ListRuns(ctx context.Context, l Lister, experiment, variable, tableID string, log *zap.Logger) (*RunTable, error) {
	pattern := strings.Join([]string{"CMIP6", "*", "*", "*", experiment, "*", tableID, variable}, "/") + "/"
	matches, err := l.Glob(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s runs: %w", experiment, err)
	}
	if len(matches) == 0 {
		log.Info("no runs found", zap.String("experiment", experiment), zap.String("variable", variable))
		return nil, nil
	}

	table := NewRunTable(experiment)
	for _, key := range matches {
		dp, err := cmip6.ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("listing for %s returned malformed key: %w", experiment, err)
		}
		url := "s3://" + l.Bucket() + "/" + strings.Trim(key, "/")
		if err := table.Add(VariantKey{Model: dp.Model, Variant: dp.Variant}, url); err != nil {
			// Duplicate variant under two activities; keep the first hit.
			log.Warn("duplicate run ignored", zap.String("key", key), zap.Error(err))
		}
	}
	log.Info("listed runs",
		zap.String("experiment", experiment),
		zap.String("variable", variable),
		zap.Int("count", table.Len()))
	return table, nil
}
