package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLister struct {
	bucket  string
	matches map[string][]string
}

func (f *fakeLister) Bucket() string { return f.bucket }

func (f *fakeLister) Glob(ctx context.Context, pattern string) ([]string, error) {
	return f.matches[pattern], nil
}

func table(t *testing.T, experiment string, entries map[VariantKey]string) *RunTable {
	t.Helper()
	tbl := NewRunTable(experiment)
	for k, url := range entries {
		require.NoError(t, tbl.Add(k, url))
	}
	return tbl
}

func TestMatchVariantsIntersection(t *testing.T) {
	modelA := VariantKey{"modelA", "r1i1p1f1"}
	modelB := VariantKey{"modelB", "r1i1p1f1"}

	ssp245 := table(t, "ssp245", map[VariantKey]string{modelA: "a245", modelB: "b245"})
	ssp585 := table(t, "ssp585", map[VariantKey]string{modelA: "a585"})
	historical := table(t, "historical", map[VariantKey]string{modelA: "ahist", modelB: "bhist"})

	matched := MatchVariants([]*RunTable{ssp245, ssp585}, historical)
	assert.Equal(t, []VariantKey{modelA}, matched)
}

func TestMatchVariantsEmptyTableYieldsNothing(t *testing.T) {
	modelA := VariantKey{"modelA", "r1i1p1f1"}
	full := table(t, "ssp245", map[VariantKey]string{modelA: "a"})
	historical := table(t, "historical", map[VariantKey]string{modelA: "h"})

	assert.Nil(t, MatchVariants([]*RunTable{full, NewRunTable("ssp585")}, historical))
	assert.Nil(t, MatchVariants([]*RunTable{full, nil}, historical))
	assert.Nil(t, MatchVariants([]*RunTable{full}, nil))
	assert.Nil(t, MatchVariants(nil, historical))
}

func TestMatchVariantsSortedOutput(t *testing.T) {
	keys := []VariantKey{
		{"zeta", "r1i1p1f1"},
		{"alpha", "r2i1p1f1"},
		{"alpha", "r1i1p1f1"},
	}
	entries := make(map[VariantKey]string)
	for _, k := range keys {
		entries[k] = "url"
	}
	s := table(t, "ssp245", entries)
	h := table(t, "historical", entries)

	matched := MatchVariants([]*RunTable{s}, h)
	assert.Equal(t, []VariantKey{
		{"alpha", "r1i1p1f1"},
		{"alpha", "r2i1p1f1"},
		{"zeta", "r1i1p1f1"},
	}, matched)
}

func TestExportRoundTrip(t *testing.T) {
	modelA := VariantKey{"modelA", "r1i1p1f1"}
	modelB := VariantKey{"modelB", "r1i1p1f1"}

	ssp245 := table(t, "ssp245", map[VariantKey]string{modelA: "s3://b/a245", modelB: "s3://b/b245"})
	ssp585 := table(t, "ssp585", map[VariantKey]string{modelA: "s3://b/a585", modelB: "s3://b/b585"})
	historical := table(t, "historical", map[VariantKey]string{modelA: "s3://b/ahist", modelB: "s3://b/bhist"})

	matched := MatchVariants([]*RunTable{ssp245, ssp585}, historical)
	require.Len(t, matched, 2)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, matched, []*RunTable{ssp245, ssp585}, historical))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"model", "variant", "ssp245", "ssp585", "historical"}, rows[0])

	// Each cell must equal the table's own record for that key.
	for _, row := range rows[1:] {
		key := VariantKey{Model: row[0], Variant: row[1]}
		for i, tbl := range []*RunTable{ssp245, ssp585, historical} {
			want, ok := tbl.URL(key)
			require.True(t, ok)
			assert.Equal(t, want, row[2+i])
		}
	}
}

func TestExportMissingScenarioTable(t *testing.T) {
	modelA := VariantKey{"modelA", "r1i1p1f1"}
	historical := table(t, "historical", map[VariantKey]string{modelA: "h"})

	// An empty scenario listing yields a nil table; exporting with it must
	// fail cleanly instead of dereferencing the nil pointer.
	empty, err := ListRuns(context.Background(), &fakeLister{bucket: "b"}, "ssp126", "tasmax", "Amon", zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, empty)

	var buf bytes.Buffer
	err = Export(&buf, nil, []*RunTable{empty}, historical)
	assert.ErrorContains(t, err, "scenario run table is missing")

	err = Export(&buf, nil, []*RunTable{historical}, nil)
	assert.ErrorContains(t, err, "historical run table is missing")
}

func TestExportBrokenPairingFails(t *testing.T) {
	modelA := VariantKey{"modelA", "r1i1p1f1"}
	ssp245 := table(t, "ssp245", map[VariantKey]string{})
	historical := table(t, "historical", map[VariantKey]string{modelA: "h"})

	var buf bytes.Buffer
	err := Export(&buf, []VariantKey{modelA}, []*RunTable{ssp245}, historical)
	assert.ErrorContains(t, err, "intersection and tables disagree")
}

func TestListRuns(t *testing.T) {
	lister := &fakeLister{
		bucket: "cmip6-pds",
		matches: map[string][]string{
			"CMIP6/*/*/*/ssp245/*/Amon/tasmax/": {
				"CMIP6/ScenarioMIP/NCC/NorESM2-MM/ssp245/r1i1p1f1/Amon/tasmax/",
				"CMIP6/ScenarioMIP/NOAA-GFDL/GFDL-ESM4/ssp245/r1i1p1f1/Amon/tasmax/",
			},
		},
	}

	tbl, err := ListRuns(context.Background(), lister, "ssp245", "tasmax", "Amon", zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())

	url, ok := tbl.URL(VariantKey{"NorESM2-MM", "r1i1p1f1"})
	require.True(t, ok)
	assert.Equal(t, "s3://cmip6-pds/CMIP6/ScenarioMIP/NCC/NorESM2-MM/ssp245/r1i1p1f1/Amon/tasmax", url)
}

func TestListRunsEmpty(t *testing.T) {
	tbl, err := ListRuns(context.Background(), &fakeLister{bucket: "b"}, "ssp126", "tasmax", "Amon", zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, tbl)
	assert.Equal(t, 0, tbl.Len())
}

func TestListRunsMalformedKey(t *testing.T) {
	lister := &fakeLister{
		bucket: "b",
		matches: map[string][]string{
			"CMIP6/*/*/*/historical/*/day/hus/": {"CMIP6/too/short/"},
		},
	}
	_, err := ListRuns(context.Background(), lister, "historical", "hus", "day", zap.NewNop())
	assert.ErrorContains(t, err, "malformed key")
}

func TestOutputFileName(t *testing.T) {
	assert.Equal(t, "cmip6_tasmax_Amon_urls.csv", OutputFileName("tasmax", "Amon"))
}
