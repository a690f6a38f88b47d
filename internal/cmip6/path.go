package cmip6

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadPath reports a storage key that does not follow the CMIP6 bucket
// layout. Callers must treat this as a hard error: a key with the wrong
// depth would otherwise be parsed into the wrong identifiers.
var ErrBadPath = errors.New("unexpected path structure")

// DatasetPath is a parsed CMIP6 storage key. The public bucket lays keys
// out as:
//
//	CMIP6/<activity>/<institution>/<model>/<experiment>/<variant>/<table>/<variable>[/<grid>[/<version>]]
//
// Grid and Version are optional; everything else is required.
type DatasetPath struct {
	Activity    string `json:"activity"`
	Institution string `json:"institution"`
	Model       string `json:"model"`
	Experiment  string `json:"experiment"`
	Variant     string `json:"variant"`
	Table       string `json:"table"`
	Variable    string `json:"variable"`
	Grid        string `json:"grid,omitempty"`
	Version     string `json:"version,omitempty"`
}

// SplitURL splits an s3:// URL (or a bare bucket/key string) into bucket
// and key.
func SplitURL(url string) (bucket, key string, err error) {
	s := strings.TrimPrefix(url, "s3://")
	s = strings.Trim(s, "/")
	bucket, key, found := strings.Cut(s, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q has no bucket/key separator", ErrBadPath, url)
	}
	return bucket, key, nil
}

// ParseKey parses a bucket-relative CMIP6 key into named fields. It
// validates the segment count and rejects empty segments instead of
// silently misassigning fields.
func ParseKey(key string) (DatasetPath, error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) < 8 || len(parts) > 10 {
		return DatasetPath{}, fmt.Errorf("%w: %q has %d segments, want 8-10", ErrBadPath, key, len(parts))
	}
	if parts[0] != "CMIP6" {
		return DatasetPath{}, fmt.Errorf("%w: %q does not start with CMIP6/", ErrBadPath, key)
	}
	for i, p := range parts {
		if p == "" {
			return DatasetPath{}, fmt.Errorf("%w: %q has an empty segment at offset %d", ErrBadPath, key, i)
		}
	}

	dp := DatasetPath{
		Activity:    parts[1],
		Institution: parts[2],
		Model:       parts[3],
		Experiment:  parts[4],
		Variant:     parts[5],
		Table:       parts[6],
		Variable:    parts[7],
	}
	if len(parts) > 8 {
		dp.Grid = parts[8]
	}
	if len(parts) > 9 {
		dp.Version = parts[9]
	}
	if !strings.HasPrefix(dp.Variant, "r") {
		return DatasetPath{}, fmt.Errorf("%w: %q has variant segment %q, want r<n>i<n>p<n>f<n>", ErrBadPath, key, dp.Variant)
	}
	return dp, nil
}

// ParseURL parses a full s3:// dataset URL.
func ParseURL(url string) (DatasetPath, error) {
	_, key, err := SplitURL(url)
	if err != nil {
		return DatasetPath{}, err
	}
	return ParseKey(key)
}

// Key rebuilds the bucket-relative storage key for the dataset.
func (p DatasetPath) Key() string {
	parts := []string{"CMIP6", p.Activity, p.Institution, p.Model, p.Experiment, p.Variant, p.Table, p.Variable}
	if p.Grid != "" {
		parts = append(parts, p.Grid)
		if p.Version != "" {
			parts = append(parts, p.Version)
		}
	}
	return strings.Join(parts, "/")
}

// OutputName builds the flat output store name for a processed dataset:
// the identifying path segments joined by underscores plus a variable
// suffix, e.g. "CMIP6_ScenarioMIP_NCC_NorESM2-MM_ssp245_r1i1p1f1_tpw".
func OutputName(p DatasetPath, suffix string) string {
	return strings.Join([]string{"CMIP6", p.Activity, p.Institution, p.Model, p.Experiment, p.Variant, suffix}, "_")
}

// OutputURL places the output store name under the given bucket.
func OutputURL(p DatasetPath, bucket, suffix string) string {
	return "s3://" + bucket + "/" + OutputName(p, suffix)
}
