package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
)

// OutputFileName encodes the searched variable and time resolution into
// the result file name, e.g. "cmip6_tasmax_Amon_urls.csv".
func OutputFileName(variable, tableID string) string {
	return fmt.Sprintf("cmip6_%s_%s_urls.csv", variable, tableID)
}

// Export writes one CSV row per matched key: model, variant, one URL
// column per scenario, then the historical URL. Every cell is found by
// explicit lookup; a matched key missing from any table means the
// pairing between the match list and the tables is broken, which is an
// error rather than a blank cell.
func Export(w io.Writer, matched []VariantKey, scenarios []*RunTable, historical *RunTable) error {
	if historical == nil {
		return fmt.Errorf("historical run table is missing")
	}
	for _, t := range scenarios {
		if t == nil {
			return fmt.Errorf("scenario run table is missing")
		}
	}

	cw := csv.NewWriter(w)

	header := []string{"model", "variant"}
	for _, t := range scenarios {
		header = append(header, t.Experiment)
	}
	header = append(header, "historical")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, key := range matched {
		row := []string{key.Model, key.Variant}
		for _, t := range scenarios {
			url, ok := t.URL(key)
			if !ok {
				return fmt.Errorf("matched variant %s has no %s entry: intersection and tables disagree", key, t.Experiment)
			}
			row = append(row, url)
		}
		url, ok := historical.URL(key)
		if !ok {
			return fmt.Errorf("matched variant %s has no historical entry: intersection and tables disagree", key)
		}
		row = append(row, url)

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", key, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
