package dispatch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadInputs pulls the dataset URLs out of a CSV produced by the catalog
// matcher (or written by hand). Any column named "urls" qualifies; empty
// cells are skipped.
func ReadInputs(r io.Reader) ([]string, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read input csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("input csv is empty")
	}

	col := -1
	for i, name := range rows[0] {
		if strings.TrimSpace(name) == "urls" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("input csv has no \"urls\" column (header: %v)", rows[0])
	}

	var urls []string
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if url := strings.TrimSpace(row[col]); url != "" {
			urls = append(urls, url)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("input csv holds no dataset URLs")
	}
	return urls, nil
}
