// Package ingest reads tenant profiles and usage histories from CSV or JSON files and rejects
// incomplete rows before they reach the engines.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmptyInput is returned when a file holds no data rows.
var ErrEmptyInput = errors.New("ingest: no records found")

// Format identifies an input encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// FormatFromPath infers the format from the file extension, defaulting to CSV.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatCSV
}

func openFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return file, nil
}

// csvRows reads a CSV with a header row and returns each data row keyed by lower-cased column name.
// Line numbers are 1-based and count the header.
func csvRows(r io.Reader, required ...string) ([]map[string]string, []int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmptyInput
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", name)
		}
	}

	var rows []map[string]string
	var lines []int
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		row := make(map[string]string, len(columns))
		for name, idx := range columns {
			if idx < len(record) {
				row[name] = strings.TrimSpace(record[idx])
			}
		}
		rows = append(rows, row)
		lines = append(lines, line)
	}

	if len(rows) == 0 {
		return nil, nil, ErrEmptyInput
	}
	return rows, lines, nil
}
