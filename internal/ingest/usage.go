package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"rubswatch/internal/anomaly"
)

// LoadUsage reads usage rows from a CSV or JSON file and groups them by property and utility.
func LoadUsage(path string) ([]anomaly.Property, error) {
	file, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	properties, err := ReadUsage(file, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("load usage from %s: %w", path, err)
	}
	return properties, nil
}

// ReadUsage decodes usage rows and groups them with anomaly.GroupReadings.
func ReadUsage(r io.Reader, format Format) ([]anomaly.Property, error) {
	var rows []anomaly.Reading
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode usage: %w", err)
		}
		if len(rows) == 0 {
			return nil, ErrEmptyInput
		}
	default:
		raw, lines, err := csvRows(r, "property_id", "utility_type", "month", "usage")
		if err != nil {
			return nil, err
		}
		rows = make([]anomaly.Reading, 0, len(raw))
		for i, row := range raw {
			usage, err := strconv.ParseFloat(row["usage"], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid usage %q: %w", lines[i], row["usage"], err)
			}
			rows = append(rows, anomaly.Reading{
				PropertyID:   row["property_id"],
				PropertyName: row["property_name"],
				UtilityType:  row["utility_type"],
				Month:        row["month"],
				Usage:        usage,
			})
		}
	}
	return anomaly.GroupReadings(rows)
}
