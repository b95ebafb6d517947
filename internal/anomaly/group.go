package anomaly

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// MonthLayout is the layout of usage month labels.
const MonthLayout = "2006-01"

// Reading is one flat monthly reading before grouping.
type Reading struct {
	PropertyID   string  `json:"property_id"`
	PropertyName string  `json:"property_name"`
	UtilityType  string  `json:"utility_type"`
	Month        string  `json:"month"`
	Usage        float64 `json:"usage"`
}

// GroupReadings groups flat readings into properties in first-seen order. Each utility history is
// sorted by month; a month repeated within one history is rejected, as is a negative or non-finite
// usage.
func GroupReadings(rows []Reading) ([]Property, error) {
	var properties []Property
	propertyIdx := make(map[string]int)
	utilityIdx := make(map[string]int)

	for i, row := range rows {
		if row.PropertyID == "" {
			return nil, fmt.Errorf("row %d: property_id is required", i+1)
		}
		utility, err := ParseUtilityType(row.UtilityType)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if _, err := time.Parse(MonthLayout, row.Month); err != nil {
			return nil, fmt.Errorf("row %d: month %q must be YYYY-MM", i+1, row.Month)
		}
		if math.IsNaN(row.Usage) || math.IsInf(row.Usage, 0) {
			return nil, fmt.Errorf("row %d: usage must be a finite number", i+1)
		}
		if row.Usage < 0 {
			return nil, fmt.Errorf("row %d: usage cannot be negative", i+1)
		}

		pi, ok := propertyIdx[row.PropertyID]
		if !ok {
			pi = len(properties)
			propertyIdx[row.PropertyID] = pi
			properties = append(properties, Property{ID: row.PropertyID, Name: row.PropertyName})
		}
		if properties[pi].Name == "" {
			properties[pi].Name = row.PropertyName
		}

		key := row.PropertyID + "\x00" + string(utility)
		ui, ok := utilityIdx[key]
		if !ok {
			ui = len(properties[pi].Utilities)
			utilityIdx[key] = ui
			properties[pi].Utilities = append(properties[pi].Utilities, UtilityHistory{Utility: utility})
		}
		history := &properties[pi].Utilities[ui]
		history.Records = append(history.Records, UsageRecord{Month: row.Month, Usage: row.Usage})
	}

	for pi := range properties {
		for ui := range properties[pi].Utilities {
			history := &properties[pi].Utilities[ui]
			slices.SortStableFunc(history.Records, func(a, b UsageRecord) int {
				return strings.Compare(a.Month, b.Month)
			})
			for k := 1; k < len(history.Records); k++ {
				if history.Records[k].Month == history.Records[k-1].Month {
					return nil, fmt.Errorf("property %s %s: duplicate month %s",
						properties[pi].ID, history.Utility, history.Records[k].Month)
				}
			}
		}
	}
	return properties, nil
}
