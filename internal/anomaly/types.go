// Package anomaly flags abnormal monthly utility consumption against a baseline built from the
// leading months of a usage history, and estimates the monthly cost of each anomaly.
package anomaly

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// UtilityType identifies a metered utility.
type UtilityType string

const (
	UtilityWater       UtilityType = "water"
	UtilityElectricity UtilityType = "electricity"
	UtilityGas         UtilityType = "gas"
	UtilitySewer       UtilityType = "sewer"
)

// ParseUtilityType normalises a utility name.
func ParseUtilityType(s string) (UtilityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "water":
		return UtilityWater, nil
	case "electricity", "electric":
		return UtilityElectricity, nil
	case "gas":
		return UtilityGas, nil
	case "sewer":
		return UtilitySewer, nil
	default:
		return "", fmt.Errorf("unknown utility type %q", s)
	}
}

// Severity tiers an anomaly by how far its peak exceeds the baseline average.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// UsageRecord is one month of usage for one property and utility.
type UsageRecord struct {
	Month string  `json:"month"`
	Usage float64 `json:"usage"`
}

// EvaluatedRecord is a post-baseline record tagged against the threshold.
type EvaluatedRecord struct {
	UsageRecord
	ExceedsThreshold bool `json:"exceeds_threshold"`
}

// Series is the chronologically ordered usage history of one utility at one property.
type Series struct {
	PropertyID   string        `json:"property_id"`
	PropertyName string        `json:"property_name"`
	Utility      UtilityType   `json:"utility_type"`
	Records      []UsageRecord `json:"records"`
}

// UtilityHistory is one utility's records within a Property.
type UtilityHistory struct {
	Utility UtilityType   `json:"utility_type"`
	Records []UsageRecord `json:"records"`
}

// Property groups the independent per-utility histories of one property.
type Property struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Utilities []UtilityHistory `json:"utilities"`
}

// Series returns the property's histories as detector inputs.
func (p Property) Series() []Series {
	out := make([]Series, 0, len(p.Utilities))
	for _, u := range p.Utilities {
		out = append(out, Series{
			PropertyID:   p.ID,
			PropertyName: p.Name,
			Utility:      u.Utility,
			Records:      u.Records,
		})
	}
	return out
}

// Peak is the highest-usage record that exceeded the threshold.
type Peak struct {
	Month string  `json:"month"`
	Usage float64 `json:"usage"`
	Ratio float64 `json:"ratio"`
}

// MarshalJSON writes an unbounded ratio (zero baseline average) as null.
func (p Peak) MarshalJSON() ([]byte, error) {
	type plain Peak
	out := struct {
		plain
		Ratio *float64 `json:"ratio"`
	}{plain: plain(p)}
	if !math.IsInf(p.Ratio, 0) && !math.IsNaN(p.Ratio) {
		out.Ratio = &p.Ratio
	}
	return json.Marshal(out)
}

// Result is the outcome of evaluating one series.
type Result struct {
	PropertyID        string            `json:"property_id"`
	PropertyName      string            `json:"property_name"`
	Utility           UtilityType       `json:"utility_type"`
	AnomalyDetected   bool              `json:"anomaly_detected"`
	InsufficientData  bool              `json:"insufficient_data"`
	HistoryLength     int               `json:"history_length"`
	BaselineAverage   float64           `json:"baseline_average"`
	BaselineStdDev    float64           `json:"baseline_std_dev"`
	Threshold         float64           `json:"anomaly_threshold"`
	Records           []EvaluatedRecord `json:"records"`
	Peak              *Peak             `json:"peak,omitempty"`
	Severity          Severity          `json:"severity"`
	CostImpactMonthly decimal.Decimal   `json:"cost_impact_monthly"`
	AlertMessage      string            `json:"alert_message"`
}

// Summary aggregates a batch of results.
type Summary struct {
	PropertiesAnalyzed      int             `json:"properties_analyzed"`
	PropertiesWithAnomalies int             `json:"properties_with_anomalies"`
	AnomalyRate             float64         `json:"anomaly_rate"`
	SeriesAnalyzed          int             `json:"series_analyzed"`
	AnomaliesDetected       int             `json:"anomalies_detected"`
	InsufficientData        int             `json:"insufficient_data"`
	TotalCostImpact         decimal.Decimal `json:"total_cost_impact"`
}
