package anomaly

import (
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

func batchFixture() []Property {
	spike := append(steadyBaseline(), UsageRecord{Month: "2025-04", Usage: 16000})
	steady := append(steadyBaseline(), UsageRecord{Month: "2025-04", Usage: 5020})
	return []Property{
		{
			ID:   "p-1",
			Name: "Maple Court",
			Utilities: []UtilityHistory{
				{Utility: UtilityWater, Records: spike},
				{Utility: UtilityElectricity, Records: steady},
			},
		},
		{
			ID:   "p-2",
			Name: "Birch House",
			Utilities: []UtilityHistory{
				{Utility: UtilityGas, Records: steadyBaseline()[:4]},
			},
		},
	}
}

func TestDetectBatchSummary(t *testing.T) {
	summary, results := DetectBatch(batchFixture(), DefaultConfig())

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	order := []struct {
		property string
		utility  UtilityType
	}{{"p-1", UtilityWater}, {"p-1", UtilityElectricity}, {"p-2", UtilityGas}}
	for i, want := range order {
		if results[i].PropertyID != want.property || results[i].Utility != want.utility {
			t.Fatalf("result %d = %s/%s, want %s/%s", i, results[i].PropertyID, results[i].Utility, want.property, want.utility)
		}
	}

	if !results[0].AnomalyDetected || results[1].AnomalyDetected || !results[2].InsufficientData {
		t.Fatalf("unexpected flags: %+v", results)
	}
	if summary.PropertiesAnalyzed != 2 || summary.PropertiesWithAnomalies != 1 {
		t.Fatalf("unexpected property counts: %+v", summary)
	}
	if math.Abs(summary.AnomalyRate-0.5) > 1e-12 {
		t.Fatalf("anomaly rate = %v", summary.AnomalyRate)
	}
	if summary.SeriesAnalyzed != 3 || summary.AnomaliesDetected != 1 || summary.InsufficientData != 1 {
		t.Fatalf("unexpected series counts: %+v", summary)
	}
	if !summary.TotalCostImpact.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("total cost impact = %s, want 55", summary.TotalCostImpact)
	}
}

func TestDetectBatchUsesUtilityPrices(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CostPerUnit = map[UtilityType]decimal.Decimal{UtilityWater: decimal.RequireFromString("0.01")}
	_, results := DetectBatch(batchFixture(), cfg)
	if !results[0].CostImpactMonthly.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("cost impact = %s, want 110", results[0].CostImpactMonthly)
	}
}

func TestDetectBatchMatchesSequential(t *testing.T) {
	var properties []Property
	for i := 0; i < 40; i++ {
		records := steadyBaseline()
		for m := 0; m < 4; m++ {
			records = append(records, UsageRecord{Month: month(15 + m), Usage: 5000 + float64(i*250*m)})
		}
		properties = append(properties, Property{
			ID:        fmt.Sprintf("p-%02d", i),
			Utilities: []UtilityHistory{{Utility: UtilityWater, Records: records}},
		})
	}

	cfg := DefaultConfig()
	cfg.Workers = 4
	detector := NewDetector(cfg)

	var calls atomic.Int64
	summary, results := detector.DetectBatch(properties, WithProgress(func(Result) { calls.Add(1) }))
	if calls.Load() != int64(len(properties)) {
		t.Fatalf("progress called %d times, want %d", calls.Load(), len(properties))
	}

	for i, p := range properties {
		want := detector.Detect(p.Series()[0])
		got := results[i]
		if got.PropertyID != p.ID || got.Severity != want.Severity || got.AlertMessage != want.AlertMessage {
			t.Fatalf("batch result %d differs from sequential: %+v vs %+v", i, got, want)
		}
	}
	if summary.PropertiesAnalyzed != len(properties) {
		t.Fatalf("properties analyzed = %d", summary.PropertiesAnalyzed)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.PropertiesAnalyzed != 0 || summary.AnomalyRate != 0 || !summary.TotalCostImpact.IsZero() {
		t.Fatalf("unexpected empty summary %+v", summary)
	}
}

func TestParseUtilityType(t *testing.T) {
	if u, err := ParseUtilityType(" Electric "); err != nil || u != UtilityElectricity {
		t.Fatalf("got %q, %v", u, err)
	}
	if _, err := ParseUtilityType("steam"); err == nil {
		t.Fatal("unknown utility should fail")
	}
}
