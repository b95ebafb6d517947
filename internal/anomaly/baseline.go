package anomaly

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const (
	highRatio   = 2.8
	mediumRatio = 1.8
	lowRatio    = 1.4
)

// Baseline holds population statistics over the leading window of a series.
type Baseline struct {
	Average float64
	StdDev  float64
}

// ComputeBaseline returns the mean and population standard deviation (divisor N) of usages.
func ComputeBaseline(usages []float64) Baseline {
	if len(usages) == 0 {
		return Baseline{}
	}
	mean, std := stat.PopMeanStdDev(usages, nil)
	return Baseline{Average: mean, StdDev: std}
}

// Threshold is average + multiplier * stddev.
func (b Baseline) Threshold(multiplier float64) float64 {
	return b.Average + multiplier*b.StdDev
}

// UsageRatio is usage / average. A zero average yields +Inf for positive usage and 0 otherwise.
func UsageRatio(usage, average float64) float64 {
	if average == 0 {
		if usage > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return usage / average
}

// Classify maps a peak reading to a severity tier relative to the baseline average.
func Classify(peak, average float64) Severity {
	ratio := UsageRatio(peak, average)
	switch {
	case ratio >= highRatio:
		return SeverityHigh
	case ratio >= mediumRatio:
		return SeverityMedium
	case ratio >= lowRatio:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// CostImpact estimates the monthly cost of usage above the average, rounded to cents. A non-finite
// difference has no price and yields zero.
func CostImpact(peak, average float64, costPerUnit decimal.Decimal) decimal.Decimal {
	diff := peak - average
	if math.IsNaN(diff) || math.IsInf(diff, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(diff).Mul(costPerUnit).Round(2)
}

func usages(records []UsageRecord) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Usage
	}
	return out
}
