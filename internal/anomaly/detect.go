package anomaly

import (
	"github.com/shopspring/decimal"
)

// Params tune the evaluation of a single series.
type Params struct {
	BaselineWindow   int
	StdDevMultiplier float64
	CostPerUnit      decimal.Decimal
}

// DefaultParams uses a fifteen-month baseline and a 3-sigma threshold.
func DefaultParams() Params {
	return Params{
		BaselineWindow:   15,
		StdDevMultiplier: 3,
		CostPerUnit:      decimal.Zero,
	}
}

// Detect evaluates the records after the baseline window against the baseline threshold.
//
// Readings above the threshold are candidates; the highest candidate is then tiered by its ratio to
// the baseline average and only a low, medium or high tier is reported as an anomaly. A history
// shorter than the window is reported as InsufficientData.
func Detect(series Series, params Params) Result {
	result := Result{
		PropertyID:        series.PropertyID,
		PropertyName:      series.PropertyName,
		Utility:           series.Utility,
		HistoryLength:     len(series.Records),
		Records:           []EvaluatedRecord{},
		Severity:          SeverityNone,
		CostImpactMonthly: decimal.Zero,
	}

	window := params.BaselineWindow
	if window < 1 || len(series.Records) < window {
		result.InsufficientData = true
		result.AlertMessage = composeMessage(result, window)
		return result
	}

	baseline := ComputeBaseline(usages(series.Records[:window]))
	result.BaselineAverage = baseline.Average
	result.BaselineStdDev = baseline.StdDev
	result.Threshold = baseline.Threshold(params.StdDevMultiplier)

	recent := series.Records[window:]
	result.Records = make([]EvaluatedRecord, len(recent))
	peak := -1
	for i, rec := range recent {
		exceeds := rec.Usage > result.Threshold
		result.Records[i] = EvaluatedRecord{UsageRecord: rec, ExceedsThreshold: exceeds}
		if exceeds && (peak < 0 || rec.Usage > recent[peak].Usage) {
			peak = i
		}
	}

	if peak >= 0 {
		rec := recent[peak]
		result.Peak = &Peak{
			Month: rec.Month,
			Usage: rec.Usage,
			Ratio: UsageRatio(rec.Usage, baseline.Average),
		}
		result.Severity = Classify(rec.Usage, baseline.Average)
		if result.Severity != SeverityNone {
			result.AnomalyDetected = true
			result.CostImpactMonthly = CostImpact(rec.Usage, baseline.Average, params.CostPerUnit)
		}
	}

	result.AlertMessage = composeMessage(result, window)
	return result
}
