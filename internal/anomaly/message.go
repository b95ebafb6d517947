package anomaly

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"rubswatch/internal/money"
)

func composeMessage(r Result, window int) string {
	subject := fmt.Sprintf("%s usage at %s", r.Utility, propertyLabel(r))

	switch {
	case r.InsufficientData:
		return fmt.Sprintf("%s: insufficient history (%d of %d baseline months), no detection possible",
			subject, r.HistoryLength, window)
	case r.AnomalyDetected && r.Peak != nil:
		return fmt.Sprintf("[%s] %s reached %s in %s, %s the baseline average of %s (threshold %s); estimated cost impact $%s/month",
			strings.ToUpper(string(r.Severity)),
			subject,
			formatUsage(r.Peak.Usage),
			r.Peak.Month,
			formatRatio(r.Peak.Ratio),
			formatUsage(r.BaselineAverage),
			formatUsage(r.Threshold),
			money.FormatMajor(r.CostImpactMonthly),
		)
	default:
		return fmt.Sprintf("%s within normal range (baseline %s, threshold %s)",
			subject, formatUsage(r.BaselineAverage), formatUsage(r.Threshold))
	}
}

func propertyLabel(r Result) string {
	if r.PropertyName == "" || r.PropertyName == r.PropertyID {
		return r.PropertyID
	}
	return fmt.Sprintf("%s (%s)", r.PropertyName, r.PropertyID)
}

func formatUsage(v float64) string {
	return humanize.CommafWithDigits(math.Round(v*100)/100, 2)
}

func formatRatio(ratio float64) string {
	if math.IsInf(ratio, 0) {
		return "far above"
	}
	return fmt.Sprintf("%.2fx", ratio)
}
