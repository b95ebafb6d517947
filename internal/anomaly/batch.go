package anomaly

import (
	"runtime"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Config drives batch detection across properties and utilities.
type Config struct {
	BaselineWindow   int
	StdDevMultiplier float64
	// CostPerUnit prices one unit of usage per utility; missing utilities price at zero.
	CostPerUnit map[UtilityType]decimal.Decimal
	// Workers bounds concurrent evaluations; zero uses GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default window, multiplier and unit prices.
func DefaultConfig() Config {
	params := DefaultParams()
	return Config{
		BaselineWindow:   params.BaselineWindow,
		StdDevMultiplier: params.StdDevMultiplier,
		CostPerUnit: map[UtilityType]decimal.Decimal{
			UtilityWater:       decimal.RequireFromString("0.005"),
			UtilityElectricity: decimal.RequireFromString("0.14"),
			UtilityGas:         decimal.RequireFromString("1.10"),
			UtilitySewer:       decimal.RequireFromString("0.004"),
		},
	}
}

// Detector runs Detect over many series. It is immutable after construction.
type Detector struct {
	cfg Config
}

// NewDetector constructs a Detector, filling zero fields from DefaultParams.
func NewDetector(cfg Config) *Detector {
	defaults := DefaultParams()
	if cfg.BaselineWindow == 0 {
		cfg.BaselineWindow = defaults.BaselineWindow
	}
	if cfg.StdDevMultiplier == 0 {
		cfg.StdDevMultiplier = defaults.StdDevMultiplier
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Detector{cfg: cfg}
}

// Params returns the evaluation parameters for a utility.
func (d *Detector) Params(utility UtilityType) Params {
	cost, ok := d.cfg.CostPerUnit[utility]
	if !ok {
		cost = decimal.Zero
	}
	return Params{
		BaselineWindow:   d.cfg.BaselineWindow,
		StdDevMultiplier: d.cfg.StdDevMultiplier,
		CostPerUnit:      cost,
	}
}

// Detect evaluates a single series with the detector's parameters.
func (d *Detector) Detect(series Series) Result {
	return Detect(series, d.Params(series.Utility))
}

// BatchOption customises a DetectBatch call.
type BatchOption func(*batchOptions)

type batchOptions struct {
	onResult func(Result)
}

// WithProgress registers a callback invoked once per evaluated series. It runs on worker goroutines
// and must be safe for concurrent use.
func WithProgress(fn func(Result)) BatchOption {
	return func(o *batchOptions) {
		o.onResult = fn
	}
}

// DetectBatch evaluates every utility series of every property. Results keep input order.
func (d *Detector) DetectBatch(properties []Property, opts ...BatchOption) (Summary, []Result) {
	var o batchOptions
	for _, opt := range opts {
		opt(&o)
	}

	var series []Series
	for _, p := range properties {
		series = append(series, p.Series()...)
	}

	results := make([]Result, len(series))
	var g errgroup.Group
	if d.cfg.Workers > 0 {
		g.SetLimit(d.cfg.Workers)
	}
	for i := range series {
		g.Go(func() error {
			results[i] = d.Detect(series[i])
			if o.onResult != nil {
				o.onResult(results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	return Summarize(results), results
}

// DetectBatch evaluates properties with the given configuration.
func DetectBatch(properties []Property, cfg Config) (Summary, []Result) {
	return NewDetector(cfg).DetectBatch(properties)
}

// Summarize aggregates results. A property counts as analysed once however many utilities it has.
func Summarize(results []Result) Summary {
	summary := Summary{TotalCostImpact: decimal.Zero, SeriesAnalyzed: len(results)}
	seen := make(map[string]bool)
	for _, r := range results {
		if _, ok := seen[r.PropertyID]; !ok {
			seen[r.PropertyID] = false
		}
		if r.InsufficientData {
			summary.InsufficientData++
		}
		if r.AnomalyDetected {
			summary.AnomaliesDetected++
			summary.TotalCostImpact = summary.TotalCostImpact.Add(r.CostImpactMonthly)
			seen[r.PropertyID] = true
		}
	}

	summary.PropertiesAnalyzed = len(seen)
	for _, anomalous := range seen {
		if anomalous {
			summary.PropertiesWithAnomalies++
		}
	}
	if summary.PropertiesAnalyzed > 0 {
		summary.AnomalyRate = float64(summary.PropertiesWithAnomalies) / float64(summary.PropertiesAnalyzed)
	}
	return summary
}
