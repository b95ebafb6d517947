package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"rubswatch/internal/alerting"
	"rubswatch/internal/anomaly"
	"rubswatch/internal/ingest"
	"rubswatch/internal/money"
	"rubswatch/internal/service"
	"rubswatch/internal/storage"
)

// Detect evaluates the usage histories of one file and prints per-series results and the summary.
func (a *App) Detect(ctx context.Context, opts DetectOptions) error {
	if opts.UsagePath == "" {
		return errors.New("--usage is required")
	}

	properties, err := ingest.LoadUsage(opts.UsagePath)
	if err != nil {
		return err
	}

	var detections storage.DetectionStore
	if opts.Save {
		store, closeStore, err := a.requireStore(ctx, "save detections")
		if err != nil {
			return err
		}
		defer closeStore()
		detections = store
	}

	var notifier alerting.Notifier
	cfg := *a.Config
	if opts.Notify {
		notifier = a.newNotifier()
		if notifier == nil {
			return errors.New("no alert channel configured")
		}
		cfg.Alerting.Enabled = true
	} else {
		cfg.Alerting.Enabled = false
	}

	var batchOpts []anomaly.BatchOption
	if opts.Progress {
		bar := newProgressBar(countSeries(properties))
		batchOpts = append(batchOpts, anomaly.WithProgress(func(anomaly.Result) {
			_ = bar.Add(1)
		}))
		defer bar.Finish()
	}

	monitor := service.New(&cfg, nil, a.newDetector(), nil, detections, notifier, a.Logger)
	report, err := monitor.Evaluate(ctx, time.Now().UTC(), properties, batchOpts...)
	if err != nil {
		return err
	}
	if opts.Save && !report.Persisted {
		return errors.New("failed to persist detections; see log")
	}

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID   string           `json:"run_id"`
			Summary anomaly.Summary  `json:"summary"`
			Results []anomaly.Result `json:"results"`
		}{report.RunID.String(), report.Summary, report.Results})
	}
	return writeDetectionReport(a.Out, report)
}

func countSeries(properties []anomaly.Property) int {
	n := 0
	for _, p := range properties {
		n += len(p.Utilities)
	}
	return n
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("detecting"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func writeDetectionReport(out io.Writer, report service.Report) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Property\tUtility\tMonths\tBaseline\tThreshold\tPeak\tSeverity\tCost/month")
	for _, r := range report.Results {
		peak := "-"
		if r.Peak != nil {
			peak = fmt.Sprintf("%s %s", r.Peak.Month, humanize.CommafWithDigits(r.Peak.Usage, 2))
		}
		baseline, threshold := "-", "-"
		if !r.InsufficientData {
			baseline = humanize.CommafWithDigits(r.BaselineAverage, 2)
			threshold = humanize.CommafWithDigits(r.Threshold, 2)
		}
		severity := string(r.Severity)
		if r.InsufficientData {
			severity = "insufficient data"
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.PropertyID,
			r.Utility,
			r.HistoryLength,
			baseline,
			threshold,
			peak,
			severity,
			money.FormatMajor(r.CostImpactMonthly),
		)
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	s := report.Summary
	fmt.Fprintf(out, "\nrun %s: %d properties, %d series, %d anomalies (%.1f%% of properties), %d insufficient, cost impact $%s/month\n",
		report.RunID,
		s.PropertiesAnalyzed,
		s.SeriesAnalyzed,
		s.AnomaliesDetected,
		s.AnomalyRate*100,
		s.InsufficientData,
		money.FormatMajor(s.TotalCostImpact),
	)
	for _, r := range report.Results {
		if r.AnomalyDetected {
			fmt.Fprintln(out, r.AlertMessage)
		}
	}
	return nil
}
