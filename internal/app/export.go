package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"rubswatch/internal/anomaly"
)

// exportRow is one month of a series annotated with the detector's view of it.
type exportRow struct {
	Month     time.Time
	Label     string
	Usage     float64
	Baseline  bool
	Exceeds   bool
	Average   float64
	Threshold float64
}

// Export renders one stored usage series with its baseline average and threshold as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.PropertyID == "" || opts.Utility == "" {
		return errors.New("--property and --utility are required")
	}

	store, closeStore, err := a.requireStore(ctx, "export")
	if err != nil {
		return err
	}
	defer closeStore()

	series, err := store.LoadSeries(ctx, opts.PropertyID, opts.Utility)
	if err != nil {
		return fmt.Errorf("load series %s/%s: %w", opts.PropertyID, opts.Utility, err)
	}

	result := a.newDetector().Detect(series)
	rows, err := buildExportRows(series, result)
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("property_id", opts.PropertyID).
		Str("utility", string(opts.Utility)).
		Int("months", len(rows)).
		Bool("insufficient_data", result.InsufficientData).
		Msg("exporting series")

	if opts.CSVPath != "" {
		if err := writeSeriesCSV(opts.CSVPath, rows, result.InsufficientData); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		title := fmt.Sprintf("%s %s usage", series.PropertyID, series.Utility)
		if series.PropertyName != "" {
			title = fmt.Sprintf("%s (%s) %s usage", series.PropertyName, series.PropertyID, series.Utility)
		}
		if err := writeSeriesPNG(opts.PNGPath, title, rows, result.InsufficientData, a.Config.Export.ChartWidth, a.Config.Export.ChartHeight); err != nil {
			return err
		}
	}

	return nil
}

func buildExportRows(series anomaly.Series, result anomaly.Result) ([]exportRow, error) {
	window := len(series.Records) - len(result.Records)
	rows := make([]exportRow, 0, len(series.Records))
	for i, rec := range series.Records {
		month, err := time.Parse(anomaly.MonthLayout, rec.Month)
		if err != nil {
			return nil, fmt.Errorf("parse month %q: %w", rec.Month, err)
		}
		row := exportRow{
			Month:     month,
			Label:     rec.Month,
			Usage:     rec.Usage,
			Baseline:  !result.InsufficientData && i < window,
			Average:   result.BaselineAverage,
			Threshold: result.Threshold,
		}
		if !result.InsufficientData && i >= window {
			row.Exceeds = result.Records[i-window].ExceedsThreshold
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeSeriesCSV(path string, rows []exportRow, insufficient bool) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"month", "usage", "baseline_month", "baseline_avg", "threshold", "exceeds_threshold"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		avg, threshold := "", ""
		if !insufficient {
			avg = strconv.FormatFloat(row.Average, 'f', -1, 64)
			threshold = strconv.FormatFloat(row.Threshold, 'f', -1, 64)
		}
		record := []string{
			row.Label,
			strconv.FormatFloat(row.Usage, 'f', -1, 64),
			strconv.FormatBool(row.Baseline),
			avg,
			threshold,
			strconv.FormatBool(row.Exceeds),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeSeriesPNG(path, title string, rows []exportRow, insufficient bool, width, height int) error {
	if len(rows) < 2 {
		return errors.New("at least two months are required to render a chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}

	x := make([]time.Time, len(rows))
	usage := make([]float64, len(rows))
	average := make([]float64, len(rows))
	threshold := make([]float64, len(rows))
	for i, row := range rows {
		x[i] = row.Month
		usage[i] = row.Usage
		average[i] = row.Average
		threshold[i] = row.Threshold
	}

	usageFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	series := []chart.Series{
		chart.TimeSeries{
			Name:    "Usage",
			XValues: x,
			YValues: usage,
		},
	}
	if !insufficient {
		series = append(series,
			chart.TimeSeries{
				Name:    "Baseline average",
				XValues: x,
				YValues: average,
				Style:   chart.Style{StrokeDashArray: []float64{5, 5}},
			},
			chart.TimeSeries{
				Name:    "Threshold",
				XValues: x,
				YValues: threshold,
				Style:   chart.Style{StrokeColor: chart.ColorRed},
			},
		)
	}

	graph := chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(anomaly.MonthLayout),
		},
		YAxis: chart.YAxis{
			Name:           "Usage",
			ValueFormatter: usageFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
