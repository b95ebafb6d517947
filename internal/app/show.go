package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"rubswatch/internal/money"
	"rubswatch/internal/storage"
)

// Show prints recent detections.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx, "show detections")
	if err != nil {
		return err
	}
	defer closeStore()

	records, err := store.ListRecentDetections(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no detections found")
		return nil
	}

	return writeDetections(a.Out, records)
}

func writeDetections(out io.Writer, records []storage.DetectionRecord) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tRun\tProperty\tUtility\tSeverity\tPeak\tCost/month\tMessage")

	for _, rec := range records {
		peak := "-"
		if rec.PeakMonth != nil && rec.PeakUsage != nil {
			peak = fmt.Sprintf("%s %s", *rec.PeakMonth, humanize.CommafWithDigits(*rec.PeakUsage, 2))
		}
		severity := string(rec.Severity)
		if rec.InsufficientData {
			severity = "insufficient data"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			shortID(rec.RunID.String()),
			rec.PropertyID,
			rec.Utility,
			severity,
			peak,
			money.FormatMajor(rec.CostImpact),
			sanitizeInline(rec.AlertMessage),
		)
	}

	return writer.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
