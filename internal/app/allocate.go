package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rubswatch/internal/allocation"
	"rubswatch/internal/anomaly"
	"rubswatch/internal/ingest"
	"rubswatch/internal/money"
	"rubswatch/internal/storage"
)

// Allocate splits a bill across the tenants of one file, prints the charges and optionally
// persists the run.
func (a *App) Allocate(ctx context.Context, opts AllocateOptions) error {
	run, err := a.allocateRun(opts)
	if err != nil {
		return err
	}

	if opts.Save {
		store, closeStore, err := a.requireStore(ctx, "save allocation")
		if err != nil {
			return err
		}
		defer closeStore()

		if err := store.SaveAllocation(ctx, run); err != nil {
			return err
		}
		a.Logger.Info().
			Str("run_id", run.ID.String()).
			Str("property_id", run.PropertyID).
			Str("period", run.Period).
			Int("tenants", len(run.Lines)).
			Msg("allocation saved")
	}

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	return writeAllocationTable(a.Out, run, a.Config.Allocation.MinorExponent)
}

func (a *App) allocateRun(opts AllocateOptions) (*storage.AllocationRun, error) {
	if opts.TenantsPath == "" {
		return nil, errors.New("--tenants is required")
	}
	if opts.Period != "" {
		if _, err := time.Parse(anomaly.MonthLayout, opts.Period); err != nil {
			return nil, fmt.Errorf("--period %q must be YYYY-MM", opts.Period)
		}
	}

	total, err := decimal.NewFromString(opts.Total)
	if err != nil {
		return nil, fmt.Errorf("invalid --total %q: %w", opts.Total, err)
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = a.Config.Allocation.Reconciliation
	}
	reconciler, err := allocation.ReconcilerByName(strategy)
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = allocation.StrategyCyclic
	}

	tenants, err := ingest.LoadTenants(opts.TenantsPath)
	if err != nil {
		return nil, err
	}

	exponent := a.Config.Allocation.MinorExponent
	totalMinor := money.ToMinor(total, exponent)
	engine := allocation.New(allocation.Options{
		Weights:    a.Config.Allocation.Weights(),
		Reconciler: reconciler,
	})
	lines := engine.Allocate(totalMinor, tenants)

	a.Logger.Debug().
		Int64("total_minor", totalMinor).
		Int("tenants", len(tenants)).
		Str("strategy", strategy).
		Msg("allocation computed")

	return &storage.AllocationRun{
		ID:         uuid.New(),
		PropertyID: opts.PropertyID,
		Period:     opts.Period,
		TotalMinor: totalMinor,
		Currency:   a.Config.Allocation.Currency,
		Strategy:   strategy,
		Lines:      lines,
	}, nil
}

func writeAllocationTable(out io.Writer, run *storage.AllocationRun, exponent int32) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Tenant\tSqft ratio\tOccupancy ratio\tSqft cost\tOccupancy cost\tCharge")
	for _, line := range run.Lines {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			line.TenantID,
			line.SquareFootageRatio.StringFixed(4),
			line.OccupancyRatio.StringFixed(4),
			money.FormatMajor(line.SquareFootageCost.Shift(-exponent)),
			money.FormatMajor(line.OccupancyCost.Shift(-exponent)),
			money.FormatMinor(line.ChargeAmount, exponent),
		)
	}
	fmt.Fprintf(writer, "Total\t\t\t\t\t%s %s\n",
		money.FormatMinor(allocation.Total(run.Lines), exponent), run.Currency)
	return writer.Flush()
}
