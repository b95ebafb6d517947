package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"rubswatch/internal/anomaly"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertReadingSQL = `INSERT INTO usage_readings (
        property_id,
        property_name,
        utility_type,
        month,
        usage
    ) VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (property_id, utility_type, month) DO UPDATE
    SET property_name = EXCLUDED.property_name,
        usage         = EXCLUDED.usage,
        updated_at    = now();`

	listReadingsSQL = `SELECT property_id, property_name, utility_type, month, usage
    FROM usage_readings
    ORDER BY property_id, utility_type, month;`

	listSeriesSQL = `SELECT property_name, month, usage
    FROM usage_readings
    WHERE property_id = $1
      AND utility_type = $2
    ORDER BY month;`

	insertAllocationRunSQL = `INSERT INTO allocation_runs (
        id,
        property_id,
        period,
        total_minor,
        currency,
        strategy
    ) VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING created_at;`

	insertAllocationLineSQL = `INSERT INTO allocation_lines (
        run_id,
        position,
        tenant_id,
        charge_minor,
        sqft_ratio,
        occupancy_ratio,
        sqft_cost,
        occupancy_cost
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`

	insertDetectionSQL = `INSERT INTO detections (
        run_id,
        property_id,
        property_name,
        utility_type,
        anomaly_detected,
        insufficient_data,
        severity,
        baseline_avg,
        baseline_stddev,
        threshold,
        peak_month,
        peak_usage,
        cost_impact,
        alert_message
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`

	listRecentDetectionsSQL = `SELECT
        id,
        run_id,
        property_id,
        property_name,
        utility_type,
        anomaly_detected,
        insufficient_data,
        severity,
        baseline_avg,
        baseline_stddev,
        threshold,
        peak_month,
        peak_usage,
        cost_impact::text,
        alert_message,
        created_at
    FROM detections
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// UsageSource loads usage histories for the monitor.
type UsageSource interface {
	LoadProperties(ctx context.Context) ([]anomaly.Property, error)
	LoadSeries(ctx context.Context, propertyID string, utility anomaly.UtilityType) (anomaly.Series, error)
}

// UsageWriter stores imported usage readings.
type UsageWriter interface {
	UpsertReadings(ctx context.Context, properties []anomaly.Property) (int, error)
}

// AllocationStore persists allocation runs.
type AllocationStore interface {
	SaveAllocation(ctx context.Context, run *AllocationRun) error
}

// DetectionStore persists anomaly evaluations.
type DetectionStore interface {
	SaveDetections(ctx context.Context, records []DetectionRecord) error
	ListRecentDetections(ctx context.Context, limit int) ([]DetectionRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to usage readings, allocation runs and detections.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Migrate executes every .sql file in dir in lexical order. Scripts must be idempotent.
func (s *Store) Migrate(ctx context.Context, dir string) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	slices.Sort(files)

	for _, name := range files {
		script, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(script)); err != nil {
			return nil, fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return files, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also drops when the connection closes
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertReadings stores every usage record of the given properties and returns the row count.
func (s *Store) UpsertReadings(ctx context.Context, properties []anomaly.Property) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for _, p := range properties {
		for _, u := range p.Utilities {
			for _, rec := range u.Records {
				batch.Queue(upsertReadingSQL, p.ID, p.Name, string(u.Utility), rec.Month, rec.Usage)
			}
		}
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("upsert usage readings: %w", err)
	}
	return batch.Len(), nil
}

// LoadProperties loads every stored usage history grouped by property and utility.
func (s *Store) LoadProperties(ctx context.Context) ([]anomaly.Property, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listReadingsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list usage readings: %w", queryErr)
	}
	defer rows.Close()

	var flat []anomaly.Reading
	for rows.Next() {
		var row anomaly.Reading
		if err := rows.Scan(&row.PropertyID, &row.PropertyName, &row.UtilityType, &row.Month, &row.Usage); err != nil {
			return nil, fmt.Errorf("scan usage reading: %w", err)
		}
		flat = append(flat, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(flat) == 0 {
		return nil, nil
	}
	return anomaly.GroupReadings(flat)
}

// LoadSeries loads one utility history of one property.
func (s *Store) LoadSeries(ctx context.Context, propertyID string, utility anomaly.UtilityType) (anomaly.Series, error) {
	series := anomaly.Series{PropertyID: propertyID, Utility: utility}

	pool, err := s.getPool()
	if err != nil {
		return series, err
	}

	rows, queryErr := pool.Query(ctx, listSeriesSQL, propertyID, string(utility))
	if queryErr != nil {
		return series, fmt.Errorf("list usage series: %w", queryErr)
	}
	defer rows.Close()

	for rows.Next() {
		var rec anomaly.UsageRecord
		if err := rows.Scan(&series.PropertyName, &rec.Month, &rec.Usage); err != nil {
			return series, fmt.Errorf("scan usage series: %w", err)
		}
		series.Records = append(series.Records, rec)
	}
	if rows.Err() != nil {
		return series, rows.Err()
	}
	if len(series.Records) == 0 {
		return series, pgx.ErrNoRows
	}
	return series, nil
}

// SaveAllocation persists a run and its lines in one transaction and fills CreatedAt.
func (s *Store) SaveAllocation(ctx context.Context, run *AllocationRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertAllocationRunSQL,
			run.ID,
			run.PropertyID,
			run.Period,
			run.TotalMinor,
			run.Currency,
			run.Strategy,
		).Scan(&run.CreatedAt); err != nil {
			return fmt.Errorf("insert allocation run: %w", err)
		}

		batch := &pgx.Batch{}
		for i, line := range run.Lines {
			batch.Queue(insertAllocationLineSQL,
				run.ID,
				i,
				line.TenantID,
				line.ChargeAmount,
				line.SquareFootageRatio.String(),
				line.OccupancyRatio.String(),
				line.SquareFootageCost.String(),
				line.OccupancyCost.String(),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert allocation lines: %w", err)
		}
		return nil
	})
}

// SaveDetections persists a batch of detection records.
func (s *Store) SaveDetections(ctx context.Context, records []DetectionRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertDetectionSQL,
			rec.RunID,
			rec.PropertyID,
			rec.PropertyName,
			string(rec.Utility),
			rec.AnomalyDetected,
			rec.InsufficientData,
			string(rec.Severity),
			rec.BaselineAverage,
			rec.BaselineStdDev,
			rec.Threshold,
			rec.PeakMonth,
			rec.PeakUsage,
			rec.CostImpact.String(),
			rec.AlertMessage,
		)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert detections: %w", err)
	}
	return nil
}

// ListRecentDetections lists the most recent detections, newest first.
func (s *Store) ListRecentDetections(ctx context.Context, limit int) ([]DetectionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDetectionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent detections: %w", queryErr)
	}
	defer rows.Close()

	records := make([]DetectionRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanDetection(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanDetection(rows pgx.Rows) (DetectionRecord, error) {
	var (
		rec      DetectionRecord
		utility  string
		severity string
		costStr  string
	)
	if err := rows.Scan(
		&rec.ID,
		&rec.RunID,
		&rec.PropertyID,
		&rec.PropertyName,
		&utility,
		&rec.AnomalyDetected,
		&rec.InsufficientData,
		&severity,
		&rec.BaselineAverage,
		&rec.BaselineStdDev,
		&rec.Threshold,
		&rec.PeakMonth,
		&rec.PeakUsage,
		&costStr,
		&rec.AlertMessage,
		&rec.CreatedAt,
	); err != nil {
		return DetectionRecord{}, err
	}

	cost, err := decimal.NewFromString(costStr)
	if err != nil {
		return DetectionRecord{}, fmt.Errorf("parse cost impact: %w", err)
	}
	rec.CostImpact = cost
	rec.Utility = anomaly.UtilityType(utility)
	rec.Severity = anomaly.Severity(severity)
	return rec, nil
}

var (
	_ UsageSource     = (*Store)(nil)
	_ UsageWriter     = (*Store)(nil)
	_ AllocationStore = (*Store)(nil)
	_ DetectionStore  = (*Store)(nil)
	_ AdvisoryLocker  = (*Store)(nil)
)
