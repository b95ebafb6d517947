package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"rubswatch/internal/alerting"
	"rubswatch/internal/anomaly"
	"rubswatch/internal/config"
	"rubswatch/internal/scheduler"
	"rubswatch/internal/storage"
)

// Monitor orchestrates detection, persistence, and alerting.
type Monitor struct {
	scheduler  *scheduler.Scheduler
	detector   *anomaly.Detector
	source     storage.UsageSource
	detections storage.DetectionStore
	notifier   alerting.Notifier
	logger     zerolog.Logger

	linkBase string
	channels []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
	newRunID func() uuid.UUID
}

// Report summarises one evaluation pass.
type Report struct {
	RunID          uuid.UUID
	At             time.Time
	Results        []anomaly.Result
	Summary        anomaly.Summary
	Persisted      bool
	Notified       int
	NotifyFailures int
}

// New constructs the monitor. Any of sched, source, detections and notifier may be nil; the
// corresponding step is then skipped.
func New(cfg *config.Config, sched *scheduler.Scheduler, detector *anomaly.Detector, source storage.UsageSource, detections storage.DetectionStore, notifier alerting.Notifier, logger zerolog.Logger) *Monitor {
	if detector == nil {
		detector = anomaly.NewDetector(cfg.Anomaly.DetectorConfig())
	}

	var locker storage.AdvisoryLocker
	if l, ok := source.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Monitor{
		scheduler:  sched,
		detector:   detector,
		source:     source,
		detections: detections,
		notifier:   notifier,
		logger:     logger.With().Str("component", "monitor").Logger(),
		linkBase:   cfg.Alerting.LinkBaseURL,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
		newRunID:   uuid.New,
	}
}

// Run begins the scheduled monitoring loop.
func (m *Monitor) Run(ctx context.Context) error {
	if m.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return m.scheduler.Run(ctx, m.ProcessTick)
}

// ProcessTick runs one monitoring pass over every stored usage history.
func (m *Monitor) ProcessTick(ctx context.Context, at time.Time) error {
	if m.source == nil {
		return fmt.Errorf("usage source not configured")
	}

	unlock, proceed, err := m.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		m.logger.Debug().Time("run_at", at).Msg("skip run because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	properties, err := m.source.LoadProperties(ctx)
	if err != nil {
		return fmt.Errorf("load usage histories: %w", err)
	}

	_, err = m.Evaluate(ctx, at, properties)
	return err
}

// Evaluate detects anomalies across properties, persists the results when a detection store is
// configured, and alerts on detected anomalies when alerting is enabled.
func (m *Monitor) Evaluate(ctx context.Context, at time.Time, properties []anomaly.Property, opts ...anomaly.BatchOption) (Report, error) {
	report := Report{RunID: m.newRunID(), At: at}
	logger := m.logger.With().Str("run_id", report.RunID.String()).Logger()

	report.Summary, report.Results = m.detector.DetectBatch(properties, opts...)

	if m.detections != nil && len(report.Results) > 0 {
		records := make([]storage.DetectionRecord, 0, len(report.Results))
		for _, r := range report.Results {
			records = append(records, storage.NewDetectionRecord(report.RunID, r))
		}
		if err := m.detections.SaveDetections(ctx, records); err != nil {
			logger.Error().Err(err).Msg("failed to persist detections")
		} else {
			report.Persisted = true
		}
	}

	for _, r := range report.Results {
		if !r.AnomalyDetected {
			continue
		}
		logger.Warn().
			Str("property_id", r.PropertyID).
			Str("utility", string(r.Utility)).
			Str("severity", string(r.Severity)).
			Str("cost_impact", r.CostImpactMonthly.StringFixed(2)).
			Msg("usage anomaly detected")

		if !m.alertsOn || m.notifier == nil {
			continue
		}
		note := alerting.NewNotification(report.RunID, r, m.linkBase, m.channels)
		if err := m.notifier.Notify(ctx, note); err != nil {
			report.NotifyFailures++
			logger.Error().Err(err).Str("property_id", r.PropertyID).Msg("failed to dispatch alert")
			continue
		}
		report.Notified++
	}

	logger.Info().
		Time("run_at", at).
		Int("properties", report.Summary.PropertiesAnalyzed).
		Int("series", report.Summary.SeriesAnalyzed).
		Int("anomalies", report.Summary.AnomaliesDetected).
		Int("insufficient_data", report.Summary.InsufficientData).
		Float64("anomaly_rate", report.Summary.AnomalyRate).
		Str("cost_impact", report.Summary.TotalCostImpact.StringFixed(2)).
		Int("alerts_sent", report.Notified).
		Msg("monitoring run complete")

	return report, ctx.Err()
}

func (m *Monitor) acquireLock(ctx context.Context) (func(), bool, error) {
	if m.lockKey == 0 || m.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := m.locker.TryAdvisoryLock(ctx, m.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
