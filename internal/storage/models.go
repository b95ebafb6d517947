package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rubswatch/internal/allocation"
	"rubswatch/internal/anomaly"
)

// AllocationRun is a persisted allocation of one property's bill for one period.
type AllocationRun struct {
	ID         uuid.UUID           `json:"id"`
	PropertyID string              `json:"property_id,omitempty"`
	Period     string              `json:"period,omitempty"`
	TotalMinor int64               `json:"total_minor"`
	Currency   string              `json:"currency"`
	Strategy   string              `json:"strategy"`
	Lines      []allocation.Result `json:"lines"`
	CreatedAt  time.Time           `json:"created_at"`
}

// DetectionRecord is a persisted anomaly evaluation.
type DetectionRecord struct {
	ID               int64
	RunID            uuid.UUID
	PropertyID       string
	PropertyName     string
	Utility          anomaly.UtilityType
	AnomalyDetected  bool
	InsufficientData bool
	Severity         anomaly.Severity
	BaselineAverage  float64
	BaselineStdDev   float64
	Threshold        float64
	PeakMonth        *string
	PeakUsage        *float64
	CostImpact       decimal.Decimal
	AlertMessage     string
	CreatedAt        time.Time
}

// NewDetectionRecord flattens a detector result for persistence.
func NewDetectionRecord(runID uuid.UUID, r anomaly.Result) DetectionRecord {
	rec := DetectionRecord{
		RunID:            runID,
		PropertyID:       r.PropertyID,
		PropertyName:     r.PropertyName,
		Utility:          r.Utility,
		AnomalyDetected:  r.AnomalyDetected,
		InsufficientData: r.InsufficientData,
		Severity:         r.Severity,
		BaselineAverage:  r.BaselineAverage,
		BaselineStdDev:   r.BaselineStdDev,
		Threshold:        r.Threshold,
		CostImpact:       r.CostImpactMonthly,
		AlertMessage:     r.AlertMessage,
	}
	if r.Peak != nil {
		month, usage := r.Peak.Month, r.Peak.Usage
		rec.PeakMonth = &month
		rec.PeakUsage = &usage
	}
	return rec
}
