package monitor

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Event is one structured monitor record. Zero-valued optional fields
// are omitted from the emitted log line.
type Event struct {
	Message          string
	UserID           int64
	ObligationID     int64
	Amount           decimal.Decimal
	ProcessingTimeMs int64
	Err              error
}

// Monitor is the append-only success/error sink for recurring-payment
// processing. Writes never propagate failures to the caller.
type Monitor struct {
	log         *logrus.Logger
	totalRuns   atomic.Int64
	totalErrors atomic.Int64
}

// Stats is an aggregate counter snapshot
type Stats struct {
	TotalRuns   int64 `json:"total_runs"`
	TotalErrors int64 `json:"total_errors"`
}

// New creates a monitor writing to the given logger
func New(log *logrus.Logger) *Monitor {
	return &Monitor{log: log}
}

// LogSuccess appends a success event and bumps the run counter
func (m *Monitor) LogSuccess(ev Event) {
	defer swallow()
	m.totalRuns.Add(1)
	m.entry(ev).Info(ev.Message)
}

// LogError appends an error event and bumps the error counter
func (m *Monitor) LogError(ev Event) {
	defer swallow()
	m.totalErrors.Add(1)
	m.entry(ev).Error(ev.Message)
}

// Stats returns the aggregate counters
func (m *Monitor) Stats() Stats {
	return Stats{
		TotalRuns:   m.totalRuns.Load(),
		TotalErrors: m.totalErrors.Load(),
	}
}

func (m *Monitor) entry(ev Event) *logrus.Entry {
	fields := logrus.Fields{}
	if ev.UserID != 0 {
		fields["user_id"] = ev.UserID
	}
	if ev.ObligationID != 0 {
		fields["obligation_id"] = ev.ObligationID
	}
	if !ev.Amount.IsZero() {
		fields["amount"] = ev.Amount.String()
	}
	if ev.ProcessingTimeMs != 0 {
		fields["processing_time_ms"] = ev.ProcessingTimeMs
	}
	if ev.Err != nil {
		fields[logrus.ErrorKey] = ev.Err
	}
	return m.log.WithFields(fields)
}

// swallow keeps a misbehaving logger (or hook) from ever failing the
// caller's critical path
func swallow() {
	_ = recover()
}
