package models

import "github.com/shopspring/decimal"

// CreatedRecord describes one ledger entry materialized during a batch sweep
type CreatedRecord struct {
	Kind        Kind            `json:"kind"`
	RecordID    int64           `json:"record_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// ProcessingError is one isolated per-obligation failure.
// ObligationID is zero for failures that happen before the
// per-obligation loop starts.
type ProcessingError struct {
	ObligationID int64  `json:"obligation_id,omitempty"`
	Error        string `json:"error"`
}

// ProcessingResult is the outcome of one batch sweep
type ProcessingResult struct {
	Success          bool              `json:"success"`
	ProcessedCount   int               `json:"processed_count"`
	DeactivatedCount int               `json:"deactivated_count"`
	CreatedRecords   []CreatedRecord   `json:"created_records"`
	Errors           []ProcessingError `json:"errors"`
}

// UpcomingObligation is a schedule-preview row: the obligation plus
// its overdue annotation. Never reflects mutated state.
type UpcomingObligation struct {
	RecurringObligation
	IsOverdue   bool `json:"is_overdue"`
	DaysPastDue int  `json:"days_past_due"`
}
