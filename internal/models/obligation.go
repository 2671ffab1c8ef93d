package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes income from expense obligations
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// Valid reports whether the kind is one of the known values
func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// Frequency is the recurrence cadence of an obligation
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Valid reports whether the frequency is one of the known values
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringObligation represents a user-defined recurring income or expense
type RecurringObligation struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Kind        Kind            `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Frequency   Frequency       `json:"frequency"`
	CategoryID  int64           `json:"category_id"`
	VendorID    *int64          `json:"vendor_id,omitempty"` // expense only
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty"` // inclusive upper bound
	NextDueDate time.Time       `json:"next_due_date"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ObligationDraft is an incoming obligation definition before validation.
// Kind and Frequency stay raw strings so validation can report bad values.
type ObligationDraft struct {
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Frequency   string          `json:"frequency"`
	CategoryID  int64           `json:"category_id"`
	VendorID    *int64          `json:"vendor_id,omitempty"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
}
