package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is a concrete income or expense record materialized
// from one due occurrence of a recurring obligation
type LedgerEntry struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"user_id"`
	Kind               Kind            `json:"kind"`
	Amount             decimal.Decimal `json:"amount"`
	Description        string          `json:"description"`
	CategoryID         int64           `json:"category_id"`
	VendorID           *int64          `json:"vendor_id,omitempty"` // expense only
	Date               time.Time       `json:"date"`
	SourceObligationID int64           `json:"source_obligation_id"`
	CreatedAt          time.Time       `json:"created_at"`
}
