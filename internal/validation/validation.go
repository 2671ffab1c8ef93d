package validation

import (
	"fmt"

	"github.com/ledgerkeep/recurring-service/internal/models"
)

// Result is the outcome of validating an obligation draft
type Result struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// ValidateObligation checks an obligation draft and reports every
// violation independently. It never returns an error: a bad draft
// is a value, not a failure.
func ValidateObligation(draft models.ObligationDraft) Result {
	var errs []string

	if !models.Kind(draft.Kind).Valid() {
		errs = append(errs, fmt.Sprintf("kind must be %q or %q, got %q",
			models.KindIncome, models.KindExpense, draft.Kind))
	}
	if !draft.Amount.IsPositive() {
		errs = append(errs, fmt.Sprintf("amount must be positive, got %s", draft.Amount))
	}
	if !models.Frequency(draft.Frequency).Valid() {
		errs = append(errs, fmt.Sprintf("frequency must be %q, %q, %q or %q, got %q",
			models.FrequencyDaily, models.FrequencyWeekly,
			models.FrequencyMonthly, models.FrequencyYearly, draft.Frequency))
	}
	if draft.EndDate != nil && !draft.StartDate.IsZero() && draft.EndDate.Before(draft.StartDate) {
		errs = append(errs, "end date must not be before start date")
	}
	if draft.CategoryID == 0 {
		errs = append(errs, "category is required")
	}

	return Result{IsValid: len(errs) == 0, Errors: errs}
}
