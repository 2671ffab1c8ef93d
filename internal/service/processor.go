package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ledgerkeep/recurring-service/internal/models"
	"github.com/ledgerkeep/recurring-service/internal/monitor"
	"github.com/ledgerkeep/recurring-service/internal/schedule"
	"github.com/ledgerkeep/recurring-service/internal/validation"
)

// Processor runs the recurring-payment batch sweep: it materializes due
// occurrences into ledger entries, advances schedules and deactivates
// expired obligations. One obligation's failure never aborts the batch.
type Processor struct {
	store ObligationStore
	mon   *monitor.Monitor
	log   *logrus.Logger
	now   func() time.Time
}

// NewProcessor initializes a new processor
func NewProcessor(store ObligationStore, mon *monitor.Monitor, log *logrus.Logger) *Processor {
	return &Processor{store: store, mon: mon, log: log, now: time.Now}
}

// ProcessUserRecurringPayments sweeps one user's due obligations
func (p *Processor) ProcessUserRecurringPayments(ctx context.Context, userID int64) *models.ProcessingResult {
	return p.process(ctx, userID)
}

// ProcessAllDueRecurringPayments sweeps every user's due obligations;
// invoked by the scheduled job
func (p *Processor) ProcessAllDueRecurringPayments(ctx context.Context) *models.ProcessingResult {
	return p.process(ctx, 0)
}

func (p *Processor) process(ctx context.Context, userID int64) *models.ProcessingResult {
	started := p.now()
	result := &models.ProcessingResult{
		Success:        true,
		CreatedRecords: []models.CreatedRecord{},
		Errors:         []models.ProcessingError{},
	}

	obligations, err := p.store.FindActiveObligationsDueOrExpired(ctx, userID, started)
	if err != nil {
		// systemic failure: nothing was processed, abort the whole call
		result.Success = false
		result.Errors = append(result.Errors, models.ProcessingError{
			Error: fmt.Sprintf("failed to load due obligations: %v", err),
		})
		p.mon.LogError(monitor.Event{
			Message: "recurring payment sweep aborted",
			UserID:  userID,
			Err:     err,
		})
		return result
	}

	for i := range obligations {
		ob := &obligations[i]
		if err := p.processOne(ctx, ob, started, result); err != nil {
			result.Errors = append(result.Errors, models.ProcessingError{
				ObligationID: ob.ID,
				Error:        err.Error(),
			})
			p.mon.LogError(monitor.Event{
				Message:      "failed to process recurring obligation",
				UserID:       ob.UserID,
				ObligationID: ob.ID,
				Amount:       ob.Amount,
				Err:          err,
			})
		}
	}

	result.Success = len(result.Errors) == 0
	elapsed := time.Since(started).Milliseconds()
	p.mon.LogSuccess(monitor.Event{
		Message:          "recurring payment sweep completed",
		UserID:           userID,
		ProcessingTimeMs: elapsed,
	})
	p.log.Infof("Recurring sweep done: %d processed, %d deactivated, %d error(s) in %dms",
		result.ProcessedCount, result.DeactivatedCount, len(result.Errors), elapsed)
	return result
}

// processOne handles a single obligation: deactivate if expired, otherwise
// materialize one occurrence and advance its schedule
func (p *Processor) processOne(ctx context.Context, ob *models.RecurringObligation, now time.Time, result *models.ProcessingResult) error {
	if ob.EndDate != nil && ob.EndDate.Before(now) {
		deactivated, err := p.store.DeactivateObligation(ctx, ob.ID)
		if err != nil {
			return fmt.Errorf("failed to deactivate expired obligation: %w", err)
		}
		if deactivated {
			result.DeactivatedCount++
			p.log.Infof("Deactivated expired recurring obligation %d (end date %s)",
				ob.ID, ob.EndDate.Format("2006-01-02"))
		}
		return nil
	}

	if ob.NextDueDate.After(now) {
		return nil
	}

	// the entry is dated on the occurrence being fulfilled, not on the
	// processing time, so catch-up runs stay historically accurate
	due := ob.NextDueDate
	entry := &models.LedgerEntry{
		UserID:             ob.UserID,
		Kind:               ob.Kind,
		Amount:             ob.Amount,
		Description:        fmt.Sprintf("%s (recurring)", ob.Description),
		CategoryID:         ob.CategoryID,
		Date:               due,
		SourceObligationID: ob.ID,
	}
	if ob.Kind == models.KindExpense {
		entry.VendorID = ob.VendorID
	}
	if err := p.store.CreateLedgerEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to create %s entry: %w", ob.Kind, err)
	}

	next, err := schedule.Next(due, ob.Frequency)
	if err != nil {
		return fmt.Errorf("failed to compute next due date: %w", err)
	}
	advanced, err := p.store.AdvanceObligation(ctx, ob.ID, due, next)
	if err != nil {
		return fmt.Errorf("failed to advance obligation: %w", err)
	}
	if !advanced {
		p.log.Warnf("Obligation %d was advanced concurrently, keeping ledger entry %d", ob.ID, entry.ID)
	}

	result.CreatedRecords = append(result.CreatedRecords, models.CreatedRecord{
		Kind:        entry.Kind,
		RecordID:    entry.ID,
		Amount:      entry.Amount,
		Description: entry.Description,
	})
	result.ProcessedCount++
	p.mon.LogSuccess(monitor.Event{
		Message:      "materialized recurring entry",
		UserID:       ob.UserID,
		ObligationID: ob.ID,
		Amount:       entry.Amount,
	})
	return nil
}

// UpcomingSchedule returns the user's active obligations due within
// horizonDays, ordered by next due date and annotated with overdue state.
// Never mutates any obligation.
func (p *Processor) UpcomingSchedule(ctx context.Context, userID int64, horizonDays int) ([]models.UpcomingObligation, error) {
	now := p.now()
	obligations, err := p.store.FindActiveObligations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load obligations: %w", err)
	}

	horizon := now.AddDate(0, 0, horizonDays)
	upcoming := make([]models.UpcomingObligation, 0, len(obligations))
	for _, ob := range obligations {
		if horizonDays > 0 && ob.NextDueDate.After(horizon) {
			continue
		}
		row := models.UpcomingObligation{RecurringObligation: ob}
		if ob.NextDueDate.Before(now) {
			row.IsOverdue = true
			row.DaysPastDue = int(now.Sub(ob.NextDueDate).Hours() / 24)
		}
		upcoming = append(upcoming, row)
	}
	return upcoming, nil
}

// ValidateRecurringPayment delegates to the validation engine
func (p *Processor) ValidateRecurringPayment(draft models.ObligationDraft) validation.Result {
	return validation.ValidateObligation(draft)
}
