package service

import (
	"context"
	"time"

	"github.com/ledgerkeep/recurring-service/internal/models"
)

// ObligationStore is the persistence collaborator the processor sweeps
// against. Implemented by the Postgres repository.
type ObligationStore interface {
	// FindActiveObligationsDueOrExpired returns active obligations that are
	// due or expired as of now; userID == 0 means all users.
	FindActiveObligationsDueOrExpired(ctx context.Context, userID int64, now time.Time) ([]models.RecurringObligation, error)
	// FindActiveObligations returns a user's active obligations ordered by
	// next due date ascending.
	FindActiveObligations(ctx context.Context, userID int64) ([]models.RecurringObligation, error)
	// AdvanceObligation conditionally moves next_due_date from prevDue to
	// nextDue; false means a concurrent writer got there first.
	AdvanceObligation(ctx context.Context, id int64, prevDue, nextDue time.Time) (bool, error)
	// DeactivateObligation marks an obligation inactive; false means it
	// already was.
	DeactivateObligation(ctx context.Context, id int64) (bool, error)
	// CreateLedgerEntry inserts the materialized record and fills in its
	// generated fields.
	CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
}

// UserStore backs registration and login
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}
