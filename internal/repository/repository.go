package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerkeep/recurring-service/internal/models"
)

// Repository provides database operations
type Repository struct {
	db       *sql.DB
	inserter map[models.Kind]func(ctx context.Context, entry *models.LedgerEntry) error
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	r := &Repository{db: db}
	// ledger inserts dispatch on the obligation kind
	r.inserter = map[models.Kind]func(ctx context.Context, entry *models.LedgerEntry) error{
		models.KindIncome:  r.insertIncome,
		models.KindExpense: r.insertExpense,
	}
	return r
}

const obligationColumns = `
	id, user_id, kind, amount, description, frequency, category_id, vendor_id,
	start_date, end_date, next_due_date, is_active, created_at, updated_at`

// FindActiveObligationsDueOrExpired returns every active obligation that is
// either due (next_due_date <= now) or expired (end_date < now). A zero
// userID means all users.
func (r *Repository) FindActiveObligationsDueOrExpired(ctx context.Context, userID int64, now time.Time) ([]models.RecurringObligation, error) {
	query := `
		SELECT` + obligationColumns + `
		FROM finance.recurring_obligations
		WHERE is_active = TRUE
		  AND (next_due_date <= $1 OR (end_date IS NOT NULL AND end_date < $1))`
	args := []any{now}
	if userID != 0 {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	query += ` ORDER BY next_due_date`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due obligations: %w", err)
	}
	defer rows.Close()
	return scanObligations(rows)
}

// FindActiveObligations returns the user's active obligations ordered by
// next due date ascending; backs the schedule-preview read path.
func (r *Repository) FindActiveObligations(ctx context.Context, userID int64) ([]models.RecurringObligation, error) {
	query := `
		SELECT` + obligationColumns + `
		FROM finance.recurring_obligations
		WHERE is_active = TRUE AND user_id = $1
		ORDER BY next_due_date`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query obligations: %w", err)
	}
	defer rows.Close()
	return scanObligations(rows)
}

// AdvanceObligation moves next_due_date forward with an optimistic
// conditional write keyed on the previously read due date. Returns false
// when a concurrent writer already advanced the obligation.
func (r *Repository) AdvanceObligation(ctx context.Context, id int64, prevDue, nextDue time.Time) (bool, error) {
	query := `
		UPDATE finance.recurring_obligations
		SET next_due_date = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND next_due_date = $3 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, nextDue, id, prevDue)
	if err != nil {
		return false, fmt.Errorf("failed to advance obligation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to advance obligation %d: %w", id, err)
	}
	return n > 0, nil
}

// DeactivateObligation marks an expired obligation inactive. Returns false
// when it was already inactive.
func (r *Repository) DeactivateObligation(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE finance.recurring_obligations
		SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate obligation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to deactivate obligation %d: %w", id, err)
	}
	return n > 0, nil
}

// CreateLedgerEntry inserts the materialized record into the table matching
// the entry's kind and fills in its generated fields
func (r *Repository) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	insert, ok := r.inserter[entry.Kind]
	if !ok {
		return fmt.Errorf("unknown ledger entry kind %q", entry.Kind)
	}
	return insert(ctx, entry)
}

func (r *Repository) insertIncome(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO finance.incomes (user_id, amount, description, category_id, date, source_obligation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		entry.UserID, entry.Amount, entry.Description, entry.CategoryID, entry.Date, entry.SourceObligationID).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create income: %w", err)
	}
	return nil
}

func (r *Repository) insertExpense(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO finance.expenses (user_id, amount, description, category_id, vendor_id, date, source_obligation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		entry.UserID, entry.Amount, entry.Description, entry.CategoryID, entry.VendorID, entry.Date, entry.SourceObligationID).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO finance.users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM finance.users
		WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func scanObligations(rows *sql.Rows) ([]models.RecurringObligation, error) {
	var obligations []models.RecurringObligation
	for rows.Next() {
		var ob models.RecurringObligation
		err := rows.Scan(
			&ob.ID, &ob.UserID, &ob.Kind, &ob.Amount, &ob.Description, &ob.Frequency,
			&ob.CategoryID, &ob.VendorID, &ob.StartDate, &ob.EndDate, &ob.NextDueDate,
			&ob.IsActive, &ob.CreatedAt, &ob.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan obligation: %w", err)
		}
		obligations = append(obligations, ob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read obligations: %w", err)
	}
	return obligations, nil
}
