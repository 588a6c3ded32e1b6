package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clipforge/internal/services"
)

// Ledger tracks per-user credit balances and the debits charged against
// them. It shares the job store's SQLite connection so balance checks and
// job bookkeeping live in one database.
type Ledger struct {
	db *sql.DB
}

// Debit is one recorded charge against a user's balance.
type Debit struct {
	ID        string
	UserID    string
	JobID     string
	Amount    int64
	Reason    string
	Settled   bool
	CreatedAt time.Time
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    credits INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS debits (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    job_id TEXT NOT NULL,
    amount INTEGER NOT NULL,
    reason TEXT NOT NULL,
    settled INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_debits_job_reason ON debits(job_id, reason);
CREATE INDEX IF NOT EXISTS idx_debits_user ON debits(user_id, created_at);
`

// New prepares the ledger tables on the shared database connection.
func New(db *sql.DB) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("ledger requires a database connection")
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// EnsureUser creates a user row with the given starting balance when the
// user is unknown. Existing balances are left untouched.
func (l *Ledger) EnsureUser(ctx context.Context, userID string, startingCredits int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(
		ctx,
		`INSERT INTO users (id, credits, created_at, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		userID,
		startingCredits,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// Balance returns the user's current credit balance. Unknown users have a
// zero balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int64, error) {
	var credits int64
	err := l.db.QueryRowContext(ctx, `SELECT credits FROM users WHERE id = ?`, userID).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return credits, nil
}

// HasCredits reports whether the user can afford the given amount.
func (l *Ledger) HasCredits(ctx context.Context, userID string, amount int64) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Debit atomically charges amount against the user's balance and records
// the charge. The conditional update never drives a balance negative;
// callers get ErrInsufficientCredits instead. A repeated debit for the same
// job and reason is a no-op, so retried pipelines charge at most once.
func (l *Ledger) Debit(ctx context.Context, userID, jobID string, amount int64, reason string) error {
	if amount <= 0 {
		return services.Wrap(services.ErrValidation, "ledger", "debit", fmt.Sprintf("amount %d must be positive", amount), nil)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin debit tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM debits WHERE job_id = ? AND reason = ?`, jobID, reason).Scan(&existing)
	if err != nil {
		return fmt.Errorf("check existing debit: %w", err)
	}
	if existing > 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(
		ctx,
		`UPDATE users SET credits = credits - ?, updated_at = ? WHERE id = ? AND credits >= ?`,
		amount,
		now,
		userID,
		amount,
	)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrInsufficientCredits, "ledger", "debit",
			fmt.Sprintf("user %s cannot afford %d credits", userID, amount), nil)
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO debits (id, user_id, job_id, amount, reason, settled, created_at) VALUES (?, ?, ?, ?, ?, 1, ?)`,
		uuid.NewString(),
		userID,
		jobID,
		amount,
		reason,
		now,
	); err != nil {
		return fmt.Errorf("record debit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit debit: %w", err)
	}
	return nil
}

// RecordUnsettled writes a debit row that has not been applied to the
// balance. Used when a charge could not land after the work already
// shipped, so operators can reconcile later.
func (l *Ledger) RecordUnsettled(ctx context.Context, userID, jobID string, amount int64, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(
		ctx,
		`INSERT INTO debits (id, user_id, job_id, amount, reason, settled, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)
         ON CONFLICT(job_id, reason) DO NOTHING`,
		uuid.NewString(),
		userID,
		jobID,
		amount,
		reason,
		now,
	)
	if err != nil {
		return fmt.Errorf("record unsettled debit: %w", err)
	}
	return nil
}

// Credit adds credits to a user's balance, creating the user when needed.
func (l *Ledger) Credit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return services.Wrap(services.ErrValidation, "ledger", "credit", fmt.Sprintf("amount %d must be positive", amount), nil)
	}
	if err := l.EnsureUser(ctx, userID, 0); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := l.db.ExecContext(
		ctx,
		`UPDATE users SET credits = credits + ?, updated_at = ? WHERE id = ?`,
		amount,
		now,
		userID,
	)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// DebitsForUser returns a user's recorded debits, newest first.
func (l *Ledger) DebitsForUser(ctx context.Context, userID string) ([]Debit, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT id, user_id, job_id, amount, reason, settled, created_at
         FROM debits WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list debits: %w", err)
	}
	defer rows.Close()

	var debits []Debit
	for rows.Next() {
		var (
			d          Debit
			settled    int
			createdRaw string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.JobID, &d.Amount, &d.Reason, &settled, &createdRaw); err != nil {
			return nil, err
		}
		d.Settled = settled != 0
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			d.CreatedAt = created
		}
		debits = append(debits, d)
	}
	return debits, rows.Err()
}

// Unsettled returns every debit that was recorded without landing on a balance.
func (l *Ledger) Unsettled(ctx context.Context) ([]Debit, error) {
	rows, err := l.db.QueryContext(
		ctx,
		`SELECT id, user_id, job_id, amount, reason, settled, created_at
         FROM debits WHERE settled = 0 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list unsettled debits: %w", err)
	}
	defer rows.Close()

	var debits []Debit
	for rows.Next() {
		var (
			d          Debit
			settled    int
			createdRaw string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.JobID, &d.Amount, &d.Reason, &settled, &createdRaw); err != nil {
			return nil, err
		}
		d.Settled = settled != 0
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			d.CreatedAt = created
		}
		debits = append(debits, d)
	}
	return debits, rows.Err()
}
