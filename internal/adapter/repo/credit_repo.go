package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidforge/server/internal/domain"
)

// CreditRepositoryPG implements domain.CreditRepository on PostgreSQL.
//
// Deduct is the hot path: the balance check and decrement run as one
// conditional UPDATE so two concurrent jobs can never spend the same credits.
type CreditRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCreditRepository creates a credit repository backed by PostgreSQL.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepositoryPG {
	return &CreditRepositoryPG{pool: pool}
}

// Balance returns the user's current credit balance.
func (r *CreditRepositoryPG) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1;`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("repo: read balance: %w", err)
	}
	return balance, nil
}

// Deduct atomically removes amount credits and writes the ledger entry in the
// same transaction. Returns false (with nil error) when the balance would go
// negative; the transaction leaves no trace in that case.
func (r *CreditRepositoryPG) Deduct(ctx context.Context, userID string, amount int, reason string) (bool, error) {
	if amount <= 0 {
		return true, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("repo: begin deduct: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE users
SET credits = credits - $1, updated_at = NOW()
WHERE id = $2 AND credits >= $1;
`, amount, userID)
	if err != nil {
		return false, fmt.Errorf("repo: deduct credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := insertLedgerEntry(ctx, tx, userID, -amount, reason); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("repo: commit deduct: %w", err)
	}
	return true, nil
}

// Add grants credits unconditionally and records the ledger entry.
func (r *CreditRepositoryPG) Add(ctx context.Context, userID string, amount int, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repo: begin grant: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE users
SET credits = credits + $1, updated_at = NOW()
WHERE id = $2;
`, amount, userID)
	if err != nil {
		return fmt.Errorf("repo: grant credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if err := insertLedgerEntry(ctx, tx, userID, amount, reason); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repo: commit grant: %w", err)
	}
	return nil
}

// ListEntries returns the newest ledger entries first.
func (r *CreditRepositoryPG) ListEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, amount, reason, created_at
FROM credit_ledger
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("repo: list ledger: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertLedgerEntry(ctx context.Context, tx pgx.Tx, userID string, amount int, reason string) error {
	_, err := tx.Exec(ctx, `
INSERT INTO credit_ledger (id, user_id, amount, reason)
VALUES ($1, $2, $3, $4);
`, uuid.NewString(), userID, amount, reason)
	if err != nil {
		return fmt.Errorf("repo: insert ledger entry: %w", err)
	}
	return nil
}
