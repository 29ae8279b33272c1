package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidforge/server/internal/domain"
)

// JobRecordRepositoryPG implements domain.JobRecordRepository.
type JobRecordRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRecordRepository creates a job record repository backed by PostgreSQL.
func NewJobRecordRepository(pool *pgxpool.Pool) *JobRecordRepositoryPG {
	return &JobRecordRepositoryPG{pool: pool}
}

// Create inserts a terminal job record.
func (r *JobRecordRepositoryPG) Create(ctx context.Context, rec *domain.JobRecord) error {
	query := `
INSERT INTO generation_jobs (
	id, user_id, model_id, variant_id, prompt, status, cost, charged,
	provider, provider_task_id, result_url, error_kind, error_detail,
	billing_flag, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.ModelID,
		rec.VariantID,
		rec.Prompt,
		rec.Status,
		rec.Cost,
		rec.Charged,
		rec.Provider,
		rec.ProviderTaskID,
		rec.ResultURL,
		rec.ErrorKind,
		rec.ErrorDetail,
		rec.BillingFlag,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

// UpdateTerminal rewrites the mutable outcome columns of an existing record.
// Used by reconciliation tooling, never by the submission pipeline.
func (r *JobRecordRepositoryPG) UpdateTerminal(ctx context.Context, rec *domain.JobRecord) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    charged = $3,
    result_url = $4,
    error_kind = $5,
    error_detail = $6,
    billing_flag = $7,
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.Status,
		rec.Charged,
		rec.ResultURL,
		rec.ErrorKind,
		rec.ErrorDetail,
		rec.BillingFlag,
	)
	return err
}

// GetByID fetches a job record scoped to its owner.
func (r *JobRecordRepositoryPG) GetByID(ctx context.Context, id, userID string) (*domain.JobRecord, error) {
	query := selectJobColumns + `
WHERE id = $1 AND user_id = $2;
`
	return scanJobRecord(r.pool.QueryRow(ctx, query, id, userID))
}

// ListByUser returns the newest records first.
func (r *JobRecordRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := selectJobColumns + `
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.JobRecord
	for rows.Next() {
		rec, err := scanJobRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

const selectJobColumns = `
SELECT id, user_id, model_id, variant_id, prompt, status, cost, charged,
       provider, provider_task_id, result_url, error_kind, error_detail,
       billing_flag, created_at, updated_at
FROM generation_jobs`

func scanJobRecord(row pgx.Row) (*domain.JobRecord, error) {
	var rec domain.JobRecord
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ModelID,
		&rec.VariantID,
		&rec.Prompt,
		&rec.Status,
		&rec.Cost,
		&rec.Charged,
		&rec.Provider,
		&rec.ProviderTaskID,
		&rec.ResultURL,
		&rec.ErrorKind,
		&rec.ErrorDetail,
		&rec.BillingFlag,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}
