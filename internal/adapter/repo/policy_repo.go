package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PolicyRepositoryPG reads the operator-managed cost policy document.
// The table holds one JSON document per key; pricing only uses "cost_policy".
type PolicyRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository creates a policy repository backed by PostgreSQL.
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepositoryPG {
	return &PolicyRepositoryPG{pool: pool}
}

// FetchCostPolicy returns the raw policy JSON, or nil when none is stored.
func (r *PolicyRepositoryPG) FetchCostPolicy(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = 'cost_policy';`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repo: fetch cost policy: %w", err)
	}
	return raw, nil
}

// SaveCostPolicy upserts the policy document. Used by operator tooling.
func (r *PolicyRepositoryPG) SaveCostPolicy(ctx context.Context, raw []byte) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO app_settings (key, value, updated_at)
VALUES ('cost_policy', $1, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW();
`, raw)
	if err != nil {
		return fmt.Errorf("repo: save cost policy: %w", err)
	}
	return nil
}
