// Package db owns the SQL schema and its bootstrap. The service manages its
// own tables so a fresh database needs nothing but a connection string.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	credits    INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS credit_ledger (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users (id),
	amount     INTEGER NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS credit_ledger_user_created_idx
	ON credit_ledger (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS generation_jobs (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	model_id         TEXT NOT NULL,
	variant_id       TEXT NOT NULL,
	prompt           TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	cost             INTEGER NOT NULL DEFAULT 0,
	charged          BOOLEAN NOT NULL DEFAULT FALSE,
	provider         TEXT NOT NULL DEFAULT '',
	provider_task_id TEXT NOT NULL DEFAULT '',
	result_url       TEXT NOT NULL DEFAULT '',
	error_kind       TEXT NOT NULL DEFAULT '',
	error_detail     TEXT NOT NULL DEFAULT '',
	billing_flag     TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS generation_jobs_user_created_idx
	ON generation_jobs (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS generation_jobs_billing_flag_idx
	ON generation_jobs (billing_flag) WHERE billing_flag <> '';

CREATE TABLE IF NOT EXISTS app_settings (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates any missing tables and indexes. Idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("db: ensure schema: %w", err)
	}
	return nil
}
