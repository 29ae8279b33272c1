package domain

import "context"

// JobRecordRepository persists finished generation jobs for audit and history.
type JobRecordRepository interface {
	Create(ctx context.Context, rec *JobRecord) error
	UpdateTerminal(ctx context.Context, rec *JobRecord) error
	GetByID(ctx context.Context, id, userID string) (*JobRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]JobRecord, error)
}

// CreditRepository is the storage contract for the credit ledger gate.
// Deduct must be a single conditional atomic update, not read-modify-write.
type CreditRepository interface {
	Balance(ctx context.Context, userID string) (int, error)
	Deduct(ctx context.Context, userID string, amount int, reason string) (bool, error)
	Add(ctx context.Context, userID string, amount int, reason string) error
	ListEntries(ctx context.Context, userID string, limit int) ([]LedgerEntry, error)
}

// PolicyRepository fetches the persisted cost policy document. An empty
// document with a nil error means no policy is stored.
type PolicyRepository interface {
	FetchCostPolicy(ctx context.Context) ([]byte, error)
}
