// Package credits implements the check-then-settle gate over the per-user
// credit ledger.
package credits

import (
	"context"
	"fmt"

	"vidforge/server/internal/domain"
)

// Service exposes the ledger gate operations. Serialization of concurrent
// deductions happens at the storage layer, not here.
type Service struct {
	repo domain.CreditRepository
}

// NewService wires the gate to its storage.
func NewService(repo domain.CreditRepository) *Service {
	return &Service{repo: repo}
}

// Check reports whether the user's balance covers amount. It never mutates.
func (s *Service) Check(ctx context.Context, userID string, amount int) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("credits: read balance: %w", err)
	}
	return balance >= amount, nil
}

// Deduct atomically decrements the balance and appends a negative ledger
// entry. It fails closed: when the conditional decrement matches no row the
// operation is refused as a whole and no entry is written, so a balance can
// never go negative through this path.
func (s *Service) Deduct(ctx context.Context, userID string, amount int, reason string) (bool, error) {
	if amount <= 0 {
		return true, nil
	}
	ok, err := s.repo.Deduct(ctx, userID, amount, reason)
	if err != nil {
		return false, fmt.Errorf("credits: deduct: %w", err)
	}
	return ok, nil
}

// Add credits the user unconditionally, for top-ups and refunds.
func (s *Service) Add(ctx context.Context, userID string, amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("credits: add amount must be positive, got %d", amount)
	}
	if err := s.repo.Add(ctx, userID, amount, reason); err != nil {
		return fmt.Errorf("credits: add: %w", err)
	}
	return nil
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	return s.repo.Balance(ctx, userID)
}

// History returns the most recent ledger entries for the user.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListEntries(ctx, userID, limit)
}
