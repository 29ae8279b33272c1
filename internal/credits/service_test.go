package credits

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"vidforge/server/internal/domain"
)

// memCreditRepo mimics the storage-level guarantee: the conditional decrement
// and the ledger append happen under one lock.
type memCreditRepo struct {
	mu       sync.Mutex
	balances map[string]int
	entries  []domain.LedgerEntry
}

func newMemCreditRepo(balances map[string]int) *memCreditRepo {
	return &memCreditRepo{balances: balances}
}

func (r *memCreditRepo) Balance(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID], nil
}

func (r *memCreditRepo) Deduct(ctx context.Context, userID string, amount int, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[userID] < amount {
		return false, nil
	}
	r.balances[userID] -= amount
	r.entries = append(r.entries, domain.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    -amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	})
	return true, nil
}

func (r *memCreditRepo) Add(ctx context.Context, userID string, amount int, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] += amount
	r.entries = append(r.entries, domain.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *memCreditRepo) ListEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LedgerEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].UserID == userID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func TestCheckThenDeductExactBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemCreditRepo(map[string]int{"u1": 70})
	svc := NewService(repo)

	ok, err := svc.Check(ctx, "u1", 70)
	if err != nil || !ok {
		t.Fatalf("Check = %v, %v; want true, nil", ok, err)
	}
	ok, err = svc.Deduct(ctx, "u1", 70, "video generation")
	if err != nil || !ok {
		t.Fatalf("Deduct = %v, %v; want true, nil", ok, err)
	}
	balance, _ := svc.Balance(ctx, "u1")
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
	entries, _ := svc.History(ctx, "u1", 10)
	if len(entries) != 1 || entries[0].Amount != -70 {
		t.Fatalf("expected one -70 ledger entry, got %+v", entries)
	}
}

func TestDeductRefusedWhenBalanceShort(t *testing.T) {
	ctx := context.Background()
	repo := newMemCreditRepo(map[string]int{"u1": 100})
	svc := NewService(repo)

	ok, err := svc.Deduct(ctx, "u1", 630, "sora-2-pro high/15")
	if err != nil {
		t.Fatalf("Deduct error: %v", err)
	}
	if ok {
		t.Fatalf("deduct above balance must be refused")
	}
	balance, _ := svc.Balance(ctx, "u1")
	if balance != 100 {
		t.Fatalf("refused deduct mutated balance: %d", balance)
	}
	entries, _ := svc.History(ctx, "u1", 10)
	if len(entries) != 0 {
		t.Fatalf("refused deduct wrote ledger entries: %+v", entries)
	}
}

func TestConcurrentDeductionsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	const start = 500
	repo := newMemCreditRepo(map[string]int{"u1": start})
	svc := NewService(repo)

	const workers = 32
	const amount = 70
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Deduct(ctx, "u1", amount, "race")
			if err != nil {
				t.Errorf("Deduct error: %v", err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for ok := range results {
		if ok {
			succeeded++
		}
	}
	if want := start / amount; succeeded != want {
		t.Fatalf("%d deductions succeeded, want %d", succeeded, want)
	}
	balance, _ := svc.Balance(ctx, "u1")
	if balance < 0 {
		t.Fatalf("balance went negative: %d", balance)
	}
	if balance != start-succeeded*amount {
		t.Fatalf("balance %d inconsistent with %d successful deductions", balance, succeeded)
	}
}

func TestAddIsUnconditional(t *testing.T) {
	ctx := context.Background()
	repo := newMemCreditRepo(map[string]int{})
	svc := NewService(repo)

	if err := svc.Add(ctx, "new-user", 300, "top-up"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	balance, _ := svc.Balance(ctx, "new-user")
	if balance != 300 {
		t.Fatalf("balance = %d, want 300", balance)
	}
	if err := svc.Add(ctx, "new-user", 0, "noop"); err == nil {
		t.Fatalf("Add with non-positive amount must be rejected")
	}
}
