package domain

import "time"

// LedgerEntry is one immutable, signed credit movement attributable to a user
// and a reason. Entries are never mutated or deleted; the balance is kept
// consistent with their running sum.
type LedgerEntry struct {
	ID        string
	UserID    string
	Amount    int
	Reason    string
	CreatedAt time.Time
}
