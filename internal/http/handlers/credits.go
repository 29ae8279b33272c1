package handlers

import (
	"net/http"
	"time"

	"vidforge/server/internal/middleware"
)

type ledgerEntryResponse struct {
	ID        string    `json:"id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// GetCredits returns the balance plus recent ledger activity.
func (a *App) GetCredits(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	balance, err := a.Credits.Balance(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: balance lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	entries, err := a.Credits.History(r.Context(), userID, 20)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: ledger lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load ledger")
		return
	}
	items := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, ledgerEntryResponse{
			ID:        e.ID,
			Amount:    e.Amount,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"balance": balance,
		"ledger":  items,
	})
}
