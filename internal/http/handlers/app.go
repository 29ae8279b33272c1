package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"vidforge/server/internal/catalog"
	"vidforge/server/internal/credits"
	"vidforge/server/internal/domain"
	"vidforge/server/internal/infra"
	"vidforge/server/internal/orchestrator"
)

// GenerationService is the slice of the orchestrator the handlers need.
type GenerationService interface {
	SubmitGenerationJob(ctx context.Context, userID, modelID, variantID string, params orchestrator.Params) (*domain.JobRecord, error)
	RetryMaterialize(ctx context.Context, id, userID string) (*domain.JobRecord, error)
}

// App bundles handler dependencies.
type App struct {
	Generations GenerationService
	Registry    *catalog.Registry
	Credits     *credits.Service
	Jobs        domain.JobRecordRepository
	Logger      infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{
			"code":    errCode,
			"message": message,
		},
	})
}

// failureStatus maps pipeline failure kinds onto HTTP statuses.
func failureStatus(kind domain.FailureKind) int {
	switch kind {
	case domain.FailureValidation:
		return http.StatusBadRequest
	case domain.FailureInsufficientCredits:
		return http.StatusPaymentRequired
	case domain.FailurePollTimeout:
		return http.StatusGatewayTimeout
	case domain.FailureUpload, domain.FailureSubmission, domain.FailureProvider, domain.FailureDownload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
