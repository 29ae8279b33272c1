package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vidforge/server/internal/domain"
	"vidforge/server/internal/middleware"
	"vidforge/server/internal/orchestrator"
)

type generateRequest struct {
	Model          string        `json:"model"`
	Variant        string        `json:"variant"`
	Prompt         string        `json:"prompt"`
	NegativePrompt string        `json:"negative_prompt,omitempty"`
	Resolution     string        `json:"resolution,omitempty"`
	Duration       string        `json:"duration,omitempty"`
	AspectRatio    string        `json:"aspect_ratio,omitempty"`
	ImageURLs      []string      `json:"image_urls,omitempty"`
	Images         []inlineImage `json:"images,omitempty"`
	ContinueTaskID string        `json:"continue_task_id,omitempty"`
}

type inlineImage struct {
	MIME string `json:"mime"`
	Data string `json:"data"` // base64
}

type generationResponse struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Model         string    `json:"model"`
	Variant       string    `json:"variant"`
	Cost          int       `json:"cost"`
	Charged       bool      `json:"charged"`
	ResultURL     string    `json:"result_url,omitempty"`
	ResultDataURL string    `json:"result_data_url,omitempty"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	ErrorDetail   string    `json:"error_detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toGenerationResponse(rec *domain.JobRecord) generationResponse {
	return generationResponse{
		ID:            rec.ID,
		Status:        string(rec.Status),
		Model:         rec.ModelID,
		Variant:       rec.VariantID,
		Cost:          rec.Cost,
		Charged:       rec.Charged,
		ResultURL:     rec.ResultURL,
		ResultDataURL: rec.ResultDataURL,
		ErrorKind:     rec.ErrorKind,
		ErrorDetail:   rec.ErrorDetail,
		CreatedAt:     rec.CreatedAt,
	}
}

// Generate runs one generation job synchronously and returns the terminal
// record. The write timeout must accommodate the variant's full poll budget.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Model == "" || req.Variant == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "model and variant are required")
		return
	}

	var images []domain.InlineAsset
	for _, img := range req.Images {
		data, err := base64.StdEncoding.DecodeString(img.Data)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "image data is not valid base64")
			return
		}
		images = append(images, domain.InlineAsset{Data: data, MIME: img.MIME})
	}

	rec, err := a.Generations.SubmitGenerationJob(r.Context(), userID, req.Model, req.Variant, orchestrator.Params{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Resolution:     req.Resolution,
		Duration:       req.Duration,
		AspectRatio:    req.AspectRatio,
		ImageURLs:      req.ImageURLs,
		Images:         images,
		ContinueTaskID: req.ContinueTaskID,
		Locale:         middleware.LocaleFromContext(r.Context()),
	})

	// A succeeded record is returned as a success even when the error carries
	// a download failure: the work is done and billed, the artifact URL is in
	// the record, and the client can re-fetch it.
	if rec != nil && rec.Status == domain.JobStatusSucceeded {
		a.json(w, http.StatusOK, toGenerationResponse(rec))
		return
	}
	if err != nil {
		kind := domain.KindOf(err)
		if kind == domain.FailureInternal {
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: generation failed unexpectedly")
		}
		a.error(w, failureStatus(kind), string(kind), domain.DetailOf(err))
		return
	}
	a.json(w, http.StatusOK, toGenerationResponse(rec))
}

// RetryMaterialize re-runs the artifact download for a billed job whose
// download previously failed. Billing is untouched.
func (a *App) RetryMaterialize(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := a.Generations.RetryMaterialize(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "generation not found")
			return
		}
		kind := domain.KindOf(err)
		a.error(w, failureStatus(kind), string(kind), domain.DetailOf(err))
		return
	}
	a.json(w, http.StatusOK, toGenerationResponse(rec))
}

// GetGeneration returns one historical record, scoped to its owner.
func (a *App) GetGeneration(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	rec, err := a.Jobs.GetByID(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "generation not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", id).Msg("handlers: generation lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load generation")
		return
	}
	a.json(w, http.StatusOK, toGenerationResponse(rec))
}

// ListGenerations returns the user's newest records.
func (a *App) ListGenerations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	records, err := a.Jobs.ListByUser(r.Context(), userID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: generation list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list generations")
		return
	}
	items := make([]generationResponse, 0, len(records))
	for i := range records {
		items = append(items, toGenerationResponse(&records[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
