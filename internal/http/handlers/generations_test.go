package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"vidforge/server/internal/catalog"
	"vidforge/server/internal/credits"
	"vidforge/server/internal/domain"
	"vidforge/server/internal/infra"
	"vidforge/server/internal/middleware"
	"vidforge/server/internal/orchestrator"
)

type stubGenerations struct {
	record   *domain.JobRecord
	err      error
	retryRec *domain.JobRecord
	retryErr error
	lastReq  struct {
		userID, model, variant string
		params                 orchestrator.Params
	}
}

func (s *stubGenerations) SubmitGenerationJob(ctx context.Context, userID, modelID, variantID string, params orchestrator.Params) (*domain.JobRecord, error) {
	s.lastReq.userID = userID
	s.lastReq.model = modelID
	s.lastReq.variant = variantID
	s.lastReq.params = params
	return s.record, s.err
}

func (s *stubGenerations) RetryMaterialize(ctx context.Context, id, userID string) (*domain.JobRecord, error) {
	return s.retryRec, s.retryErr
}

type stubJobs struct {
	records map[string]*domain.JobRecord
}

func (s *stubJobs) Create(ctx context.Context, rec *domain.JobRecord) error         { return nil }
func (s *stubJobs) UpdateTerminal(ctx context.Context, rec *domain.JobRecord) error { return nil }

func (s *stubJobs) GetByID(ctx context.Context, id, userID string) (*domain.JobRecord, error) {
	rec, ok := s.records[id]
	if !ok || rec.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *stubJobs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.JobRecord, error) {
	var out []domain.JobRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

type stubCredits struct {
	balance int
	entries []domain.LedgerEntry
}

func (s *stubCredits) Balance(ctx context.Context, userID string) (int, error) { return s.balance, nil }
func (s *stubCredits) Deduct(ctx context.Context, userID string, amount int, reason string) (bool, error) {
	return true, nil
}
func (s *stubCredits) Add(ctx context.Context, userID string, amount int, reason string) error {
	return nil
}
func (s *stubCredits) ListEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	return s.entries, nil
}

func newTestApp(gen *stubGenerations, jobs *stubJobs, creditRepo *stubCredits) *App {
	if jobs == nil {
		jobs = &stubJobs{records: map[string]*domain.JobRecord{}}
	}
	if creditRepo == nil {
		creditRepo = &stubCredits{}
	}
	return &App{
		Generations: gen,
		Registry:    catalog.NewRegistry(),
		Credits:     credits.NewService(creditRepo),
		Jobs:        jobs,
		Logger:      infra.Logger(zerolog.Nop()),
	}
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.ContextWithUserID(req.Context(), "u1"))
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGenerateReturnsTerminalRecord(t *testing.T) {
	gen := &stubGenerations{record: &domain.JobRecord{
		ID:        "job-1",
		UserID:    "u1",
		ModelID:   "wan-2-6",
		VariantID: "text-to-video",
		Status:    domain.JobStatusSucceeded,
		Cost:      70,
		Charged:   true,
		ResultURL: "https://cdn.example.com/out.mp4",
		CreatedAt: time.Now().UTC(),
	}}
	app := newTestApp(gen, nil, nil)

	rr := httptest.NewRecorder()
	app.Generate(rr, authedRequest(http.MethodPost, "/v1/generations",
		`{"model":"wan-2-6","variant":"text-to-video","prompt":"a whale","duration":"5s"}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp generationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "job-1" || resp.Status != "succeeded" || resp.Cost != 70 || !resp.Charged {
		t.Fatalf("response = %+v", resp)
	}
	if gen.lastReq.userID != "u1" || gen.lastReq.params.Duration != "5s" {
		t.Fatalf("orchestrator call = %+v", gen.lastReq)
	}
}

func TestGenerateMapsFailureKinds(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"validation", domain.NewFailure(domain.FailureValidation, "prompt is required"), http.StatusBadRequest, "validation"},
		{"insufficient credits", domain.NewFailure(domain.FailureInsufficientCredits, "job costs 630 credits"), http.StatusPaymentRequired, "insufficient_credits"},
		{"poll timeout", domain.NewFailure(domain.FailurePollTimeout, "no terminal status"), http.StatusGatewayTimeout, "poll_timeout"},
		{"provider failure", domain.NewFailure(domain.FailureProvider, "unsafe prompt"), http.StatusBadGateway, "provider_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(&stubGenerations{err: tc.err}, nil, nil)
			rr := httptest.NewRecorder()
			app.Generate(rr, authedRequest(http.MethodPost, "/v1/generations",
				`{"model":"wan-2-6","variant":"text-to-video","prompt":"x"}`))
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tc.wantKind {
				t.Fatalf("error code = %q, want %q", body.Error.Code, tc.wantKind)
			}
		})
	}
}

func TestGenerateSucceededWithDownloadErrorStillOK(t *testing.T) {
	rec := &domain.JobRecord{
		ID:        "job-1",
		UserID:    "u1",
		Status:    domain.JobStatusSucceeded,
		Charged:   true,
		ResultURL: "https://cdn.example.com/out.mp4",
		ErrorKind: string(domain.FailureDownload),
	}
	gen := &stubGenerations{record: rec, err: domain.NewFailure(domain.FailureDownload, "fetch failed")}
	app := newTestApp(gen, nil, nil)

	rr := httptest.NewRecorder()
	app.Generate(rr, authedRequest(http.MethodPost, "/v1/generations",
		`{"model":"wan-2-6","variant":"text-to-video","prompt":"x"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: billed work must be surfaced", rr.Code)
	}
	var resp generationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ErrorKind != "download_failed" || resp.ResultURL == "" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	app := newTestApp(&stubGenerations{}, nil, nil)
	rr := httptest.NewRecorder()
	app.Generate(rr, authedRequest(http.MethodPost, "/v1/generations", `{not json`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestGenerateRequiresUserContext(t *testing.T) {
	app := newTestApp(&stubGenerations{}, nil, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/generations",
		strings.NewReader(`{"model":"wan-2-6","variant":"text-to-video","prompt":"x"}`))
	app.Generate(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestRetryMaterializeEndpoint(t *testing.T) {
	t.Run("cleared record returned", func(t *testing.T) {
		gen := &stubGenerations{retryRec: &domain.JobRecord{
			ID:            "job-1",
			UserID:        "u1",
			Status:        domain.JobStatusSucceeded,
			Charged:       true,
			ResultDataURL: "data:video/mp4;base64,AQI=",
		}}
		app := newTestApp(gen, nil, nil)
		rr := httptest.NewRecorder()
		req := withChiParam(authedRequest(http.MethodPost, "/v1/generations/job-1/materialize", ""), "id", "job-1")
		app.RetryMaterialize(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		var resp generationResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.ResultDataURL == "" || resp.ErrorKind != "" {
			t.Fatalf("response = %+v", resp)
		}
	})

	t.Run("unknown job", func(t *testing.T) {
		app := newTestApp(&stubGenerations{retryErr: domain.ErrNotFound}, nil, nil)
		rr := httptest.NewRecorder()
		req := withChiParam(authedRequest(http.MethodPost, "/v1/generations/missing/materialize", ""), "id", "missing")
		app.RetryMaterialize(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rr.Code)
		}
	})

	t.Run("nothing pending", func(t *testing.T) {
		app := newTestApp(&stubGenerations{retryErr: domain.NewFailure(domain.FailureValidation, "no pending materialization")}, nil, nil)
		rr := httptest.NewRecorder()
		req := withChiParam(authedRequest(http.MethodPost, "/v1/generations/job-1/materialize", ""), "id", "job-1")
		app.RetryMaterialize(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rr.Code)
		}
	})
}

func TestGetGenerationScopedToOwner(t *testing.T) {
	jobs := &stubJobs{records: map[string]*domain.JobRecord{
		"job-1": {ID: "job-1", UserID: "someone-else", Status: domain.JobStatusSucceeded},
	}}
	app := newTestApp(&stubGenerations{}, jobs, nil)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/v1/generations/job-1", "")
	req = withChiParam(req, "id", "job-1")
	app.GetGeneration(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for another user's job", rr.Code)
	}
}

func TestListModelsExposesCatalog(t *testing.T) {
	app := newTestApp(&stubGenerations{}, nil, nil)
	rr := httptest.NewRecorder()
	app.ListModels(rr, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Models []modelResponse `json:"models"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Models) == 0 {
		t.Fatal("no models returned")
	}
	for _, m := range body.Models {
		if m.ID == "" || m.Kind == "" || len(m.Variants) == 0 {
			t.Fatalf("incomplete model entry: %+v", m)
		}
	}
}

func TestGetCreditsReturnsBalanceAndLedger(t *testing.T) {
	creditRepo := &stubCredits{
		balance: 430,
		entries: []domain.LedgerEntry{
			{ID: "e1", UserID: "u1", Amount: -70, Reason: "wan-2-6/text-to-video generation job-1"},
		},
	}
	app := newTestApp(&stubGenerations{}, nil, creditRepo)

	rr := httptest.NewRecorder()
	app.GetCredits(rr, authedRequest(http.MethodGet, "/v1/credits", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Balance int                   `json:"balance"`
		Ledger  []ledgerEntryResponse `json:"ledger"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Balance != 430 || len(body.Ledger) != 1 || body.Ledger[0].Amount != -70 {
		t.Fatalf("body = %+v", body)
	}
}
