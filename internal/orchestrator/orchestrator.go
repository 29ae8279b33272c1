// Package orchestrator runs the full generation pipeline: validate, price,
// gate credits, submit, poll, materialize, settle, persist. Each job executes
// as one sequential pipeline; concurrent jobs only share the credit ledger,
// which serializes at the storage layer.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidforge/server/internal/catalog"
	"vidforge/server/internal/credits"
	"vidforge/server/internal/domain"
	"vidforge/server/internal/infra"
	"vidforge/server/internal/pricing"
	"vidforge/server/internal/providers"
)

// Params is the caller-supplied input for one generation job.
type Params struct {
	Prompt         string
	NegativePrompt string
	ImageURLs      []string
	Images         []domain.InlineAsset
	ContinueTaskID string
	Resolution     string
	Duration       string
	AspectRatio    string
	Locale         string

	// OnProgress receives (attempt, max) once per poll attempt.
	OnProgress func(attempt, max int)
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry *catalog.Registry
	Pricing  *pricing.Source
	Credits  *credits.Service
	Adapters map[string]providers.Adapter
	Jobs     domain.JobRecordRepository
	Logger   infra.Logger

	// ArtifactClient is used by the materializer; nil gets a default.
	ArtifactClient *Materializer
}

// Service is the single entry point route handlers call.
type Service struct {
	registry     *catalog.Registry
	pricing      *pricing.Source
	credits      *credits.Service
	adapters     map[string]providers.Adapter
	jobs         domain.JobRecordRepository
	poller       *Poller
	materializer *Materializer
	logger       infra.Logger
}

// New constructs the orchestrator.
func New(cfg Config) *Service {
	materializer := cfg.ArtifactClient
	if materializer == nil {
		materializer = NewMaterializer(nil)
	}
	return &Service{
		registry:     cfg.Registry,
		pricing:      cfg.Pricing,
		credits:      cfg.Credits,
		adapters:     cfg.Adapters,
		jobs:         cfg.Jobs,
		poller:       NewPoller(&cfg.Logger),
		materializer: materializer,
		logger:       cfg.Logger,
	}
}

// SubmitGenerationJob runs the whole pipeline and returns a terminal job
// record: either a success with an artifact reference or a failure with error
// detail. It never returns a non-terminal job. Jobs rejected before
// submission (validation, pricing gate) return no record at all.
func (s *Service) SubmitGenerationJob(ctx context.Context, userID, modelID, variantID string, params Params) (*domain.JobRecord, error) {
	model := s.registry.DescribeModel(modelID)
	if model == nil {
		return nil, domain.Failuref(domain.FailureValidation, "unknown model %q", modelID)
	}
	variant := model.Variant(variantID)
	if variant == nil {
		return nil, domain.Failuref(domain.FailureValidation, "model %q has no variant %q", modelID, variantID)
	}
	opts, err := s.resolveOptions(model, variant, params)
	if err != nil {
		return nil, err
	}
	if err := validateInput(variant.Inputs, params); err != nil {
		return nil, err
	}

	price := s.price(ctx, model, variantID, opts)

	ok, err := s.credits.Check(ctx, userID, price)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: credit pre-check: %w", err)
	}
	if !ok {
		return nil, domain.Failuref(domain.FailureInsufficientCredits, "job costs %d credits", price)
	}

	adapter, ok := s.adapters[model.Provider]
	if !ok {
		return nil, fmt.Errorf("orchestrator: no adapter configured for provider %q", model.Provider)
	}

	job := &domain.GenerationJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		ModelID:   modelID,
		VariantID: variantID,
		Price:     price,
		Options:   opts,
		Status:    domain.JobStatusSubmitted,
		Input: domain.GenerationInput{
			Prompt:         strings.TrimSpace(params.Prompt),
			NegativePrompt: strings.TrimSpace(params.NegativePrompt),
			ImageURLs:      params.ImageURLs,
			Images:         params.Images,
			ContinueTaskID: params.ContinueTaskID,
			Locale:         params.Locale,
		},
	}

	record, failure := s.run(ctx, model, variant, adapter, job, params.OnProgress)
	s.persist(ctx, record)
	if failure != nil {
		return record, failure
	}
	return record, nil
}

// RetryMaterialize re-fetches the artifact for a record that was billed but
// never materialized, clearing the retry flag once the bytes are in hand. The
// billing is never touched; only the download is retried.
func (s *Service) RetryMaterialize(ctx context.Context, id, userID string) (*domain.JobRecord, error) {
	rec, err := s.jobs.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if rec.BillingFlag != domain.BillingFlagRetryMaterialize || rec.ResultURL == "" {
		return nil, domain.Failuref(domain.FailureValidation, "job %q has no pending materialization", id)
	}

	data, mime, err := s.materializer.FetchArtifact(ctx, rec.ResultURL)
	if err != nil {
		return rec, asFailure(domain.FailureDownload, err)
	}
	rec.ResultDataURL = DataURL(data, mime)
	rec.BillingFlag = domain.BillingFlagNone
	rec.ErrorKind = ""
	rec.ErrorDetail = ""
	if err := s.jobs.UpdateTerminal(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("job_id", rec.ID).Msg("orchestrator: clearing retry flag failed")
	}
	return rec, nil
}

// run executes the provider-facing stages. It always returns a terminal
// record once the job exists; the accompanying failure is nil on success.
func (s *Service) run(ctx context.Context, model *domain.ModelDescriptor, variant *domain.VariantDescriptor, adapter providers.Adapter, job *domain.GenerationJob, onProgress func(int, int)) (*domain.JobRecord, *domain.Failure) {
	// Pre-host inline assets for providers that only accept URLs.
	for _, asset := range job.Input.Images {
		url, err := adapter.UploadAsset(ctx, asset.Data, asset.MIME)
		if err != nil {
			f := asFailure(domain.FailureUpload, err)
			return s.terminal(job, model, domain.JobStatusFailed, f), f
		}
		job.Input.ImageURLs = append(job.Input.ImageURLs, url)
	}

	taskID, err := adapter.Submit(ctx, providers.SubmitRequest{
		Model:             variant.ProviderModel,
		Prompt:            job.Input.Prompt,
		NegativePrompt:    job.Input.NegativePrompt,
		ImageURLs:         job.Input.ImageURLs,
		VideoURLs:         job.Input.VideoURLs,
		ContinueTaskID:    job.Input.ContinueTaskID,
		Duration:          job.Options.Duration,
		Resolution:        job.Options.Resolution,
		AspectRatio:       job.Options.AspectRatio,
		EnableTranslation: needsTranslation(job.Input.Locale),
	})
	if err != nil {
		f := asFailure(domain.FailureSubmission, err)
		return s.terminal(job, model, domain.JobStatusFailed, f), f
	}
	job.ProviderTaskID = taskID
	job.Status = domain.JobStatusPolling
	s.logger.Info().
		Str("job_id", job.ID).
		Str("model", job.ModelID).
		Str("variant", job.VariantID).
		Str("provider_task_id", taskID).
		Int("price", job.Price).
		Msg("orchestrator: job submitted")

	status, err := s.poller.Poll(ctx, adapter, taskID, PollConfig{
		Interval:    variant.PollInterval,
		MaxAttempts: variant.PollMaxAttempts,
		OnProgress:  onProgress,
	})
	switch {
	case errors.Is(err, ErrPollTimeout):
		// The provider-side job's fate is unknown; no charge, but surfaced
		// apart from reported failures so operators can reconcile later.
		f := domain.Failuref(domain.FailurePollTimeout, "no terminal status after %d attempts", variant.PollMaxAttempts)
		return s.terminal(job, model, domain.JobStatusTimedOut, f), f
	case errors.Is(err, errEmptyResult):
		f := domain.NewFailure(domain.FailureProvider, errEmptyResult.Error())
		return s.terminal(job, model, domain.JobStatusFailed, f), f
	case err != nil:
		f := asFailure(domain.FailureProvider, err)
		return s.terminal(job, model, domain.JobStatusFailed, f), f
	case status.State == providers.TaskFailed:
		f := domain.NewFailure(domain.FailureProvider, status.ErrorMessage)
		return s.terminal(job, model, domain.JobStatusFailed, f), f
	}

	job.Status = domain.JobStatusSucceeded
	job.ResultURL = status.ResultURLs[0]

	record := s.terminal(job, model, domain.JobStatusSucceeded, nil)
	data, mime, fetchErr := s.materializer.FetchArtifact(ctx, job.ResultURL)
	if fetchErr == nil {
		record.ResultDataURL = DataURL(data, mime)
	}

	// The provider did the expensive work either way, so the job is billed
	// even when materialization failed; the record keeps a retry flag so
	// only the download is re-attempted, never the billing.
	s.settle(ctx, record)
	if fetchErr != nil {
		failure := asFailure(domain.FailureDownload, fetchErr)
		record.ErrorKind = string(failure.Kind)
		record.ErrorDetail = failure.Detail
		if record.BillingFlag == domain.BillingFlagNone {
			record.BillingFlag = domain.BillingFlagRetryMaterialize
		}
		return record, failure
	}
	return record, nil
}

// settle charges the job after the artifact is confirmed. A refused or failed
// deduction at this point is a ledger inconsistency: it is logged loudly and
// the record flagged for reconciliation, but the artifact is still returned.
func (s *Service) settle(ctx context.Context, record *domain.JobRecord) {
	reason := fmt.Sprintf("%s/%s generation %s", record.ModelID, record.VariantID, record.ID)
	ok, err := s.credits.Deduct(ctx, record.UserID, record.Cost, reason)
	if err == nil && ok {
		record.Charged = true
		return
	}
	record.BillingFlag = domain.BillingFlagReconcile
	s.logger.Error().
		Err(err).
		Bool("refused", err == nil && !ok).
		Str("job_id", record.ID).
		Str("user_id", record.UserID).
		Int("cost", record.Cost).
		Msg("orchestrator: post-success deduction failed, job needs billing reconciliation")
}

// terminal freezes the job into its durable record form.
func (s *Service) terminal(job *domain.GenerationJob, model *domain.ModelDescriptor, status domain.JobStatus, failure *domain.Failure) *domain.JobRecord {
	job.Status = status
	now := time.Now().UTC()
	record := &domain.JobRecord{
		ID:             job.ID,
		UserID:         job.UserID,
		ModelID:        job.ModelID,
		VariantID:      job.VariantID,
		Prompt:         job.Input.Prompt,
		Status:         status,
		Cost:           job.Price,
		Provider:       model.Provider,
		ProviderTaskID: job.ProviderTaskID,
		ResultURL:      job.ResultURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if failure != nil {
		job.ErrorDetail = failure.Detail
		record.ErrorKind = string(failure.Kind)
		record.ErrorDetail = failure.Detail
	}
	return record
}

// persist writes the history row. Best effort: a failed save never changes
// the job outcome, but it is not swallowed either.
func (s *Service) persist(ctx context.Context, record *domain.JobRecord) {
	if s.jobs == nil || record == nil {
		return
	}
	if err := s.jobs.Create(ctx, record); err != nil {
		s.logger.Error().Err(err).Str("job_id", record.ID).Msg("orchestrator: job record save failed")
	}
}

func (s *Service) price(ctx context.Context, model *domain.ModelDescriptor, variantID string, opts domain.GenerationOptions) int {
	policy := s.pricing.Policy(ctx)
	po := pricing.Options{Variant: variantID, Resolution: opts.Resolution, Duration: opts.Duration}
	if model.Kind == domain.MediaImage {
		return pricing.ResolveImageCost(policy, model.ID, po)
	}
	return pricing.ResolveVideoCost(policy, model.ID, po)
}

// resolveOptions fills unset dimensions from the variant defaults and
// validates the rest against the variant's ranges.
func (s *Service) resolveOptions(model *domain.ModelDescriptor, variant *domain.VariantDescriptor, params Params) (domain.GenerationOptions, error) {
	defaults, _ := s.registry.DefaultOptions(model.ID, variant.ID)
	opts := domain.GenerationOptions{
		Resolution:  params.Resolution,
		Duration:    params.Duration,
		AspectRatio: params.AspectRatio,
	}
	if opts.Resolution == "" {
		opts.Resolution = defaults.Resolution
	}
	if opts.Duration == "" {
		opts.Duration = defaults.Duration
	}
	if opts.AspectRatio == "" {
		opts.AspectRatio = defaults.AspectRatio
	}
	if opts.Duration != "" && !variant.SupportsDuration(opts.Duration) {
		return opts, domain.Failuref(domain.FailureValidation, "duration %q not supported by %s/%s", opts.Duration, model.ID, variant.ID)
	}
	if opts.Resolution != "" && !variant.SupportsResolution(opts.Resolution) {
		return opts, domain.Failuref(domain.FailureValidation, "resolution %q not supported by %s/%s", opts.Resolution, model.ID, variant.ID)
	}
	if opts.AspectRatio != "" && !variant.SupportsAspectRatio(opts.AspectRatio) {
		return opts, domain.Failuref(domain.FailureValidation, "aspect ratio %q not supported by %s/%s", opts.AspectRatio, model.ID, variant.ID)
	}
	return opts, nil
}

func validateInput(contract domain.InputContract, params Params) error {
	prompt := strings.TrimSpace(params.Prompt)
	if contract.RequiresPrompt && prompt == "" {
		return domain.NewFailure(domain.FailureValidation, "prompt is required")
	}
	if contract.MaxPromptLen > 0 && len(prompt) > contract.MaxPromptLen {
		return domain.Failuref(domain.FailureValidation, "prompt exceeds %d characters", contract.MaxPromptLen)
	}
	if !contract.AllowsNegativePrompt && strings.TrimSpace(params.NegativePrompt) != "" {
		return domain.NewFailure(domain.FailureValidation, "negative prompt not supported by this variant")
	}
	imageCount := len(params.ImageURLs) + len(params.Images)
	if imageCount < contract.MinImages {
		return domain.Failuref(domain.FailureValidation, "at least %d image(s) required", contract.MinImages)
	}
	if contract.MaxImages > 0 && imageCount > contract.MaxImages {
		return domain.Failuref(domain.FailureValidation, "at most %d image(s) allowed", contract.MaxImages)
	}
	for _, asset := range params.Images {
		if contract.MaxImageBytes > 0 && int64(len(asset.Data)) > contract.MaxImageBytes {
			return domain.Failuref(domain.FailureValidation, "image exceeds %d bytes", contract.MaxImageBytes)
		}
		if len(contract.AcceptedImageMIME) > 0 && !containsMIME(contract.AcceptedImageMIME, asset.MIME) {
			return domain.Failuref(domain.FailureValidation, "image format %q not accepted", asset.MIME)
		}
	}
	if contract.RequiresContinuation && strings.TrimSpace(params.ContinueTaskID) == "" {
		return domain.NewFailure(domain.FailureValidation, "continuation task id is required")
	}
	return nil
}

func containsMIME(accepted []string, mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, a := range accepted {
		if a == mime {
			return true
		}
	}
	return false
}

// asFailure normalizes adapter errors: provider error shapes keep their
// machine code, everything else keeps its message only.
func asFailure(kind domain.FailureKind, err error) *domain.Failure {
	var perr *providers.Error
	if errors.As(err, &perr) {
		return &domain.Failure{Kind: kind, Detail: perr.Message, Code: perr.Code}
	}
	var f *domain.Failure
	if errors.As(err, &f) {
		return &domain.Failure{Kind: kind, Detail: f.Detail, Code: f.Code}
	}
	return domain.NewFailure(kind, err.Error())
}

// needsTranslation hints providers to translate non-English prompts.
func needsTranslation(locale string) bool {
	locale = strings.ToLower(strings.TrimSpace(locale))
	return locale != "" && locale != "en" && !strings.HasPrefix(locale, "en-")
}
