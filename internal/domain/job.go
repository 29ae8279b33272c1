package domain

import "time"

// JobStatus enumerates the generation job lifecycle states.
type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted"
	JobStatusPolling   JobStatus = "polling"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
)

// IsTerminal reports whether the status will not transition further.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut:
		return true
	default:
		return false
	}
}

// GenerationOptions are the caller-selected dimensions of a job.
type GenerationOptions struct {
	Resolution  string
	Duration    string
	AspectRatio string
}

// InlineAsset carries raw input bytes that must be pre-hosted before
// submission to providers that only accept URLs.
type InlineAsset struct {
	Data []byte
	MIME string
}

// GenerationInput is the normalized input payload of a job.
type GenerationInput struct {
	Prompt         string
	NegativePrompt string
	ImageURLs      []string
	VideoURLs      []string
	Images         []InlineAsset
	ContinueTaskID string
	Locale         string
}

// GenerationJob is the ephemeral in-flight state of one generation request.
// It is created after validation and mutated only by the poller and the
// materializer; once the status leaves polling it is terminal.
type GenerationJob struct {
	ID             string
	UserID         string
	ModelID        string
	VariantID      string
	Price          int
	Input          GenerationInput
	Options        GenerationOptions
	ProviderTaskID string
	Status         JobStatus
	ResultURL      string
	ErrorDetail    string
}

// BillingFlag marks job records that need follow-up outside the request path.
type BillingFlag string

const (
	BillingFlagNone             BillingFlag = ""
	BillingFlagRetryMaterialize BillingFlag = "retry_materialize"
	BillingFlagReconcile        BillingFlag = "reconcile_billing"
)

// JobRecord is the durable row mirroring a finished GenerationJob, used for
// audit and user-facing history. Written once per job, updated at most once
// more on terminal-state correction.
type JobRecord struct {
	ID             string
	UserID         string
	ModelID        string
	VariantID      string
	Prompt         string
	Status         JobStatus
	Cost           int
	Charged        bool
	Provider       string
	ProviderTaskID string
	ResultURL      string
	ResultDataURL  string
	ErrorKind      string
	ErrorDetail    string
	BillingFlag    BillingFlag
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
