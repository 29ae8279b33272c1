package orchestrator

import (
	"context"
	"errors"
	"time"

	"vidforge/server/internal/infra"
	"vidforge/server/internal/providers"
)

// ErrPollTimeout is returned when the attempt budget is exhausted without a
// terminal provider status. The provider-side job's fate is unknown at that
// point, which callers must surface distinctly from a reported failure.
var ErrPollTimeout = errors.New("poll attempt budget exhausted")

// errEmptyResult marks a provider success without any usable artifact.
var errEmptyResult = errors.New("provider reported success without a result")

// PollConfig is the per-call polling budget. Budgets vary widely by variant,
// so they are arguments rather than globals.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int

	// OnProgress, when set, is invoked once per attempt with (attempt, max).
	// It is observational only and never affects control flow.
	OnProgress func(attempt, max int)
}

// Poller drives a submitted provider task to a terminal state.
type Poller struct {
	logger *infra.Logger
}

// NewPoller constructs a poller. A nil logger disables transient-error logs.
func NewPoller(logger *infra.Logger) *Poller {
	return &Poller{logger: logger}
}

// Poll sleeps then checks, up to cfg.MaxAttempts times. It returns the final
// status on provider success or failure, ErrPollTimeout when the budget runs
// out, and the context error when the caller abandons the job. A success with
// zero result URLs is a failure, not a success.
func (p *Poller) Poll(ctx context.Context, adapter providers.Adapter, taskID string, cfg PollConfig) (providers.TaskStatus, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 60
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return providers.TaskStatus{}, ctx.Err()
		case <-timer.C:
		}

		status, err := adapter.CheckStatus(ctx, taskID)
		if cfg.OnProgress != nil {
			cfg.OnProgress(attempt, maxAttempts)
		}
		if err != nil {
			if ctx.Err() != nil {
				return providers.TaskStatus{}, ctx.Err()
			}
			// A failed status check is not a failed job; the attempt is
			// spent and polling continues.
			if p.logger != nil {
				p.logger.Warn().Err(err).Str("task_id", taskID).Int("attempt", attempt).Msg("poller: status check failed")
			}
		} else {
			switch status.State {
			case providers.TaskSuccess:
				if len(status.ResultURLs) == 0 {
					return status, errEmptyResult
				}
				return status, nil
			case providers.TaskFailed:
				return status, nil
			}
		}

		timer.Reset(interval)
	}
	return providers.TaskStatus{}, ErrPollTimeout
}
