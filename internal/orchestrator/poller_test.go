package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"vidforge/server/internal/providers"
)

// scriptedAdapter returns canned statuses in order, repeating the last one.
type scriptedAdapter struct {
	statuses  []providers.TaskStatus
	errs      []error
	calls     int
	submits   int
	uploads   int
	taskID    string
	submitErr error
	lastReq   providers.SubmitRequest
}

func (a *scriptedAdapter) Submit(ctx context.Context, req providers.SubmitRequest) (string, error) {
	a.submits++
	a.lastReq = req
	if a.submitErr != nil {
		return "", a.submitErr
	}
	if a.taskID == "" {
		return "task-1", nil
	}
	return a.taskID, nil
}

func (a *scriptedAdapter) CheckStatus(ctx context.Context, taskID string) (providers.TaskStatus, error) {
	idx := a.calls
	a.calls++
	if idx >= len(a.statuses) {
		idx = len(a.statuses) - 1
	}
	if idx < 0 {
		return providers.TaskStatus{State: providers.TaskPending}, nil
	}
	var err error
	if idx < len(a.errs) {
		err = a.errs[idx]
	}
	return a.statuses[idx], err
}

func (a *scriptedAdapter) UploadAsset(ctx context.Context, data []byte, mime string) (string, error) {
	a.uploads++
	return "https://files.example.com/hosted.png", nil
}

func fastPoll(maxAttempts int) PollConfig {
	return PollConfig{Interval: time.Millisecond, MaxAttempts: maxAttempts}
}

func TestPollTimesOutAfterExactBudget(t *testing.T) {
	adapter := &scriptedAdapter{statuses: []providers.TaskStatus{{State: providers.TaskProcessing}}}
	poller := NewPoller(nil)

	_, err := poller.Poll(context.Background(), adapter, "t", fastPoll(7))
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}
	if adapter.calls != 7 {
		t.Fatalf("status checked %d times, want exactly 7", adapter.calls)
	}
}

func TestPollStopsOnSuccess(t *testing.T) {
	adapter := &scriptedAdapter{statuses: []providers.TaskStatus{
		{State: providers.TaskPending},
		{State: providers.TaskProcessing},
		{State: providers.TaskSuccess, ResultURLs: []string{"https://cdn.example.com/out.mp4"}},
	}}
	poller := NewPoller(nil)

	status, err := poller.Poll(context.Background(), adapter, "t", fastPoll(10))
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if adapter.calls != 3 {
		t.Fatalf("status checked %d times, want 3", adapter.calls)
	}
	if len(status.ResultURLs) != 1 {
		t.Fatalf("result urls = %v", status.ResultURLs)
	}
}

func TestPollSuccessWithoutResultsIsFailure(t *testing.T) {
	adapter := &scriptedAdapter{statuses: []providers.TaskStatus{
		{State: providers.TaskSuccess},
	}}
	poller := NewPoller(nil)

	_, err := poller.Poll(context.Background(), adapter, "t", fastPoll(5))
	if !errors.Is(err, errEmptyResult) {
		t.Fatalf("err = %v, want empty-result failure", err)
	}
	if adapter.calls != 1 {
		t.Fatalf("poll should stop on the empty success, checked %d times", adapter.calls)
	}
}

func TestPollStopsOnProviderFailure(t *testing.T) {
	adapter := &scriptedAdapter{statuses: []providers.TaskStatus{
		{State: providers.TaskProcessing},
		{State: providers.TaskFailed, ErrorMessage: "content rejected"},
	}}
	poller := NewPoller(nil)

	status, err := poller.Poll(context.Background(), adapter, "t", fastPoll(10))
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if status.State != providers.TaskFailed || status.ErrorMessage != "content rejected" {
		t.Fatalf("status = %+v", status)
	}
}

func TestPollTransientCheckErrorsConsumeAttempts(t *testing.T) {
	adapter := &scriptedAdapter{
		statuses: []providers.TaskStatus{{}, {State: providers.TaskSuccess, ResultURLs: []string{"u"}}},
		errs:     []error{errors.New("gateway timeout")},
	}
	poller := NewPoller(nil)

	_, err := poller.Poll(context.Background(), adapter, "t", fastPoll(5))
	if err != nil {
		t.Fatalf("poll should survive a transient check error: %v", err)
	}
	if adapter.calls != 2 {
		t.Fatalf("status checked %d times, want 2", adapter.calls)
	}
}

func TestPollProgressCallbackObservesAttempts(t *testing.T) {
	adapter := &scriptedAdapter{statuses: []providers.TaskStatus{{State: providers.TaskPending}}}
	poller := NewPoller(nil)

	var seen [][2]int
	cfg := fastPoll(4)
	cfg.OnProgress = func(attempt, max int) { seen = append(seen, [2]int{attempt, max}) }

	_, err := poller.Poll(context.Background(), adapter, "t", cfg)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v", err)
	}
	if len(seen) != 4 {
		t.Fatalf("progress invoked %d times, want 4", len(seen))
	}
	if seen[0] != [2]int{1, 4} || seen[3] != [2]int{4, 4} {
		t.Fatalf("progress sequence = %v", seen)
	}
}

func TestPollHonorsCancellation(t *testing.T) {
	adapter := &scriptedAdapter{statuses: []providers.TaskStatus{{State: providers.TaskPending}}}
	poller := NewPoller(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := poller.Poll(ctx, adapter, "t", PollConfig{Interval: time.Hour, MaxAttempts: 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
