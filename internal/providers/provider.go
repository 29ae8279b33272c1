// Package providers defines the single contract every generation back-end is
// adapted to. Field mapping between this contract and a provider's wire shape
// lives entirely inside the adapters; nothing provider-specific leaks out.
package providers

import (
	"context"
	"fmt"
)

// TaskState is the normalized lifecycle state of a provider-side task.
type TaskState string

const (
	TaskPending    TaskState = "pending"
	TaskProcessing TaskState = "processing"
	TaskSuccess    TaskState = "success"
	TaskFailed     TaskState = "failed"
)

// TaskStatus is the normalized answer of a status check.
type TaskStatus struct {
	State        TaskState
	ResultURLs   []string
	ErrorMessage string
}

// SubmitRequest carries everything an adapter may need to build a provider
// request. Duration and resolution use the catalog's encoding; adapters own
// any re-encoding their provider expects.
type SubmitRequest struct {
	Model             string
	Prompt            string
	NegativePrompt    string
	ImageURLs         []string
	VideoURLs         []string
	ContinueTaskID    string
	Duration          string
	Resolution        string
	AspectRatio       string
	Seed              int
	Watermark         string
	EnableTranslation bool
}

// Adapter is the three-operation contract per provider.
type Adapter interface {
	Submit(ctx context.Context, req SubmitRequest) (taskID string, err error)
	CheckStatus(ctx context.Context, taskID string) (TaskStatus, error)
	UploadAsset(ctx context.Context, data []byte, mime string) (assetURL string, err error)
}

// Error is the single error shape adapters translate provider-specific
// failure bodies into.
type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
	}
	return e.Message
}

// Errorf builds an Error without a machine code.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}
