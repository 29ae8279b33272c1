package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// FailureKind classifies terminal job failures for callers and billing.
type FailureKind string

const (
	FailureValidation          FailureKind = "validation"
	FailureInsufficientCredits FailureKind = "insufficient_credits"
	FailureUpload              FailureKind = "upload_failed"
	FailureSubmission          FailureKind = "submission_failed"
	FailureProvider            FailureKind = "provider_failed"
	FailurePollTimeout         FailureKind = "poll_timeout"
	FailureDownload            FailureKind = "download_failed"
	FailureLedger              FailureKind = "ledger_inconsistency"
	FailureInternal            FailureKind = "internal"
)

// Failure is the structured result every pipeline error surfaces as: a kind
// plus human-readable detail, with an optional machine code from the provider.
type Failure struct {
	Kind   FailureKind
	Detail string
	Code   string
}

func (f *Failure) Error() string {
	if f.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Kind, f.Detail, f.Code)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// NewFailure builds a Failure with a plain detail message.
func NewFailure(kind FailureKind, detail string) *Failure {
	return &Failure{Kind: kind, Detail: detail}
}

// Failuref builds a Failure with a formatted detail message.
func Failuref(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from err, or FailureInternal when err is
// not a Failure. Unexpected errors stay opaque to callers.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureInternal
}

// DetailOf returns the human-readable detail for err. Non-Failure errors get
// a generic message; the full error belongs in server-side logs only.
func DetailOf(err error) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Detail
	}
	return "unexpected internal error"
}
