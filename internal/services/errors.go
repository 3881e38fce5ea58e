package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInput              = errors.New("input error")
	ErrProviderTimeout    = errors.New("provider timeout")
	ErrProviderFailure    = errors.New("provider failure")
	ErrGroundingViolation = errors.New("grounding violation")
	ErrPolicyViolation    = errors.New("policy violation")
	ErrConfiguration      = errors.New("configuration error")
	ErrNotFound           = errors.New("not found")
	ErrCancelled          = errors.New("cancelled")
)

// Error kinds reported to callers alongside a failed run.
const (
	KindInput              = "InputError"
	KindProviderTimeout    = "ProviderTimeout"
	KindProviderFailure    = "ProviderFailure"
	KindGroundingViolation = "GroundingViolation"
	KindPolicyViolation    = "PolicyViolation"
	KindConfiguration      = "ConfigurationError"
	KindNotFound           = "NotFound"
	KindCancelled          = "Cancelled"
	KindUnknown            = "Unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrProviderFailure
	}
	if err != nil {
		return &wrappedError{
			marker:    marker,
			stage:     strings.TrimSpace(stage),
			operation: strings.TrimSpace(operation),
			message:   strings.TrimSpace(message),
			err:       fmt.Errorf("%w: %s: %w", marker, detail, err),
			cause:     err,
		}
	}
	return &wrappedError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		err:       fmt.Errorf("%w: %s", marker, detail),
	}
}

type wrappedError struct {
	marker    error
	stage     string
	operation string
	message   string
	err       error
	cause     error
}

func (e *wrappedError) Error() string { return e.err.Error() }

func (e *wrappedError) Unwrap() error { return e.err }

// ErrorDetails is the structured view of a failure used for logs and run records.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts the structured failure information from err. Errors that
// were not produced by Wrap report the Unknown kind unless they carry a marker.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: Kind(err), Message: err.Error()}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) {
		details.Stage = wrapped.stage
		details.Operation = wrapped.operation
		if wrapped.message != "" {
			details.Message = wrapped.message
		}
		details.Cause = wrapped.cause
		if wrapped.cause != nil && wrapped.message != "" {
			details.Message = wrapped.message + ": " + wrapped.cause.Error()
		}
	}
	details.Hint = hintForKind(details.Kind)
	return details
}

// Kind reports the taxonomy name for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInput):
		return KindInput
	case errors.Is(err, ErrProviderTimeout):
		return KindProviderTimeout
	case errors.Is(err, ErrPolicyViolation):
		return KindPolicyViolation
	case errors.Is(err, ErrGroundingViolation):
		return KindGroundingViolation
	case errors.Is(err, ErrProviderFailure):
		return KindProviderFailure
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	default:
		return KindUnknown
	}
}

// Classify tags a raw provider error with the matching marker. Errors that
// already carry a marker are returned unchanged.
func Classify(stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != KindUnknown {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrProviderTimeout, stage, operation, "stage exceeded its time budget", err)
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(ErrCancelled, stage, operation, "stage interrupted", err)
	}
	return Wrap(ErrProviderFailure, stage, operation, "provider call failed", err)
}

func hintForKind(kind string) string {
	switch kind {
	case KindInput:
		return "check the recording reference and audio format"
	case KindProviderTimeout:
		return "raise the stage timeout or resubmit the recording"
	case KindProviderFailure:
		return "check provider availability and credentials"
	case KindGroundingViolation:
		return "inspect transcript segments for the failing section"
	case KindPolicyViolation:
		return "review banned terms in the voice profile"
	case KindConfiguration:
		return "run echopress config validate"
	case KindNotFound:
		return "verify the run id"
	case KindCancelled:
		return "resubmit the recording to start a new run"
	default:
		return "check daemon logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
