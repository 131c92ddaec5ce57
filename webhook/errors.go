package webhook

import (
	"errors"
	"fmt"
)

var (
	// ErrWebhookUnconfigured is returned when the target is unset or still the
	// placeholder. No request is sent.
	ErrWebhookUnconfigured = errors.New("webhook URL not configured")

	// ErrSubmissionFailed is the sentinel behind every *SubmissionError.
	ErrSubmissionFailed = errors.New("webhook submission failed")

	// ErrConfigUnavailable is returned by ConfigLoader.Load when the config
	// endpoint cannot provide a URL. Callers fall back to the placeholder.
	ErrConfigUnavailable = errors.New("webhook config unavailable")
)

// SubmissionError carries the HTTP status of a rejected delivery, or the
// transport error when no response was received.
type SubmissionError struct {
	StatusCode int
	StatusText string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.StatusText)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ErrSubmissionFailed.Error()
}

func (e *SubmissionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSubmissionFailed}
	}
	return []error{ErrSubmissionFailed, e.Err}
}
