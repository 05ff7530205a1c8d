package llm

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// TransientError marks a provider call that failed for a retryable
// reason (rate limit, server-side trouble). The caller's backoff loop
// handles it; if retries run out the last TransientError surfaces.
type TransientError struct {
	StatusCode int
	Cause      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error (status %d): %v", e.StatusCode, e.Cause)
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// ContentError marks a self-hosted call that exhausted its content
// retries without producing output conforming to the contract. It is
// fatal for the record, not for the batch.
type ContentError struct {
	Model    string
	Attempts int
	Cause    error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("model %s unable to produce the necessary output after %d attempts: %v", e.Model, e.Attempts, e.Cause)
}

func (e *ContentError) Unwrap() error {
	return e.Cause
}

// isTransient reports whether a hosted API error is worth retrying.
func isTransient(err error) (int, bool) {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	switch apiErr.Code {
	case 429, 500, 502, 503, 504:
		return apiErr.Code, true
	}
	return apiErr.Code, false
}
