package storage

import (
	"errors"
	"fmt"
)

// Errors returned by storage providers.
//
// Check with errors.Is:
//
//	if errors.Is(err, storage.ErrNotFound) {
//	    // reference does not exist at this provider
//	}
var (
	// ErrNotFound is returned when the reference does not exist.
	ErrNotFound = errors.New("content not found")

	// ErrAuthFailed is returned when credentials are missing or rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNetworkError is returned for timeouts and transport failures.
	// Retried up to a bounded count before surfacing.
	ErrNetworkError = errors.New("network error")

	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError is returned on HTTP 5xx.
	ErrServerError = errors.New("server error")

	// ErrPermissionDenied is returned for local filesystem permission
	// failures.
	ErrPermissionDenied = errors.New("permission denied")
)

// IsRetryable reports whether a provider failure may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNetworkError) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServerError)
}

// GuidanceError is a not-found error carrying a suggested next command,
// raised by the project-file provider instead of a bare I/O error.
type GuidanceError struct {
	URI      string
	Guidance string
}

func (e *GuidanceError) Error() string {
	return fmt.Sprintf("%s not found locally; %s", e.URI, e.Guidance)
}

// Unwrap makes the guidance error match ErrNotFound.
func (e *GuidanceError) Unwrap() error { return ErrNotFound }

// ExhaustedError aggregates the failures of every eligible provider after
// the fallback cascade runs out. The first provider's error is primary.
type ExhaustedError struct {
	URI     string
	Primary error
	Others  int
}

func (e *ExhaustedError) Error() string {
	if e.Others == 0 {
		return fmt.Sprintf("all providers failed for %s: %v", e.URI, e.Primary)
	}
	return fmt.Sprintf("all providers failed for %s: %v (and %d other provider(s) also failed)",
		e.URI, e.Primary, e.Others)
}

// Unwrap exposes the primary provider error for errors.Is checks.
func (e *ExhaustedError) Unwrap() error { return e.Primary }
