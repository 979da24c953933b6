// Package storage provides content providers for resolved references and
// a manager that runs them as a priority-ordered fallback cascade.
//
// Each provider answers three questions: whether it can serve a reference
// at all (CanHandle), the bytes for it (Fetch), and bare existence
// (Exists). The manager tries eligible providers in a fixed priority order
// and returns the first success; only total exhaustion surfaces to the
// caller.
package storage

import (
	"context"
	"time"

	"github.com/fractary/codex/internal/ref"
)

// DefaultTimeout bounds a single network fetch.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRetries bounds retries of transient network failures.
const DefaultMaxRetries = 2

// FetchOptions tune a single fetch.
type FetchOptions struct {
	// Timeout bounds the fetch; zero means DefaultTimeout.
	Timeout time.Duration

	// Headers are added to HTTP requests.
	Headers map[string]string

	// Branch selects the remote branch for git-hosted fetches;
	// empty means the configured default.
	Branch string

	// MaxRetries bounds retries on network errors; zero means
	// DefaultMaxRetries, negative disables retries.
	MaxRetries int
}

func (o FetchOptions) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

func (o FetchOptions) retries() int {
	if o.MaxRetries < 0 {
		return 0
	}
	if o.MaxRetries == 0 {
		return DefaultMaxRetries
	}
	return o.MaxRetries
}

// Result is the outcome of a successful fetch.
type Result struct {
	// Content is the fetched bytes.
	Content []byte

	// ContentType is the MIME type when known.
	ContentType string

	// Size is len(Content).
	Size int64

	// Source names the provider that produced the content.
	Source string

	// Metadata carries provider-specific details (URL, branch, status).
	Metadata map[string]string
}

// Provider fetches bytes for resolved references.
type Provider interface {
	// Name identifies the provider in results and errors.
	Name() string

	// CanHandle reports whether this provider can serve the reference.
	CanHandle(r ref.Resolved) bool

	// Fetch returns the content for the reference. Failures use the
	// package error taxonomy (ErrNotFound, ErrAuthFailed, ...).
	Fetch(ctx context.Context, r ref.Resolved, opts FetchOptions) (*Result, error)

	// Exists reports whether the reference exists without fetching
	// its content.
	Exists(ctx context.Context, r ref.Resolved, opts FetchOptions) bool
}
