package storage

import (
	"context"
	"log"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fractary/codex/internal/ref"
)

// DefaultFanOut bounds concurrent fetches in FetchMany, keeping file
// descriptor use and provider rate limits in check.
const DefaultFanOut = 8

// Manager runs providers as a priority-ordered fallback cascade.
//
// Providers are tried in registration order; the first success wins. Only
// when every eligible provider has failed does an error reach the caller,
// as an ExhaustedError naming the first provider's failure as primary.
type Manager struct {
	providers []Provider
	logger    *log.Logger
}

// NewManager creates a manager over providers in priority order. The
// conventional order is local, archive, project-file, git-hosted, http.
// If logger is nil, a default logger writing to stderr is used.
func NewManager(providers []Provider, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[storage] ", log.LstdFlags)
	}
	return &Manager{providers: providers, logger: logger}
}

// Providers returns the registered providers in priority order.
func (m *Manager) Providers() []Provider {
	out := make([]Provider, len(m.providers))
	copy(out, m.providers)
	return out
}

// Fetch tries each provider that can handle the reference, in priority
// order, and returns the first success.
func (m *Manager) Fetch(ctx context.Context, r ref.Resolved, opts FetchOptions) (*Result, error) {
	var primary error
	failed := 0

	for _, p := range m.providers {
		if !p.CanHandle(r) {
			continue
		}

		result, err := p.Fetch(ctx, r, opts)
		if err == nil {
			return result, nil
		}

		m.logger.Printf("provider %s failed for %s: %v", p.Name(), r.URI, err)
		if primary == nil {
			primary = err
		} else {
			failed++
		}

		if ctx.Err() != nil {
			break
		}
	}

	if primary == nil {
		return nil, &ExhaustedError{URI: r.URI, Primary: ErrNotFound}
	}
	return nil, &ExhaustedError{URI: r.URI, Primary: primary, Others: failed}
}

// Exists reports whether any eligible provider has the reference.
func (m *Manager) Exists(ctx context.Context, r ref.Resolved, opts FetchOptions) bool {
	for _, p := range m.providers {
		if p.CanHandle(r) && p.Exists(ctx, r, opts) {
			return true
		}
	}
	return false
}

// Outcome is the per-reference result of a batch fetch: exactly one of
// Result and Err is set.
type Outcome struct {
	Result *Result
	Err    error
}

// FetchMany fetches the references concurrently with a bounded fan-out.
// Per-reference failures are captured independently; the returned map has
// one entry per requested URI regardless of completion order. limit <= 0
// means DefaultFanOut.
func (m *Manager) FetchMany(ctx context.Context, refs []ref.Resolved, opts FetchOptions, limit int) map[string]Outcome {
	if limit <= 0 {
		limit = DefaultFanOut
	}

	var mu sync.Mutex
	outcomes := make(map[string]Outcome, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, r := range refs {
		g.Go(func() error {
			result, err := m.Fetch(gctx, r, opts)
			mu.Lock()
			outcomes[r.URI] = Outcome{Result: result, Err: err}
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; failures land in the outcome map.
	_ = g.Wait()
	return outcomes
}
