package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fractary/codex/internal/artifact"
	"github.com/fractary/codex/internal/ref"
	"github.com/fractary/codex/internal/storage"
)

// GetOptions tune a single cache read.
type GetOptions struct {
	// TTLOverride replaces the registry-derived TTL for a fetched entry.
	TTLOverride time.Duration

	// FallbackToStale serves stale entries instead of refetching.
	FallbackToStale bool

	// ForceRefresh bypasses the cache and always fetches through.
	ForceRefresh bool

	// Fetch tunes the underlying storage fetch on a miss.
	Fetch storage.FetchOptions
}

// DefaultGetOptions enables stale fallback, the package default.
func DefaultGetOptions() GetOptions {
	return GetOptions{FallbackToStale: true}
}

// GetResult is the outcome of a cache read.
type GetResult struct {
	// Content is the served bytes.
	Content []byte

	// Source names the provider or "cache".
	Source string

	// FromCache is true when the bytes came from the cache tiers.
	FromCache bool

	// Stale is true when a stale entry was served.
	Stale bool
}

// Engine wraps the storage manager with the freshness-aware store.
// Concurrent Gets for the same URI share one in-flight fetch.
type Engine struct {
	dir      string
	index    *Index
	manager  *storage.Manager
	registry *artifact.Registry
	logger   *log.Logger
	inflight singleflight.Group
	now      func() time.Time
}

// NewEngine creates a cache engine rooted at dir. Content files live under
// dir/content; the index at dir/index.db. If logger is nil, a default
// logger writing to stderr is used.
func NewEngine(dir string, manager *storage.Manager, registry *artifact.Registry, logger *log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}

	index, err := OpenIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, err
	}

	return &Engine{
		dir:      dir,
		index:    index,
		manager:  manager,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Close releases the engine's index.
func (e *Engine) Close() error {
	return e.index.Close()
}

// Get serves a reference from cache when fresh (or stale with fallback
// enabled), otherwise fetches through the storage manager, caches the
// result, and returns the fresh bytes. Concurrent calls for the same URI
// wait on a single in-flight fetch instead of duplicating it.
func (e *Engine) Get(ctx context.Context, r ref.Resolved, opts GetOptions) (*GetResult, error) {
	if !opts.ForceRefresh {
		entry, err := e.index.Get(r.URI)
		if err != nil {
			return nil, err
		}

		if entry != nil {
			status := entry.StatusAt(e.now())
			if status == StatusFresh || (status == StatusStale && opts.FallbackToStale) {
				content, readErr := os.ReadFile(entry.StoredPath)
				if readErr == nil {
					if err := e.index.Touch(r.URI, e.now()); err != nil {
						e.logger.Printf("failed to touch %s: %v", r.URI, err)
					}
					return &GetResult{
						Content:   content,
						Source:    "cache",
						FromCache: true,
						Stale:     status == StatusStale,
					}, nil
				}
				// Content file missing under a live index row: drop the
				// row and fetch through.
				e.logger.Printf("cache content missing for %s, refetching: %v", r.URI, readErr)
				_ = e.index.Delete(r.URI)
			}
		}
	}

	result, err, _ := e.inflight.Do(r.URI, func() (any, error) {
		return e.fetchThrough(ctx, r, opts)
	})
	if err != nil {
		return nil, err
	}
	return result.(*GetResult), nil
}

// fetchThrough fetches via the storage manager and populates the cache.
// On fetch failure any retained entry, stale included, is served instead.
func (e *Engine) fetchThrough(ctx context.Context, r ref.Resolved, opts GetOptions) (*GetResult, error) {
	fetched, err := e.manager.Fetch(ctx, r, opts.Fetch)
	if err != nil {
		if entry, lookupErr := e.index.Get(r.URI); lookupErr == nil && entry != nil {
			if content, readErr := os.ReadFile(entry.StoredPath); readErr == nil {
				e.logger.Printf("fetch failed for %s, serving cached copy: %v", r.URI, err)
				return &GetResult{Content: content, Source: "cache", FromCache: true, Stale: true}, nil
			}
		}
		return nil, err
	}

	ttl := e.registry.TTLFor(r.Path, opts.TTLOverride)
	if err := e.put(r, fetched, ttl); err != nil {
		// Caching is best-effort once we hold the bytes.
		e.logger.Printf("failed to cache %s: %v", r.URI, err)
	}

	return &GetResult{Content: fetched.Content, Source: fetched.Source}, nil
}

// put writes the content file first and the index row second, so a crash
// between the two never leaves an index row without content.
func (e *Engine) put(r ref.Resolved, result *storage.Result, ttl time.Duration) error {
	stored, err := ref.SecureJoin(filepath.Join(e.dir, "content"), filepath.Join(r.Org, r.Project, r.Path))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(stored), 0o755); err != nil {
		return fmt.Errorf("failed to create cache content directory: %w", err)
	}

	tmp := stored + ".tmp"
	if err := os.WriteFile(tmp, result.Content, 0o644); err != nil {
		return fmt.Errorf("failed to write cache content: %w", err)
	}
	if err := os.Rename(tmp, stored); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize cache content: %w", err)
	}

	now := e.now()
	return e.index.Put(&Entry{
		URI:            r.URI,
		StoredPath:     stored,
		Source:         result.Source,
		CachedAt:       now,
		ExpiresAt:      now.Add(ttl),
		TTLSeconds:     int64(ttl / time.Second),
		SizeBytes:      result.Size,
		ContentHash:    HashContent(result.Content),
		LastAccessedAt: now,
	})
}

// Invalidate removes entries. An empty pattern clears the whole cache;
// otherwise every entry whose URI matches the (validated) pattern is
// removed. It returns the number of entries removed.
func (e *Engine) Invalidate(pattern string) (int, error) {
	entries, err := e.index.All()
	if err != nil {
		return 0, err
	}

	if pattern == "" {
		for _, entry := range entries {
			_ = os.Remove(entry.StoredPath)
		}
		if err := e.index.Clear(); err != nil {
			return 0, err
		}
		return len(entries), nil
	}

	re, err := CompilePattern(pattern)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if !re.MatchString(entry.URI) {
			continue
		}
		_ = os.Remove(entry.StoredPath)
		if err := e.index.Delete(entry.URI); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// InvalidateURI removes the single entry for a URI, if present.
func (e *Engine) InvalidateURI(uri string) error {
	entry, err := e.index.Get(uri)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	_ = os.Remove(entry.StoredPath)
	return e.index.Delete(uri)
}

// Stats reports counts, sizes, and the freshness breakdown.
func (e *Engine) Stats() (*Stats, error) {
	return e.index.Stats(e.now())
}

// Entry exposes the index record for a URI, nil when absent.
func (e *Engine) Entry(uri string) (*Entry, error) {
	return e.index.Get(uri)
}
