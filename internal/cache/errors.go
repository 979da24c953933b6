package cache

import "errors"

// Errors returned by the cache engine.
var (
	// ErrCacheCorrupt is returned when the index is unreadable or
	// unparseable. The remedy is `codex cache clear`; the engine never
	// silently discards data.
	ErrCacheCorrupt = errors.New("cache index corrupt: run `codex cache clear` to rebuild")

	// ErrUnsafePattern is returned when an invalidation pattern fails
	// the complexity guard and is refused before compilation.
	ErrUnsafePattern = errors.New("unsafe invalidation pattern")
)
