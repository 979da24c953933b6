// Package cache wraps the storage manager with a freshness-aware store.
//
// Content bytes live on disk under the cache directory; entry metadata
// lives in a SQLite index (WAL mode) so concurrent writers serialize
// through the database while metadata-only reads never block. Content is
// written before its index row so a crash can orphan a content file but
// never leave an index row pointing at missing content.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status is the derived freshness of a cache entry.
type Status string

const (
	// StatusFresh means now is before the entry's expiry.
	StatusFresh Status = "fresh"

	// StatusStale means the entry expired but is still retained and may
	// be served when stale fallback is enabled.
	StatusStale Status = "stale"

	// StatusExpired means the entry passed its retention ceiling and is
	// evictable.
	StatusExpired Status = "expired"
)

// Retention ceiling bounds: a stale entry becomes expired after
// min(RetentionFactor x TTL, RetentionCap) past its expiry.
const (
	RetentionFactor = 7
	RetentionCap    = 30 * 24 * time.Hour
)

// Entry is the metadata record for one cached URI.
type Entry struct {
	URI            string    `json:"uri"`
	StoredPath     string    `json:"storedPath"`
	Source         string    `json:"source"`
	CachedAt       time.Time `json:"cachedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	TTLSeconds     int64     `json:"ttlSeconds"`
	SizeBytes      int64     `json:"sizeBytes"`
	ContentHash    string    `json:"contentHash"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// StatusAt derives the entry's freshness at the given instant.
func (e *Entry) StatusAt(now time.Time) Status {
	if now.Before(e.ExpiresAt) {
		return StatusFresh
	}

	retention := time.Duration(e.TTLSeconds) * time.Second * RetentionFactor
	if retention > RetentionCap {
		retention = RetentionCap
	}
	if now.Before(e.ExpiresAt.Add(retention)) {
		return StatusStale
	}
	return StatusExpired
}

// Status derives the entry's freshness now.
func (e *Entry) Status() Status {
	return e.StatusAt(time.Now())
}

// HashContent returns the hex-encoded SHA-256 of content, the hash stored
// in entries and sync manifests.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Stats is the aggregate view of the cache index.
type Stats struct {
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"totalBytes"`
	Fresh      int   `json:"fresh"`
	Stale      int   `json:"stale"`
	Expired    int   `json:"expired"`
}
