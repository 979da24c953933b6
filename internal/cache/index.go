package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Index is the durable cache index: one row per cached URI plus aggregate
// stats. It runs on embedded SQLite in WAL mode, so concurrent writers
// serialize through the database (single-writer sections with a bounded
// busy wait) while readers proceed against the WAL snapshot.
type Index struct {
	conn *sql.DB
	path string
}

// OpenIndex opens (or creates) the cache index at path and ensures the
// schema exists. The caller must Close it.
//
// Example:
//
//	idx, err := cache.OpenIndex(filepath.Join(cacheDir, "index.db"))
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache index directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	idx := &Index{conn: conn, path: path}

	// WAL keeps metadata-only reads non-blocking during writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := idx.initSchema(); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	return idx, nil
}

func (i *Index) initSchema() error {
	_, err := i.conn.Exec(`
		CREATE TABLE IF NOT EXISTS entries (
			uri              TEXT PRIMARY KEY,
			stored_path      TEXT NOT NULL,
			source           TEXT NOT NULL,
			cached_at        INTEGER NOT NULL,
			expires_at       INTEGER NOT NULL,
			ttl_seconds      INTEGER NOT NULL,
			size_bytes       INTEGER NOT NULL,
			content_hash     TEXT NOT NULL,
			last_accessed_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_entries_expires ON entries(expires_at);
	`)
	return err
}

// Close releases the underlying database connection.
func (i *Index) Close() error {
	return i.conn.Close()
}

// Put inserts or replaces an entry.
func (i *Index) Put(e *Entry) error {
	_, err := i.conn.Exec(`
		INSERT INTO entries
			(uri, stored_path, source, cached_at, expires_at, ttl_seconds, size_bytes, content_hash, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			stored_path = excluded.stored_path,
			source = excluded.source,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at,
			ttl_seconds = excluded.ttl_seconds,
			size_bytes = excluded.size_bytes,
			content_hash = excluded.content_hash,
			last_accessed_at = excluded.last_accessed_at`,
		e.URI, e.StoredPath, e.Source,
		e.CachedAt.Unix(), e.ExpiresAt.Unix(), e.TTLSeconds,
		e.SizeBytes, e.ContentHash, e.LastAccessedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store cache entry for %s: %w", e.URI, err)
	}
	return nil
}

// Get returns the entry for a URI, or nil when absent.
func (i *Index) Get(uri string) (*Entry, error) {
	row := i.conn.QueryRow(`
		SELECT uri, stored_path, source, cached_at, expires_at, ttl_seconds, size_bytes, content_hash, last_accessed_at
		FROM entries WHERE uri = ?`, uri)

	var e Entry
	var cachedAt, expiresAt, lastAccessed int64
	err := row.Scan(&e.URI, &e.StoredPath, &e.Source, &cachedAt, &expiresAt,
		&e.TTLSeconds, &e.SizeBytes, &e.ContentHash, &lastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading entry for %s: %v", ErrCacheCorrupt, uri, err)
	}

	e.CachedAt = time.Unix(cachedAt, 0).UTC()
	e.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	e.LastAccessedAt = time.Unix(lastAccessed, 0).UTC()
	return &e, nil
}

// Touch updates an entry's last access time.
func (i *Index) Touch(uri string, at time.Time) error {
	_, err := i.conn.Exec(`UPDATE entries SET last_accessed_at = ? WHERE uri = ?`, at.Unix(), uri)
	return err
}

// Delete removes the entry for a URI. It is idempotent.
func (i *Index) Delete(uri string) error {
	_, err := i.conn.Exec(`DELETE FROM entries WHERE uri = ?`, uri)
	return err
}

// All returns every entry in the index.
func (i *Index) All() ([]*Entry, error) {
	rows, err := i.conn.Query(`
		SELECT uri, stored_path, source, cached_at, expires_at, ttl_seconds, size_bytes, content_hash, last_accessed_at
		FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing entries: %v", ErrCacheCorrupt, err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var cachedAt, expiresAt, lastAccessed int64
		if err := rows.Scan(&e.URI, &e.StoredPath, &e.Source, &cachedAt, &expiresAt,
			&e.TTLSeconds, &e.SizeBytes, &e.ContentHash, &lastAccessed); err != nil {
			return nil, fmt.Errorf("%w: scanning entry: %v", ErrCacheCorrupt, err)
		}
		e.CachedAt = time.Unix(cachedAt, 0).UTC()
		e.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		e.LastAccessedAt = time.Unix(lastAccessed, 0).UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Clear removes every entry.
func (i *Index) Clear() error {
	_, err := i.conn.Exec(`DELETE FROM entries`)
	return err
}

// Stats computes the aggregate index view at the given instant.
func (i *Index) Stats(now time.Time) (*Stats, error) {
	entries, err := i.All()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Entries: len(entries)}
	for _, e := range entries {
		stats.TotalBytes += e.SizeBytes
		switch e.StatusAt(now) {
		case StatusFresh:
			stats.Fresh++
		case StatusStale:
			stats.Stale++
		default:
			stats.Expired++
		}
	}
	return stats, nil
}
