package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenIndex failed: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func testEntry(uri string, cachedAt time.Time, ttl time.Duration) *Entry {
	return &Entry{
		URI:            uri,
		StoredPath:     "/cache/content/" + uri,
		Source:         "local",
		CachedAt:       cachedAt,
		ExpiresAt:      cachedAt.Add(ttl),
		TTLSeconds:     int64(ttl / time.Second),
		SizeBytes:      42,
		ContentHash:    HashContent([]byte(uri)),
		LastAccessedAt: cachedAt,
	}
}

func TestIndexPutGet(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now().Truncate(time.Second)

	want := testEntry("codex://fractary/codex/docs/api.md", now, time.Hour)
	if err := idx.Put(want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := idx.Get(want.URI)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored entry")
	}
	if got.URI != want.URI || got.ContentHash != want.ContentHash || got.SizeBytes != want.SizeBytes {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt.Truncate(time.Second)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, want.ExpiresAt)
	}
}

func TestIndexGetMissing(t *testing.T) {
	idx := openTestIndex(t)

	got, err := idx.Get("codex://fractary/codex/nope.md")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get = %+v, want nil", got)
	}
}

func TestIndexPutUpserts(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now().Truncate(time.Second)
	uri := "codex://fractary/codex/docs/api.md"

	if err := idx.Put(testEntry(uri, now, time.Hour)); err != nil {
		t.Fatal(err)
	}

	updated := testEntry(uri, now.Add(time.Minute), 2*time.Hour)
	updated.SizeBytes = 99
	if err := idx.Put(updated); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := idx.Get(uri)
	if err != nil {
		t.Fatal(err)
	}
	if got.SizeBytes != 99 || got.TTLSeconds != int64(2*time.Hour/time.Second) {
		t.Errorf("upsert did not replace: %+v", got)
	}
}

func TestIndexTouch(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now().Truncate(time.Second)
	uri := "codex://fractary/codex/docs/api.md"

	if err := idx.Put(testEntry(uri, now, time.Hour)); err != nil {
		t.Fatal(err)
	}

	later := now.Add(10 * time.Minute)
	if err := idx.Touch(uri, later); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	got, _ := idx.Get(uri)
	if !got.LastAccessedAt.Equal(later) {
		t.Errorf("LastAccessedAt = %v, want %v", got.LastAccessedAt, later)
	}
}

func TestIndexDeleteIdempotent(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now()
	uri := "codex://fractary/codex/docs/api.md"

	if err := idx.Put(testEntry(uri, now, time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(uri); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := idx.Delete(uri); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}

	got, _ := idx.Get(uri)
	if got != nil {
		t.Error("entry still present after Delete")
	}
}

func TestIndexStats(t *testing.T) {
	idx := openTestIndex(t)
	now := time.Now().Truncate(time.Second)

	// One fresh, one stale, one expired.
	fresh := testEntry("codex://o/p/fresh.md", now, time.Hour)
	stale := testEntry("codex://o/p/stale.md", now.Add(-2*time.Hour), time.Hour)
	expired := testEntry("codex://o/p/expired.md", now.Add(-40*24*time.Hour), time.Hour)
	for _, e := range []*Entry{fresh, stale, expired} {
		if err := idx.Put(e); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := idx.Stats(now)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 3 {
		t.Errorf("Entries = %d, want 3", stats.Entries)
	}
	if stats.TotalBytes != 3*42 {
		t.Errorf("TotalBytes = %d, want %d", stats.TotalBytes, 3*42)
	}
	if stats.Fresh != 1 || stats.Stale != 1 || stats.Expired != 1 {
		t.Errorf("breakdown = %d/%d/%d, want 1/1/1", stats.Fresh, stats.Stale, stats.Expired)
	}
}
