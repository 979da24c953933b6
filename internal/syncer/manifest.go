package syncer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ManifestEntry records the last successfully synced state of one file.
type ManifestEntry struct {
	Hash     string    `json:"hash"`
	MTime    time.Time `json:"mtime"`
	SyncedAt time.Time `json:"syncedAt"`
}

// Manifest is the per-project-per-direction record of last-synced file
// hashes. It exists solely for conflict detection; cache freshness never
// consults it.
type Manifest struct {
	Project   string                   `json:"project"`
	Direction Direction                `json:"direction"`
	Files     map[string]ManifestEntry `json:"files"`

	path string
}

// ManifestPath returns the manifest location for a project and direction
// under the state directory.
func ManifestPath(stateDir string, direction Direction) string {
	return filepath.Join(stateDir, fmt.Sprintf("manifest-%s.json", direction))
}

// LoadManifest reads the manifest for a project and direction, returning
// an empty manifest when none exists yet.
func LoadManifest(stateDir, project string, direction Direction) (*Manifest, error) {
	path := ManifestPath(stateDir, direction)
	m := &Manifest{
		Project:   project,
		Direction: direction,
		Files:     make(map[string]ManifestEntry),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sync manifest %s: %w", path, err)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing sync manifest %s: %w", path, err)
	}
	if m.Files == nil {
		m.Files = make(map[string]ManifestEntry)
	}
	m.path = path
	return m, nil
}

// Record notes a successfully synced file.
func (m *Manifest) Record(path, hash string, at time.Time) {
	m.Files[path] = ManifestEntry{Hash: hash, MTime: at, SyncedAt: at}
}

// Forget removes a file from the manifest after a synced deletion.
func (m *Manifest) Forget(path string) {
	delete(m.Files, path)
}

// LastHash returns the last-synced hash for a path, empty when the file
// has never synced.
func (m *Manifest) LastHash(path string) string {
	return m.Files[path].Hash
}

// Save writes the manifest atomically (temp file and rename).
func (m *Manifest) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing sync manifest: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("finalizing sync manifest: %w", err)
	}
	return nil
}

// LockStaleAfter is how long a manifest lock may exist before another
// invocation may take it over (the holder is presumed dead).
const LockStaleAfter = 10 * time.Minute

// ErrLocked is returned when another sync invocation holds the manifest
// lock for the same project and direction.
var ErrLocked = errors.New("another sync is already running for this project and direction")

// ManifestLock serializes sync invocations per project+direction.
type ManifestLock struct {
	path string
}

// AcquireManifestLock takes the lock for a direction, failing with
// ErrLocked while a live invocation holds it. Locks older than
// LockStaleAfter are presumed abandoned and taken over.
func AcquireManifestLock(stateDir string, direction Direction) (*ManifestLock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	path := ManifestPath(stateDir, direction) + ".lock"

	for range 2 {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			_ = f.Close()
			return &ManifestLock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("acquiring sync lock %s: %w", path, err)
		}

		info, statErr := os.Stat(path)
		if statErr == nil && time.Since(info.ModTime()) < LockStaleAfter {
			return nil, fmt.Errorf("%w: lock held at %s", ErrLocked, path)
		}
		// Stale or vanished lock: remove and retry once.
		_ = os.Remove(path)
	}

	return nil, fmt.Errorf("%w: lock held at %s", ErrLocked, path)
}

// Release removes the lock file.
func (l *ManifestLock) Release() error {
	return os.Remove(l.path)
}
