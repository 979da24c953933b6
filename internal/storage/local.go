package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fractary/codex/internal/ref"
)

// Local reads content from a base directory laid out as org/project/path.
// It never touches the network.
type Local struct {
	// BaseDir is the root of the local content tree.
	BaseDir string
}

// NewLocal creates a local provider over baseDir.
func NewLocal(baseDir string) *Local {
	return &Local{BaseDir: baseDir}
}

// Name implements Provider.
func (l *Local) Name() string { return "local" }

// CanHandle implements Provider. The local provider claims every reference;
// a miss simply falls through the cascade.
func (l *Local) CanHandle(ref.Resolved) bool { return l.BaseDir != "" }

// Fetch implements Provider.
func (l *Local) Fetch(_ context.Context, r ref.Resolved, _ FetchOptions) (*Result, error) {
	path, err := l.path(r)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrNotFound, r.URI)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: reading %s: %v", ErrPermissionDenied, path, err)
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	return &Result{
		Content: content,
		Size:    int64(len(content)),
		Source:  l.Name(),
		Metadata: map[string]string{
			"path": path,
		},
	}, nil
}

// Exists implements Provider.
func (l *Local) Exists(_ context.Context, r ref.Resolved, _ FetchOptions) bool {
	path, err := l.path(r)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (l *Local) path(r ref.Resolved) (string, error) {
	return ref.SecureJoin(l.BaseDir, filepath.Join(r.Org, r.Project, r.Path))
}
