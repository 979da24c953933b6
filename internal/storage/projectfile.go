package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/fractary/codex/internal/ref"
)

// ProjectFile reads uncached, direct from disk for the active project's
// configured local source directories. A miss raises a GuidanceError with
// the pull command to run, rather than a bare I/O error.
type ProjectFile struct {
	// RootDir is the active project root.
	RootDir string

	// Sources are the project-relative directories served directly.
	Sources []string
}

// NewProjectFile creates a project-file provider.
func NewProjectFile(rootDir string, sources []string) *ProjectFile {
	return &ProjectFile{RootDir: rootDir, Sources: sources}
}

// Name implements Provider.
func (p *ProjectFile) Name() string { return "project-file" }

// CanHandle implements Provider. Only current-project references under a
// configured source directory qualify.
func (p *ProjectFile) CanHandle(r ref.Resolved) bool {
	if !r.IsCurrentProject || p.RootDir == "" || r.Path == "" {
		return false
	}
	for _, src := range p.Sources {
		src = strings.Trim(src, "/")
		if r.Path == src || strings.HasPrefix(r.Path, src+"/") {
			return true
		}
	}
	return false
}

// Fetch implements Provider.
func (p *ProjectFile) Fetch(_ context.Context, r ref.Resolved, _ FetchOptions) (*Result, error) {
	path, err := ref.SecureJoin(p.RootDir, r.Path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &GuidanceError{
				URI:      r.URI,
				Guidance: fmt.Sprintf("run `codex sync from-codex` to pull %s into this project", r.Path),
			}
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrPermissionDenied, path, err)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return &Result{
		Content: content,
		Size:    int64(len(content)),
		Source:  p.Name(),
		Metadata: map[string]string{
			"path": path,
		},
	}, nil
}

// Exists implements Provider.
func (p *ProjectFile) Exists(_ context.Context, r ref.Resolved, _ FetchOptions) bool {
	path, err := ref.SecureJoin(p.RootDir, r.Path)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
