package storage

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fractary/codex/internal/artifact"
	"github.com/fractary/codex/internal/ref"
)

// Archive fetches previously archived content through an external storage
// CLI. It only handles references for the current project when archiving
// is enabled, and only for paths matching the configured patterns (when
// any are configured).
type Archive struct {
	// Enabled turns the provider on.
	Enabled bool

	// Patterns restrict archiving to matching paths; empty means all.
	Patterns []string

	// Command is the external storage CLI invocation; the archive key
	// is appended as the final argument.
	Command []string

	// Registry classifies paths for the archive key's {type} segment.
	Registry *artifact.Registry
}

// NewArchive creates an archive provider.
func NewArchive(enabled bool, patterns, command []string, registry *artifact.Registry) *Archive {
	return &Archive{Enabled: enabled, Patterns: patterns, Command: command, Registry: registry}
}

// Name implements Provider.
func (a *Archive) Name() string { return "archive" }

// CanHandle implements Provider.
func (a *Archive) CanHandle(r ref.Resolved) bool {
	if !a.Enabled || len(a.Command) == 0 || !r.IsCurrentProject || r.Path == "" {
		return false
	}
	if len(a.Patterns) == 0 {
		return true
	}
	for _, pattern := range a.Patterns {
		if ok, err := doublestar.Match(pattern, r.Path); err == nil && ok {
			return true
		}
	}
	return false
}

// Key computes the archive key for a reference:
// archive/{type}/{org}/{project}/{path}.
func (a *Archive) Key(r ref.Resolved) string {
	typeName := artifact.DefaultTypeName
	if a.Registry != nil {
		typeName = a.Registry.Detect(r.Path)
	}
	return fmt.Sprintf("archive/%s/%s/%s/%s", typeName, r.Org, r.Project, r.Path)
}

// Fetch implements Provider by delegating the byte fetch to the external
// storage CLI. Arguments are passed as a vector; the key is never shell
// interpolated.
func (a *Archive) Fetch(ctx context.Context, r ref.Resolved, opts FetchOptions) (*Result, error) {
	key := a.Key(r)

	cmdCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	args := append(append([]string{}, a.Command[1:]...), key)
	cmd := exec.CommandContext(cmdCtx, a.Command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if cmdCtx.Err() != nil {
			return nil, fmt.Errorf("%w: archive fetch of %s timed out", ErrNetworkError, key)
		}
		if strings.Contains(strings.ToLower(detail), "not found") {
			return nil, fmt.Errorf("%w: archive key %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("archive fetch of %s failed: %v: %s", key, err, detail)
	}

	content := stdout.Bytes()
	return &Result{
		Content: content,
		Size:    int64(len(content)),
		Source:  a.Name(),
		Metadata: map[string]string{
			"archive_key": key,
		},
	}, nil
}

// Exists implements Provider. Existence is probed with a fetch; archive
// CLIs in the field have no uniform stat operation.
func (a *Archive) Exists(ctx context.Context, r ref.Resolved, opts FetchOptions) bool {
	_, err := a.Fetch(ctx, r, opts)
	return err == nil
}
