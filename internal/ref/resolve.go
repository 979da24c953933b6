package ref

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fractary/codex/internal/gitx"
)

// SourceType identifies which provider family owns a resolved reference.
type SourceType string

const (
	// SourceLocal means the reference lives in the active project's tree.
	SourceLocal SourceType = "local"

	// SourceRemote means the reference must be fetched from remote storage.
	SourceRemote SourceType = "remote"
)

// Context is the active project context threaded into resolution. It is an
// explicit value, not a process-global, so tests can inject arbitrary
// contexts.
type Context struct {
	// Org is the active organization name.
	Org string

	// Project is the active project name.
	Project string

	// RootDir is the project root directory (absolute).
	RootDir string

	// CacheDir is the cache base directory (absolute).
	CacheDir string
}

// Resolved is a Reference plus derived location fields.
type Resolved struct {
	Reference

	// IsCurrentProject is true when org/project match the active project
	// (case-insensitive).
	IsCurrentProject bool

	// Source is the provider family that owns this reference.
	Source SourceType

	// LocalPath is the path under the project root, when the reference
	// belongs to the current project.
	LocalPath string

	// CachePath is the on-disk cache location for the reference.
	CachePath string
}

// Resolve derives location fields for a parsed reference under the given
// context. Every filesystem join re-validates that the result stays inside
// its base directory; the syntactic checks in Parse are not trusted alone.
func Resolve(r Reference, ctx Context) (Resolved, error) {
	resolved := Resolved{
		Reference: r,
		Source:    SourceRemote,
	}

	current := ctx.Org != "" && ctx.Project != "" &&
		strings.EqualFold(r.Org, ctx.Org) && strings.EqualFold(r.Project, ctx.Project)
	resolved.IsCurrentProject = current

	if current && ctx.RootDir != "" && r.Path != "" {
		local, err := SecureJoin(ctx.RootDir, r.Path)
		if err != nil {
			return Resolved{}, err
		}
		resolved.LocalPath = local
		resolved.Source = SourceLocal
	}

	if ctx.CacheDir != "" {
		cache, err := SecureJoin(ctx.CacheDir, filepath.Join(r.Org, r.Project, r.Path))
		if err != nil {
			return Resolved{}, err
		}
		resolved.CachePath = cache
	}

	return resolved, nil
}

// SecureJoin joins rel onto base and verifies the cleaned absolute result
// is still contained in base. Defense in depth beyond ValidatePath.
func SecureJoin(base, rel string) (string, error) {
	joined := filepath.Clean(filepath.Join(base, filepath.FromSlash(SanitizePath(rel))))
	cleanBase := filepath.Clean(base)

	relPath, err := filepath.Rel(cleanBase, joined)
	if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q is outside %q", ErrPathEscape, rel, base)
	}
	return joined, nil
}

// ContextConfig supplies the configured org/project for context detection.
// The config package satisfies it; tests supply stubs.
type ContextConfig interface {
	Organization() string
	ProjectName() string
}

// sshRemote matches git@host:org/project(.git) remotes.
var sshRemote = regexp.MustCompile(`^git@[^:]+:([^/]+)/([^/]+?)(?:\.git)?$`)

// httpsRemote matches https://host/org/project(.git) remotes.
var httpsRemote = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+?)(?:\.git)?$`)

// DetectContext determines the active org/project. Priority order:
// CODEX_ORG/CODEX_PROJECT environment variables, then configured values,
// then the git origin remote of the repository containing startDir.
func DetectContext(ctx context.Context, startDir string, cfg ContextConfig) (Context, error) {
	out := Context{RootDir: startDir}

	out.Org = os.Getenv("CODEX_ORG")
	out.Project = os.Getenv("CODEX_PROJECT")

	if cfg != nil {
		if out.Org == "" {
			out.Org = cfg.Organization()
		}
		if out.Project == "" {
			out.Project = cfg.ProjectName()
		}
	}

	if out.Org != "" && out.Project != "" {
		return out, nil
	}

	root := findGitRoot(startDir)
	if root == "" {
		if out.Org == "" || out.Project == "" {
			return out, fmt.Errorf("%w: set CODEX_ORG/CODEX_PROJECT or configure organization/project", ErrNoContext)
		}
		return out, nil
	}
	out.RootDir = root

	remote, err := gitx.Run(ctx, root, 5*time.Second, "remote", "get-url", "origin")
	if err != nil {
		// No remote configured: fall back to the directory name.
		if out.Org == "" {
			out.Org = "local"
		}
		if out.Project == "" {
			out.Project = filepath.Base(root)
		}
		return out, nil
	}

	org, project := ParseRemoteURL(strings.TrimSpace(string(remote)))
	if out.Org == "" {
		out.Org = org
	}
	if out.Project == "" {
		out.Project = project
	}
	return out, nil
}

// ParseRemoteURL extracts org and project from a git remote URL.
// Supports SSH (git@host:org/project.git) and HTTPS forms; anything else
// falls back to the last two path segments.
func ParseRemoteURL(url string) (org, project string) {
	if m := sshRemote.FindStringSubmatch(url); m != nil {
		return m[1], m[2]
	}
	if m := httpsRemote.FindStringSubmatch(url); m != nil {
		return m[1], m[2]
	}

	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2], strings.TrimSuffix(parts[len(parts)-1], ".git")
	}
	return "unknown", "unknown"
}

func findGitRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
