package gitx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Repo is a git working copy rooted at Dir.
type Repo struct {
	// Dir is the working copy root.
	Dir string

	// Timeout bounds local commands; network commands use NetworkTimeout.
	Timeout time.Duration
}

// Open returns a Repo for an existing working copy. It fails if dir does
// not contain a .git directory.
func Open(dir string) (*Repo, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return nil, fmt.Errorf("%w: %s is not a git working copy", ErrRepoNotFound, dir)
	}
	return &Repo{Dir: dir, Timeout: DefaultTimeout}, nil
}

// Clone creates a shallow, single-branch clone of url at dir and returns
// the opened Repo.
func Clone(ctx context.Context, url, dir, branch string) (*Repo, error) {
	args := []string{"clone", "--depth", "1", "--single-branch"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, url, dir)

	if _, err := Run(ctx, "", NetworkTimeout, args...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCloneFailed, err)
	}
	return &Repo{Dir: dir, Timeout: DefaultTimeout}, nil
}

func (r *Repo) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	if timeout == 0 {
		timeout = r.Timeout
	}
	return Run(ctx, r.Dir, timeout, args...)
}

// Fetch fetches the given branch from origin.
func (r *Repo) Fetch(ctx context.Context, branch string) error {
	args := []string{"fetch", "origin"}
	if branch != "" {
		args = append(args, branch)
	}
	_, err := r.run(ctx, NetworkTimeout, args...)
	return err
}

// Checkout switches the working copy to branch.
func (r *Repo) Checkout(ctx context.Context, branch string) error {
	_, err := r.run(ctx, 0, "checkout", branch)
	return err
}

// Pull fast-forwards the current branch from origin.
func (r *Repo) Pull(ctx context.Context, branch string) error {
	args := []string{"pull", "--ff-only", "origin"}
	if branch != "" {
		args = append(args, branch)
	}
	_, err := r.run(ctx, NetworkTimeout, args...)
	return err
}

// AddAll stages every change in the working copy.
func (r *Repo) AddAll(ctx context.Context) error {
	_, err := r.run(ctx, 0, "add", "-A")
	return err
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r *Repo) HasStagedChanges(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, 0, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(strings.TrimSpace(string(out))) > 0, nil
}

// Commit records the staged changes with the given message. The author
// identity falls back to a fixed sync identity when the environment has
// none configured.
func (r *Repo) Commit(ctx context.Context, message string) error {
	_, err := r.run(ctx, 0,
		"-c", "user.name=codex-sync",
		"-c", "user.email=codex-sync@localhost",
		"commit", "-m", message)
	return err
}

// Push pushes the branch to origin. Rejections surface as ErrPushRejected;
// other failures as ErrPushFailed.
func (r *Repo) Push(ctx context.Context, branch string) error {
	args := []string{"push", "origin"}
	if branch != "" {
		args = append(args, branch)
	}
	_, err := r.run(ctx, NetworkTimeout, args...)
	if err == nil {
		return nil
	}
	if IsRetryable(err) || IsFatal(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPushFailed, err)
}

// CurrentBranch returns the checked-out branch name, or an empty string
// for a detached HEAD.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, 0, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(string(out))
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}
