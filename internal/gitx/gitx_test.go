package gitx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func requireGit(t *testing.T) {
	t.Helper()
	if !Available() {
		t.Skip("git not installed")
	}
}

// initRepo creates a working copy with one commit on main.
func initRepo(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	mustRun(t, ctx, dir, "init", "-q")
	mustRun(t, ctx, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRun(t, ctx, dir, "add", "-A")
	mustRun(t, ctx, dir,
		"-c", "user.name=test",
		"-c", "user.email=test@localhost",
		"commit", "-q", "-m", "initial")
	return dir
}

func mustRun(t *testing.T, ctx context.Context, dir string, args ...string) []byte {
	t.Helper()
	out, err := Run(ctx, dir, 0, args...)
	if err != nil {
		t.Fatalf("git %v: %v", args, err)
	}
	return out
}

func TestRun(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	out, err := Run(context.Background(), dir, 0, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := strings.TrimSpace(string(out)); got != "main" {
		t.Errorf("branch = %q, want main", got)
	}
}

func TestRunBadCommand(t *testing.T) {
	requireGit(t)

	_, err := Run(context.Background(), t.TempDir(), 0, "status")
	if err == nil {
		t.Fatal("git status outside a repo should fail")
	}
	if !strings.Contains(err.Error(), "git status failed") {
		t.Errorf("error lacks command context: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	requireGit(t)

	// A pager-free command can't take this long; force expiry via an
	// already-expired context.
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := Run(ctx, "", 0, "version")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestLines(t *testing.T) {
	requireGit(t)
	dir := initRepo(t)

	lines, err := Lines(context.Background(), dir, 0, "ls-files")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "README.md" {
		t.Errorf("Lines = %v, want [README.md]", lines)
	}
}

func TestClassify(t *testing.T) {
	exitErr := errors.New("exit status 128")
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{"auth", "fatal: Authentication failed for 'https://example.com/repo'", ErrAuthFailed},
		{"no credentials", "fatal: could not read Username for 'https://example.com'", ErrAuthFailed},
		{"ssh key", "git@example.com: Permission denied (publickey).", ErrAuthFailed},
		{"missing repo", "remote: Repository not found.", ErrRepoNotFound},
		{"not a repo", "fatal: 'repo' does not appear to be a git repository", ErrRepoNotFound},
		{"missing path", "fatal: repository '/srv/knowledge.git' does not exist", ErrRepoNotFound},
		{"http not found", "remote: Not Found", ErrRepoNotFound},
		{"rejected", "! [rejected] main -> main (non-fast-forward)", ErrPushRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(context.Background(), exitErr, []string{"push"}, tt.stderr)
			if !errors.Is(err, tt.want) {
				t.Errorf("classify(%q) = %v, want %v", tt.stderr, err, tt.want)
			}
			if !strings.Contains(err.Error(), tt.stderr) {
				t.Errorf("error dropped stderr detail: %v", err)
			}
		})
	}

	t.Run("unclassified keeps detail", func(t *testing.T) {
		err := classify(context.Background(), exitErr, []string{"fetch"}, "fatal: something odd")
		for _, sentinel := range []error{ErrAuthFailed, ErrRepoNotFound, ErrPushRejected, ErrTimeout} {
			if errors.Is(err, sentinel) {
				t.Errorf("unclassified error matched %v", sentinel)
			}
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		execErr := &exec.Error{Name: "git", Err: exec.ErrNotFound}
		if err := classify(context.Background(), execErr, []string{"status"}, ""); !errors.Is(err, ErrGitNotFound) {
			t.Errorf("err = %v, want ErrGitNotFound", err)
		}
	})
}

func TestErrorPredicates(t *testing.T) {
	wrapped := fmt.Errorf("during sync: %w", ErrPushRejected)
	if !IsRetryable(wrapped) {
		t.Error("wrapped ErrPushRejected not retryable")
	}
	if !IsRetryable(ErrTimeout) {
		t.Error("ErrTimeout not retryable")
	}
	if IsRetryable(ErrAuthFailed) {
		t.Error("ErrAuthFailed should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil retryable")
	}

	if !IsFatal(ErrGitNotFound) || !IsFatal(ErrRepoNotFound) {
		t.Error("fatal errors not recognized")
	}
	if IsFatal(ErrPushRejected) {
		t.Error("ErrPushRejected should not be fatal")
	}
}

func TestRemediation(t *testing.T) {
	if hint := Remediation(fmt.Errorf("push: %w", ErrAuthFailed)); !strings.Contains(hint, "CODEX_TOKEN") {
		t.Errorf("auth hint = %q", hint)
	}
	if hint := Remediation(ErrRepoNotFound); !strings.Contains(hint, "codex_repo") {
		t.Errorf("repo hint = %q", hint)
	}
	if hint := Remediation(errors.New("unrelated")); hint != "" {
		t.Errorf("unexpected hint %q", hint)
	}

	// Clone and push failures without a more specific cause still get a
	// generic hint.
	if hint := Remediation(fmt.Errorf("%w: %w", ErrCloneFailed, errors.New("exit status 128"))); hint == "" {
		t.Error("no hint for a bare clone failure")
	}
	if hint := Remediation(fmt.Errorf("%w: %w", ErrPushFailed, errors.New("exit status 1"))); hint == "" {
		t.Error("no hint for a bare push failure")
	}
}

// A failed clone keeps the classified cause in its error chain, so callers
// see both the clone failure and the underlying sentinel with its hint.
func TestCloneMissingRepo(t *testing.T) {
	requireGit(t)

	missing := filepath.Join(t.TempDir(), "nonexistent.git")
	dir := filepath.Join(t.TempDir(), "clone")

	_, err := Clone(context.Background(), missing, dir, "main")
	if err == nil {
		t.Fatal("clone of a nonexistent repository succeeded")
	}
	if !errors.Is(err, ErrCloneFailed) {
		t.Errorf("err = %v, want ErrCloneFailed in chain", err)
	}
	if !errors.Is(err, ErrRepoNotFound) {
		t.Errorf("err = %v, want ErrRepoNotFound in chain", err)
	}
	if Remediation(err) == "" {
		t.Error("no remediation hint for a missing repository")
	}
}

func TestRepoLifecycle(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	upstream := initRepo(t)
	bare := filepath.Join(t.TempDir(), "origin.git")
	mustRun(t, ctx, "", "clone", "-q", "--bare", upstream, bare)

	dir := filepath.Join(t.TempDir(), "clone")
	repo, err := Clone(ctx, bare, dir, "main")
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}

	branch, err := repo.CurrentBranch(ctx)
	if err != nil || branch != "main" {
		t.Fatalf("CurrentBranch = %q, %v", branch, err)
	}

	dirty, err := repo.HasStagedChanges(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if dirty {
		t.Error("fresh clone reports staged changes")
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# Notes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := repo.AddAll(ctx); err != nil {
		t.Fatal(err)
	}
	dirty, err = repo.HasStagedChanges(ctx)
	if err != nil || !dirty {
		t.Fatalf("HasStagedChanges = %v, %v, want true", dirty, err)
	}

	if err := repo.Commit(ctx, "add notes"); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := repo.Push(ctx, "main"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	out := mustRun(t, ctx, bare, "log", "-1", "--format=%s", "main")
	if got := strings.TrimSpace(string(out)); got != "add notes" {
		t.Errorf("pushed subject = %q", got)
	}
}

func TestOpen(t *testing.T) {
	requireGit(t)

	if _, err := Open(t.TempDir()); !errors.Is(err, ErrRepoNotFound) {
		t.Errorf("Open on plain dir = %v, want ErrRepoNotFound", err)
	}

	dir := initRepo(t)
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if repo.Dir != dir {
		t.Errorf("Dir = %q", repo.Dir)
	}
}

func TestWorkdir(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	upstream := initRepo(t)
	bare := filepath.Join(t.TempDir(), "origin.git")
	mustRun(t, ctx, "", "clone", "-q", "--bare", upstream, bare)

	w := NewWorkdir(bare, "fractary", "workdir-test", "main")
	defer w.Cleanup()

	repo, err := w.EnsureClone(ctx)
	if err != nil {
		t.Fatalf("EnsureClone failed: %v", err)
	}
	if repo.Dir != w.Dir {
		t.Errorf("repo.Dir = %q, workdir = %q", repo.Dir, w.Dir)
	}

	// Same-process reuse returns the cached handle without recloning.
	again, err := w.EnsureClone(ctx)
	if err != nil || again != repo {
		t.Errorf("EnsureClone reuse = %p, %v, want cached %p", again, err, repo)
	}

	if err := w.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(w.Dir); !os.IsNotExist(err) {
		t.Error("Cleanup left the working copy")
	}

	// A corrupt tree at the workdir path is discarded and recloned.
	if err := os.MkdirAll(filepath.Join(w.Dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := w.EnsureClone(ctx); err != nil {
		t.Fatalf("EnsureClone over corrupt tree failed: %v", err)
	}
	if _, err := Open(w.Dir); err != nil {
		t.Errorf("recloned workdir not a repo: %v", err)
	}
	w.Cleanup()
}
