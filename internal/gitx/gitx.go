// Package gitx wraps the git binary for knowledge-repository operations.
//
// Every git invocation is a synchronous external-process call with an
// explicit timeout, captured stdout/stderr, and a mapped error taxonomy.
// Arguments are always passed as a vector; no user-controlled string is
// ever shell-interpolated. A hung git process is killed when its context
// deadline expires and surfaces as ErrTimeout.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds ordinary git commands (status, add, commit).
	DefaultTimeout = 30 * time.Second

	// NetworkTimeout bounds commands that talk to a remote
	// (clone, fetch, pull, push).
	NetworkTimeout = 120 * time.Second
)

// Run executes a git command in workDir with the given timeout and returns
// captured stdout. Stderr is folded into the returned error, classified
// against the package error taxonomy.
//
// Example:
//
//	out, err := gitx.Run(ctx, repoDir, 30*time.Second, "status", "--porcelain")
func Run(ctx context.Context, workDir string, timeout time.Duration, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return nil, classify(ctx, err, args, stderr.String())
	}

	return stdout.Bytes(), nil
}

// classify maps a git failure to the package taxonomy, keeping the
// command, underlying cause, and trimmed stderr in the message.
func classify(ctx context.Context, err error, args []string, stderr string) error {
	stderr = strings.TrimSpace(stderr)

	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return fmt.Errorf("%w: install git and ensure it is on PATH", ErrGitNotFound)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: git %s: %v", ErrTimeout, strings.Join(args, " "), ctx.Err())
	}

	lower := strings.ToLower(stderr)
	var sentinel error
	switch {
	case strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "could not read username"),
		strings.Contains(lower, "permission denied (publickey"),
		strings.Contains(lower, "invalid credentials"):
		sentinel = ErrAuthFailed
	case strings.Contains(lower, "repository not found"),
		strings.Contains(lower, "does not appear to be a git repository"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "not found"),
		strings.Contains(lower, "could not read from remote repository"):
		sentinel = ErrRepoNotFound
	case strings.Contains(lower, "non-fast-forward"),
		strings.Contains(lower, "[rejected]"),
		strings.Contains(lower, "failed to push"):
		sentinel = ErrPushRejected
	}

	msg := fmt.Sprintf("git %s failed: %v", strings.Join(args, " "), err)
	if stderr != "" {
		msg += "\n" + stderr
	}
	if sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return errors.New(msg)
}

// RunInput is Run with the given string supplied on stdin, for git
// subcommands that read a request body (e.g. credential fill).
func RunInput(ctx context.Context, workDir string, timeout time.Duration, input string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classify(ctx, err, args, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Lines runs a git command and splits its output into non-empty,
// whitespace-trimmed lines.
func Lines(ctx context.Context, workDir string, timeout time.Duration, args ...string) ([]string, error) {
	out, err := Run(ctx, workDir, timeout, args...)
	if err != nil {
		return nil, err
	}

	raw := strings.Split(string(out), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// Available reports whether the git binary can be found on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}
