package gitx

import "errors"

// Errors returned by git operations.
//
// Check with errors.Is:
//
//	if errors.Is(err, gitx.ErrPushRejected) {
//	    // remote moved; pull and retry
//	}
var (
	// ErrGitNotFound is returned when the git binary is not on PATH.
	ErrGitNotFound = errors.New("git binary not found")

	// ErrCloneFailed is returned when a clone could not produce a usable
	// working copy.
	ErrCloneFailed = errors.New("clone failed")

	// ErrPushFailed is returned when a push fails for a reason other
	// than rejection (network, auth).
	ErrPushFailed = errors.New("push failed")

	// ErrPushRejected is returned when the remote rejects a push,
	// typically a non-fast-forward update.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrAuthFailed is returned when the remote refuses credentials.
	ErrAuthFailed = errors.New("git authentication failed")

	// ErrRepoNotFound is returned when the remote repository does not
	// exist or is not readable.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrTimeout is returned when a git command exceeds its deadline.
	ErrTimeout = errors.New("git operation timed out")
)

// Remediation returns an actionable hint for a classified git error, or
// an empty string when no specific guidance applies.
func Remediation(err error) string {
	switch {
	case errors.Is(err, ErrGitNotFound):
		return "install git and ensure it is available on PATH"
	case errors.Is(err, ErrAuthFailed):
		return "check your access token (CODEX_TOKEN/GITHUB_TOKEN) or git credential helper for the knowledge repository"
	case errors.Is(err, ErrRepoNotFound):
		return "verify the configured codex_repo URL and that you have access to it"
	case errors.Is(err, ErrPushRejected):
		return "the knowledge repository moved ahead; re-run the sync to pull and retry"
	case errors.Is(err, ErrTimeout):
		return "the git operation timed out; check network connectivity or raise the timeout"
	case errors.Is(err, ErrCloneFailed):
		return "could not clone the knowledge repository; verify the codex_repo URL and branch"
	case errors.Is(err, ErrPushFailed):
		return "could not push to the knowledge repository; check connectivity and write access"
	}
	return ""
}

// IsRetryable reports whether the git error is likely to succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrPushRejected)
}

// IsFatal reports whether the error indicates a non-recoverable state.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrGitNotFound) || errors.Is(err, ErrRepoNotFound)
}
