package gitx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Workdir is a process-scoped temporary working copy of the knowledge
// repository, obtained via clone-on-demand. The directory name includes
// org, repo, and pid so concurrent invocations never clobber each other's
// tree.
type Workdir struct {
	// Dir is the temporary working copy location.
	Dir string

	url    string
	branch string
	repo   *Repo
}

// NewWorkdir computes the temporary location for a knowledge-repo working
// copy. Nothing touches the filesystem until EnsureClone.
func NewWorkdir(url, org, repoName, branch string) *Workdir {
	dir := filepath.Join(os.TempDir(), fmt.Sprintf("codex-sync-%s-%s-%d", org, repoName, os.Getpid()))
	return &Workdir{Dir: dir, url: url, branch: branch}
}

// EnsureClone returns a usable Repo at the workdir path. An existing valid
// clone is updated in place (fetch, checkout, pull); any update failure
// discards the tree and re-clones fresh rather than operating on a possibly
// corrupt working copy.
func (w *Workdir) EnsureClone(ctx context.Context) (*Repo, error) {
	if w.repo != nil {
		return w.repo, nil
	}

	if existing, err := Open(w.Dir); err == nil {
		if err := w.update(ctx, existing); err == nil {
			w.repo = existing
			return existing, nil
		}
		// Corrupt or diverged tree: start over.
		_ = os.RemoveAll(w.Dir)
	}

	repo, err := Clone(ctx, w.url, w.Dir, w.branch)
	if err != nil {
		_ = os.RemoveAll(w.Dir)
		return nil, err
	}
	w.repo = repo
	return repo, nil
}

func (w *Workdir) update(ctx context.Context, repo *Repo) error {
	if err := repo.Fetch(ctx, w.branch); err != nil {
		return err
	}
	if w.branch != "" {
		if err := repo.Checkout(ctx, w.branch); err != nil {
			return err
		}
	}
	return repo.Pull(ctx, w.branch)
}

// Cleanup removes the temporary working copy. It is safe to call on every
// exit path, including after a failed clone.
func (w *Workdir) Cleanup() error {
	w.repo = nil
	return os.RemoveAll(w.Dir)
}
