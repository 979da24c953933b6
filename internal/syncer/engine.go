package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/fractary/codex/internal/cache"
	"github.com/fractary/codex/internal/gitx"
	"github.com/fractary/codex/internal/ref"
)

// Options configure a sync engine for one project.
type Options struct {
	// Org and Project identify the active project.
	Org     string
	Project string

	// LocalRoot is the project tree being synced.
	LocalRoot string

	// StateDir holds manifests and locks.
	StateDir string

	// RepoURL is the knowledge repository's git URL.
	RepoURL string

	// RepoName is the knowledge repository's short name, used in the
	// temporary working copy path.
	RepoName string

	// Branch is the knowledge-repo branch to sync against.
	Branch string

	// Include and Exclude filter the local tree listing.
	Include []string
	Exclude []string

	// Logger for sync activity; nil means a default stderr logger.
	Logger *log.Logger
}

// Engine computes and executes sync plans for one project against the
// knowledge repository.
type Engine struct {
	opts   Options
	logger *log.Logger
}

// NewEngine creates a sync engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{opts: opts, logger: logger}
}

// Prepared is a computed plan plus everything its execution needs: the
// manifest it diffed against, the clone-on-demand working copy, and (for
// from-codex) the routed source files keyed by local destination.
type Prepared struct {
	Plan      *Plan
	Direction Direction
	Scan      *RoutingScan

	manifest *Manifest
	workdir  *gitx.Workdir
	repo     *gitx.Repo
	routed   map[string]RoutedFile
}

// Close removes the temporary working copy. Call it on every exit path.
func (p *Prepared) Close() {
	if p.workdir != nil {
		_ = p.workdir.Cleanup()
	}
}

// PlanToCodex computes the to-codex plan: the local tree (filtered by the
// configured include/exclude patterns) diffed against the project's
// subtree of a knowledge-repo working copy. Plan computation never mutates
// the local tree, cache, or remote; the clone itself is the only read-side
// effect.
func (e *Engine) PlanToCodex(ctx context.Context, popts PlanOptions) (*Prepared, error) {
	source, err := ListTree(e.opts.LocalRoot, e.opts.Include, e.opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("listing local tree: %w", err)
	}

	prepared := &Prepared{Direction: ToCodex}
	repo, err := e.ensureClone(ctx, prepared)
	if err != nil {
		prepared.Close()
		return nil, err
	}

	targetRoot := filepath.Join(repo.Dir, filepath.FromSlash(ProjectPrefix(e.opts.Project)))
	target := Listing{}
	if _, statErr := os.Stat(targetRoot); statErr == nil {
		target, err = ListTree(targetRoot, nil, nil)
		if err != nil {
			prepared.Close()
			return nil, fmt.Errorf("listing knowledge-repo subtree: %w", err)
		}
	}

	manifest, err := LoadManifest(e.opts.StateDir, e.opts.Project, ToCodex)
	if err != nil {
		prepared.Close()
		return nil, err
	}
	prepared.manifest = manifest

	popts.Prune = true // to-codex is always authorized to prune
	popts.Source = e.opts.LocalRoot
	popts.Target = e.opts.RepoURL
	prepared.Plan = CreatePlan(source, target, manifest, popts)
	return prepared, nil
}

// PlanFromCodex computes the routing-aware from-codex plan. It scans the
// entire knowledge-repo working copy (never the cache directory, which
// only sees files already cached under the current project) for files
// routed to this project, then diffs them against the local tree.
func (e *Engine) PlanFromCodex(ctx context.Context, popts PlanOptions) (*Prepared, error) {
	prepared := &Prepared{Direction: FromCodex}
	repo, err := e.ensureClone(ctx, prepared)
	if err != nil {
		prepared.Close()
		return nil, err
	}

	scan, err := ScanRouting(ctx, repo.Dir, e.opts.Project)
	if err != nil {
		prepared.Close()
		return nil, fmt.Errorf("routing scan: %w", err)
	}
	prepared.Scan = scan
	e.logger.Printf("routing scan: %d of %d files routed to %s",
		scan.Stats.TotalMatched, scan.Stats.TotalScanned, e.opts.Project)

	source := make(Listing, len(scan.MatchedFiles))
	prepared.routed = make(map[string]RoutedFile, len(scan.MatchedFiles))
	for _, rf := range scan.MatchedFiles {
		source[rf.LocalPath] = FileRecord{Path: rf.LocalPath, Size: rf.Size, Hash: rf.Hash}
		prepared.routed[rf.LocalPath] = rf
	}

	manifest, err := LoadManifest(e.opts.StateDir, e.opts.Project, FromCodex)
	if err != nil {
		prepared.Close()
		return nil, err
	}
	prepared.manifest = manifest

	local, err := ListTree(e.opts.LocalRoot, e.opts.Include, e.opts.Exclude)
	if err != nil {
		prepared.Close()
		return nil, fmt.Errorf("listing local tree: %w", err)
	}
	// Only files the knowledge repo ever owned participate; unrelated
	// local files must not look like upstream deletions.
	target := make(Listing)
	for path, rec := range local {
		if _, ok := source[path]; ok {
			target[path] = rec
			continue
		}
		if manifest.LastHash(path) != "" {
			target[path] = rec
		}
	}

	popts.Source = e.opts.RepoURL
	popts.Target = e.opts.LocalRoot
	prepared.Plan = CreatePlan(source, target, manifest, popts)
	return prepared, nil
}

func (e *Engine) ensureClone(ctx context.Context, prepared *Prepared) (*gitx.Repo, error) {
	if e.opts.RepoURL == "" {
		return nil, fmt.Errorf("no knowledge repository configured (codex_repo)")
	}

	name := e.opts.RepoName
	if name == "" {
		name = "codex"
	}
	prepared.workdir = gitx.NewWorkdir(e.opts.RepoURL, e.opts.Org, name, e.opts.Branch)

	repo, err := prepared.workdir.EnsureClone(ctx)
	if err != nil {
		if hint := gitx.Remediation(err); hint != "" {
			return nil, fmt.Errorf("%w (%s)", err, hint)
		}
		return nil, err
	}
	prepared.repo = repo
	return repo, nil
}

// Execute runs a prepared plan. Per-file failures are captured into the
// result and never abort the batch. For to-codex, execution continues into
// the git tail: stage, skip the commit when the tree is clean, otherwise
// commit and push. Success is reported only after the push completes.
func (e *Engine) Execute(ctx context.Context, p *Prepared) (*Result, error) {
	start := time.Now()
	result := &Result{
		InvocationID: uuid.NewString(),
		Skipped:      len(p.Plan.Skipped),
		Errors:       []FileError{},
		State:        StateExecuting,
	}

	lock, err := AcquireManifestLock(e.opts.StateDir, p.Direction)
	if err != nil {
		result.State = StateAborted
		result.DurationMs = durationMs(start)
		return result, err
	}
	defer func() { _ = lock.Release() }()

	synced := make([]PlanFile, 0, len(p.Plan.Files))
	for _, f := range p.Plan.Files {
		var fileErr error
		switch p.Direction {
		case ToCodex:
			fileErr = e.applyToCodex(p, f)
		case FromCodex:
			fileErr = e.applyFromCodex(p, f)
		default:
			fileErr = fmt.Errorf("unsupported direction %q", p.Direction)
		}

		if fileErr != nil {
			result.Failed++
			result.Errors = append(result.Errors, FileError{Path: f.Path, Error: fileErr.Error()})
			e.logger.Printf("sync %s failed for %s: %v", f.Operation, f.Path, fileErr)
			continue
		}
		result.Synced++
		synced = append(synced, f)
	}

	if p.Direction == ToCodex {
		state, err := e.commitAndPush(ctx, p, result)
		result.State = state
		if err != nil {
			result.DurationMs = durationMs(start)
			return result, err
		}
		if state == StateNoChanges {
			result.Success = true
			result.DurationMs = durationMs(start)
			return result, nil
		}
	}

	// Record only after the changes durably landed.
	e.recordManifest(p, synced)

	result.Success = result.Failed == 0
	if result.State == StateExecuting {
		result.State = StateDone
	}
	result.DurationMs = durationMs(start)
	return result, nil
}

// applyToCodex copies or removes one file in the knowledge-repo working
// copy.
func (e *Engine) applyToCodex(p *Prepared, f PlanFile) error {
	dst, err := ref.SecureJoin(p.repo.Dir, ProjectPrefix(e.opts.Project)+"/"+f.Path)
	if err != nil {
		return err
	}

	if f.Operation == OpDelete {
		return removeFile(dst)
	}

	src, err := ref.SecureJoin(e.opts.LocalRoot, f.Path)
	if err != nil {
		return err
	}
	return copyFile(src, dst)
}

// applyFromCodex copies or removes one file in the local tree.
func (e *Engine) applyFromCodex(p *Prepared, f PlanFile) error {
	dst, err := ref.SecureJoin(e.opts.LocalRoot, f.Path)
	if err != nil {
		return err
	}

	if f.Operation == OpDelete {
		return removeFile(dst)
	}

	rf, ok := p.routed[f.Path]
	if !ok {
		return fmt.Errorf("no routed source for %s", f.Path)
	}
	src, err := ref.SecureJoin(p.repo.Dir, rf.RepoPath)
	if err != nil {
		return err
	}
	return copyFile(src, dst)
}

// commitAndPush stages the working copy, skips empty commits, and pushes.
// A clean tree after staging yields StateNoChanges rather than an empty
// commit.
func (e *Engine) commitAndPush(ctx context.Context, p *Prepared, result *Result) (State, error) {
	if err := p.repo.AddAll(ctx); err != nil {
		return StateFailed, fmt.Errorf("staging knowledge-repo changes: %w", err)
	}

	dirty, err := p.repo.HasStagedChanges(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("checking knowledge-repo status: %w", err)
	}
	if !dirty {
		e.logger.Printf("no changes to commit for %s", e.opts.Project)
		return StateNoChanges, nil
	}

	message := fmt.Sprintf("Sync %d files from %s", result.Synced, e.opts.Project)
	if err := p.repo.Commit(ctx, message); err != nil {
		return StateFailed, fmt.Errorf("committing sync: %w", err)
	}

	if err := p.repo.Push(ctx, e.opts.Branch); err != nil {
		if hint := gitx.Remediation(err); hint != "" {
			return StateFailed, fmt.Errorf("%w (%s)", err, hint)
		}
		return StateFailed, err
	}
	return StateDone, nil
}

// recordManifest persists the last-synced hashes for successfully synced
// files. Manifest write failures are logged, not fatal: the next sync
// simply re-detects the same changes.
func (e *Engine) recordManifest(p *Prepared, synced []PlanFile) {
	now := time.Now()
	for _, f := range synced {
		if f.Operation == OpDelete {
			p.manifest.Forget(f.Path)
			continue
		}

		path := filepath.Join(e.opts.LocalRoot, filepath.FromSlash(f.Path))
		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		p.manifest.Record(f.Path, cache.HashContent(content), now)
	}

	if err := p.manifest.Save(); err != nil {
		e.logger.Printf("failed to save sync manifest: %v", err)
	}
}

func copyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, content, 0o644)
}

func removeFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
