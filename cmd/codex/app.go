package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fractary/codex/internal/artifact"
	"github.com/fractary/codex/internal/cache"
	"github.com/fractary/codex/internal/config"
	"github.com/fractary/codex/internal/ref"
	"github.com/fractary/codex/internal/storage"
	"github.com/fractary/codex/internal/syncer"
)

// app bundles the wiring every subcommand needs: loaded config (nil when
// no config file exists), the detected project context, the artifact type
// registry, and lazily-opened storage and cache layers.
type app struct {
	cfg      *config.Config
	refCtx   ref.Context
	registry *artifact.Registry

	engine *cache.Engine
}

// newApp loads config and detects the project context. A missing config
// file is not fatal: resolution still works from environment variables and
// the git remote.
func newApp(ctx context.Context) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(cwd)
	if err != nil && !errors.Is(err, config.ErrNotFound) {
		return nil, err
	}

	startDir := cwd
	var ctxCfg ref.ContextConfig
	if cfg != nil {
		startDir = cfg.RootDir
		ctxCfg = cfg
	}

	refCtx, err := ref.DetectContext(ctx, startDir, ctxCfg)
	if err != nil {
		return nil, err
	}
	refCtx.CacheDir = cacheDir(cfg, refCtx.RootDir)

	a := &app{cfg: cfg, refCtx: refCtx}
	a.registry = artifact.NewRegistry(customTypes(cfg))
	return a, nil
}

func cacheDir(cfg *config.Config, rootDir string) string {
	if cfg != nil {
		return cfg.AbsCacheDir()
	}
	return filepath.Join(rootDir, config.DefaultCacheDir)
}

// customTypes converts configured artifact types into registry entries.
func customTypes(cfg *config.Config) []artifact.Type {
	if cfg == nil {
		return nil
	}
	types := make([]artifact.Type, 0, len(cfg.Types))
	for _, t := range cfg.Types {
		types = append(types, artifact.Type{
			Name:             t.Name,
			Patterns:         t.Patterns,
			TTLSeconds:       t.TTLSeconds,
			ArchiveAfterDays: t.ArchiveAfterDays,
			ArchiveStorage:   t.ArchiveStorage,
		})
	}
	return types
}

// providers assembles the storage fallback cascade in priority order:
// local, archive, project-file, git-hosted, http.
func (a *app) providers() []storage.Provider {
	var (
		localStore       string
		archiveEnabled   bool
		archivePatterns  []string
		archiveCommand   []string
		localSources     []string
		rawHost          string
		httpBase         string
		httpHeaders      map[string]string
		fallbackToPublic bool
		branch           = config.DefaultBranch
		token            string
	)
	if a.cfg != nil {
		localStore = a.cfg.Storage.LocalStore
		archiveEnabled = a.cfg.Archive.Enabled
		archivePatterns = a.cfg.Archive.Patterns
		archiveCommand = a.cfg.Archive.Command
		localSources = a.cfg.LocalSources
		rawHost = a.cfg.Storage.RawHost
		httpBase = a.cfg.Storage.HTTPBase
		httpHeaders = a.cfg.Storage.Headers
		fallbackToPublic = a.cfg.Storage.FallbackToPublic
		branch = a.cfg.Branch(os.Getenv("CODEX_ENV"))
		token = a.cfg.Token("github")
	} else {
		token = os.Getenv("CODEX_TOKEN")
		if token == "" {
			token = os.Getenv("GITHUB_TOKEN")
		}
	}

	gitHosted := storage.NewGitHosted(token, branch, fallbackToPublic)
	if rawHost != "" {
		gitHosted.RawHost = rawHost
	}

	return []storage.Provider{
		storage.NewLocal(localStore),
		storage.NewArchive(archiveEnabled, archivePatterns, archiveCommand, a.registry),
		storage.NewProjectFile(a.refCtx.RootDir, localSources),
		gitHosted,
		storage.NewHTTP(httpBase, httpHeaders),
	}
}

// openEngine opens the cache engine on first use.
func (a *app) openEngine() (*cache.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}

	manager := storage.NewManager(a.providers(), logger)
	engine, err := cache.NewEngine(a.refCtx.CacheDir, manager, a.registry, logger)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	return engine, nil
}

// close releases any opened resources.
func (a *app) close() {
	if a.engine != nil {
		_ = a.engine.Close()
	}
}

// resolve parses and resolves a codex:// URI against the detected context.
func (a *app) resolve(uri string) (ref.Resolved, error) {
	parsed, err := ref.Parse(uri)
	if err != nil {
		return ref.Resolved{}, err
	}
	return ref.Resolve(parsed, a.refCtx)
}

// fetchOptions derives storage fetch options from config.
func (a *app) fetchOptions() storage.FetchOptions {
	opts := storage.FetchOptions{}
	if a.cfg != nil && a.cfg.Storage.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(a.cfg.Storage.TimeoutSeconds) * time.Second
	}
	return opts
}

// syncEngine builds the sync engine; it requires a loaded config with a
// knowledge repository URL.
func (a *app) syncEngine() (*syncer.Engine, error) {
	if a.cfg == nil {
		return nil, fmt.Errorf("sync requires a .fractary/codex/config.yaml (%w)", config.ErrNotFound)
	}
	if a.cfg.CodexRepo == "" {
		return nil, fmt.Errorf("sync requires codex_repo in config")
	}

	_, repoName := ref.ParseRemoteURL(a.cfg.CodexRepo)

	return syncer.NewEngine(syncer.Options{
		Org:       a.refCtx.Org,
		Project:   a.refCtx.Project,
		LocalRoot: a.refCtx.RootDir,
		StateDir:  a.cfg.AbsStateDir(),
		RepoURL:   a.cfg.CodexRepo,
		RepoName:  repoName,
		Branch:    a.cfg.Branch(os.Getenv("CODEX_ENV")),
		Include:   a.cfg.Sync.Include,
		Exclude:   a.cfg.Sync.Exclude,
		Logger:    logger,
	}), nil
}
