// Package config loads codex configuration from .fractary/codex/config.yaml
// with environment variable overrides.
//
// The loader searches from a start directory up to the filesystem root, so
// any subdirectory of a configured project resolves the same config. The
// environment variables CODEX_ORG, CODEX_PROJECT, and CODEX_TOKEN override
// the corresponding file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default values applied when the config file omits them.
const (
	DefaultCacheDir   = ".fractary/codex/cache"
	DefaultStateDir   = ".fractary/codex/state"
	DefaultTTLSeconds = 86400
	DefaultBranch     = "main"
	DefaultTimeout    = 30
)

// ErrNotFound is returned when no config file exists between the start
// directory and the filesystem root.
var ErrNotFound = errors.New("codex config not found")

// SyncConfig controls plan computation and execution.
type SyncConfig struct {
	// Include restricts the local tree listing; empty means everything.
	Include []string `mapstructure:"include"`

	// Exclude removes paths from the listing; exclusions always win
	// over inclusions.
	Exclude []string `mapstructure:"exclude"`

	// PruneLocal mirrors upstream deletions locally during from-codex
	// sync. Off by default.
	PruneLocal bool `mapstructure:"prune_local"`
}

// StorageConfig configures the remote storage providers.
type StorageConfig struct {
	// Tokens maps a source name (e.g. "github") to an access token.
	Tokens map[string]string `mapstructure:"tokens"`

	// FallbackToPublic permits an unauthenticated retry after an auth
	// failure, and unauthenticated access when no token is available.
	FallbackToPublic bool `mapstructure:"fallback_to_public"`

	// RawHost overrides the raw-content host for git-hosted fetches.
	RawHost string `mapstructure:"raw_host"`

	// LocalStore is a directory holding a local knowledge tree laid out
	// as org/project/path. Empty disables the local provider.
	LocalStore string `mapstructure:"local_store"`

	// HTTPBase is the base URL for the generic HTTP provider. Empty
	// disables it.
	HTTPBase string `mapstructure:"http_base"`

	// Headers are sent with every generic HTTP fetch.
	Headers map[string]string `mapstructure:"headers"`

	// TimeoutSeconds bounds each network fetch.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ArchiveConfig configures the archive storage provider.
type ArchiveConfig struct {
	// Enabled turns the archive provider on for the current project.
	Enabled bool `mapstructure:"enabled"`

	// Patterns restrict archiving to matching paths; empty means all.
	Patterns []string `mapstructure:"patterns"`

	// Command is the external storage CLI invoked to fetch archived
	// bytes, e.g. ["fractary-store", "get"]. The archive key is
	// appended as the final argument.
	Command []string `mapstructure:"command"`
}

// TypeConfig declares a custom artifact type in the config file.
type TypeConfig struct {
	Name             string   `mapstructure:"name"`
	Patterns         []string `mapstructure:"patterns"`
	TTLSeconds       int      `mapstructure:"ttl_seconds"`
	ArchiveAfterDays int      `mapstructure:"archive_after_days"`
	ArchiveStorage   string   `mapstructure:"archive_storage"`
}

// Config is the loaded codex configuration.
type Config struct {
	Org     string `mapstructure:"organization"`
	Project string `mapstructure:"project"`

	// CodexRepo is the git URL of the central knowledge repository.
	CodexRepo string `mapstructure:"codex_repo"`

	// Branches maps environment name to knowledge-repo branch.
	Branches map[string]string `mapstructure:"branches"`

	CacheDir          string `mapstructure:"cache_dir"`
	StateDir          string `mapstructure:"state_dir"`
	DefaultTTLSeconds int    `mapstructure:"default_ttl_seconds"`

	// LocalSources are directories the project-file provider reads
	// directly, relative to the project root.
	LocalSources []string `mapstructure:"local_sources"`

	Sync    SyncConfig   `mapstructure:"sync"`
	Storage StorageConfig `mapstructure:"storage"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Types   []TypeConfig  `mapstructure:"types"`

	// RootDir is the directory containing .fractary; set by Load.
	RootDir string `mapstructure:"-"`
}

// Organization returns the configured organization name.
func (c *Config) Organization() string { return c.Org }

// ProjectName returns the project name, defaulting to the organization.
func (c *Config) ProjectName() string {
	if c.Project != "" {
		return c.Project
	}
	return c.Org
}

// Branch returns the knowledge-repo branch for an environment, falling
// back to the default branch.
func (c *Config) Branch(env string) string {
	if b, ok := c.Branches[env]; ok && b != "" {
		return b
	}
	if b, ok := c.Branches["default"]; ok && b != "" {
		return b
	}
	return DefaultBranch
}

// Token returns the access token for a source: the per-source config
// token first, then the CODEX_TOKEN environment variable, then
// GITHUB_TOKEN for the github source.
func (c *Config) Token(source string) string {
	if t := c.Storage.Tokens[source]; t != "" {
		return t
	}
	if t := os.Getenv("CODEX_TOKEN"); t != "" {
		return t
	}
	if source == "github" {
		return os.Getenv("GITHUB_TOKEN")
	}
	return ""
}

// AbsCacheDir returns the cache directory resolved against the project root.
func (c *Config) AbsCacheDir() string {
	return absAgainstRoot(c.RootDir, c.CacheDir)
}

// AbsStateDir returns the state directory resolved against the project root.
func (c *Config) AbsStateDir() string {
	return absAgainstRoot(c.RootDir, c.StateDir)
}

func absAgainstRoot(root, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// Load reads the nearest config.yaml at or above startDir. ErrNotFound is
// returned when no config file exists on the search path.
func Load(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	configDir := findConfigDir(dir)
	if configDir == "" {
		return nil, fmt.Errorf("%w: searched from %s upward", ErrNotFound, dir)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetDefault("cache_dir", DefaultCacheDir)
	v.SetDefault("state_dir", DefaultStateDir)
	v.SetDefault("default_ttl_seconds", DefaultTTLSeconds)
	v.SetDefault("storage.timeout_seconds", DefaultTimeout)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config at %s: %w", configDir, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config at %s: %w", configDir, err)
	}

	// .fractary/codex/config.yaml -> project root is two levels up.
	cfg.RootDir = filepath.Dir(filepath.Dir(configDir))

	if org := os.Getenv("CODEX_ORG"); org != "" {
		cfg.Org = org
	}
	if project := os.Getenv("CODEX_PROJECT"); project != "" {
		cfg.Project = project
	}

	return &cfg, nil
}

// findConfigDir walks from dir to the filesystem root looking for
// .fractary/codex containing a config file.
func findConfigDir(dir string) string {
	for {
		candidate := filepath.Join(dir, ".fractary", "codex")
		for _, name := range []string{"config.yaml", "config.yml"} {
			if _, err := os.Stat(filepath.Join(candidate, name)); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
