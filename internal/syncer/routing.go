package syncer

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/fractary/codex/internal/cache"
)

// routingKey is the frontmatter key listing the projects a file routes to.
const routingKey = "codex_sync_include"

// frontmatter is the subset of markdown frontmatter the routing scan
// consumes.
type frontmatter struct {
	CodexSyncInclude []string `yaml:"codex_sync_include"`
}

// scanFanOut bounds concurrent file reads during a routing scan.
const scanFanOut = 8

// ScanRouting walks a knowledge-repository working copy and collects every
// markdown file whose codex_sync_include frontmatter names the given
// project. The scan must run against a full clone of the knowledge
// repository, never the cache directory: routing decisions depend on files
// belonging to other projects, which the cache cannot see.
func ScanRouting(ctx context.Context, repoDir, project string) (*RoutingScan, error) {
	start := time.Now()

	var paths []string
	err := filepath.WalkDir(repoDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".md") || strings.HasSuffix(d.Name(), ".mdx") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		matched []RoutedFile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanFanOut)

	for _, path := range paths {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			if !routesTo(content, project) {
				return nil
			}

			rel, err := filepath.Rel(repoDir, path)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			rf := RoutedFile{
				RepoPath:      rel,
				SourceProject: sourceProject(rel),
				Size:          int64(len(content)),
				Hash:          cache.HashContent(content),
			}
			rf.LocalPath = routedLocalPath(rel, rf.SourceProject, project)

			mu.Lock()
			matched = append(matched, rf)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(matched, func(a, b int) bool { return matched[a].RepoPath < matched[b].RepoPath })

	projects := make(map[string]bool)
	for _, rf := range matched {
		if rf.SourceProject != "" {
			projects[rf.SourceProject] = true
		}
	}
	sources := make([]string, 0, len(projects))
	for p := range projects {
		sources = append(sources, p)
	}
	sort.Strings(sources)

	return &RoutingScan{
		MatchedFiles: matched,
		Stats: RoutingStats{
			TotalScanned:   len(paths),
			TotalMatched:   len(matched),
			SourceProjects: sources,
			DurationMs:     durationMs(start),
		},
	}, nil
}

// routesTo reports whether the file's frontmatter routes it to project.
func routesTo(content []byte, project string) bool {
	fm, ok := extractFrontmatter(content)
	if !ok {
		return false
	}

	var parsed frontmatter
	if err := yaml.Unmarshal(fm, &parsed); err != nil {
		return false
	}

	for _, name := range parsed.CodexSyncInclude {
		if name == project {
			return true
		}
	}
	return false
}

// extractFrontmatter returns the YAML block delimited by leading --- lines.
func extractFrontmatter(content []byte) ([]byte, bool) {
	trimmed := bytes.TrimLeft(content, "\xef\xbb\xbf")
	if !bytes.HasPrefix(trimmed, []byte("---\n")) && !bytes.HasPrefix(trimmed, []byte("---\r\n")) {
		return nil, false
	}

	rest := trimmed[bytes.IndexByte(trimmed, '\n')+1:]
	for _, delim := range [][]byte{[]byte("\n---\n"), []byte("\n---\r\n")} {
		if idx := bytes.Index(rest, delim); idx >= 0 {
			return rest[:idx], true
		}
	}
	// Frontmatter closed at end of file.
	if bytes.HasSuffix(rest, []byte("\n---")) {
		return rest[:len(rest)-4], true
	}
	return nil, false
}

// sourceProject extracts the owning project from a knowledge-repo path
// of the form projects/{project}/...; empty for paths outside projects/.
func sourceProject(repoPath string) string {
	parts := strings.SplitN(repoPath, "/", 3)
	if len(parts) >= 2 && parts[0] == "projects" {
		return parts[1]
	}
	return ""
}

// routedLocalPath maps a matched knowledge-repo file to its local
// destination. The current project's own files keep their project-relative
// path; files routed from other projects land under imported/{project}/.
func routedLocalPath(repoPath, srcProject, project string) string {
	if srcProject == project {
		rel, _ := StripProjectPrefix(repoPath, project)
		return rel
	}
	if srcProject != "" {
		rel, _ := StripProjectPrefix(repoPath, srcProject)
		return "imported/" + srcProject + "/" + rel
	}
	return "imported/" + repoPath
}
