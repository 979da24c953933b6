package syncer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fractary/codex/internal/cache"
)

// FileRecord is one file in a listing.
type FileRecord struct {
	Path string
	Size int64
	Hash string
}

// Listing maps relative slash-separated paths to file records.
type Listing map[string]FileRecord

// ListTree walks root and returns the files matching the include patterns
// and not matching the exclude patterns. Exclusions always take precedence
// over inclusions; empty include means everything. Content hashes are
// computed for every listed file.
func ListTree(root string, include, exclude []string) (Listing, error) {
	listing := make(Listing)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Never descend into VCS metadata or the codex state dir.
			name := d.Name()
			if name == ".git" || name == ".fractary" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !Selected(rel, include, exclude) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		listing[rel] = FileRecord{
			Path: rel,
			Size: int64(len(content)),
			Hash: cache.HashContent(content),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// Selected applies include/exclude doublestar patterns to a relative path.
// Exclusions win over inclusions.
func Selected(rel string, include, exclude []string) bool {
	for _, pattern := range exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// ProjectPrefix is where a project's synced tree lives inside the
// knowledge repository.
func ProjectPrefix(project string) string {
	return "projects/" + project
}

// StripProjectPrefix removes projects/{project}/ from a knowledge-repo
// path, returning the project-relative path and whether the prefix matched.
func StripProjectPrefix(repoPath, project string) (string, bool) {
	prefix := ProjectPrefix(project) + "/"
	if strings.HasPrefix(repoPath, prefix) {
		return repoPath[len(prefix):], true
	}
	return repoPath, false
}
