// Package ref provides parsing, validation, and resolution of codex:// URIs.
//
// A codex URI addresses a file inside a project's documentation tree:
//
//	codex://{org}/{project}/{path}
//
// Parsing is strict: org and project names must match a conservative
// character set, and paths are checked against traversal and scheme-smuggling
// patterns before any filesystem use. Resolution turns a parsed Reference
// into concrete local and cache paths for a given project context, with a
// second containment check on the joined result.
package ref

import (
	"fmt"
	"regexp"
	"strings"
)

// Scheme is the URI scheme prefix for codex references.
const Scheme = "codex://"

const (
	// MaxNameLength bounds org and project name length.
	MaxNameLength = 100

	// MaxPathLength bounds the path component length.
	MaxPathLength = 1000
)

// namePattern validates org and project names: leading alphanumeric,
// then alphanumerics, dots, underscores, or hyphens.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Reference is a parsed codex:// URI. It is immutable once parsed;
// construct one via Parse or from components via Build + Parse.
type Reference struct {
	// URI is the original URI string.
	URI string

	// Org is the organization name.
	Org string

	// Project is the project name.
	Project string

	// Path is the slash-separated path within the project.
	Path string
}

// String returns the canonical URI form of the reference.
func (r Reference) String() string {
	return Build(r.Org, r.Project, r.Path)
}

// Parse parses a codex:// URI into its components.
//
// The URI must start with the codex:// scheme and contain at least an
// organization and a project segment. The path segment may be empty
// (addressing the project root).
//
// Example:
//
//	ref, err := ref.Parse("codex://fractary/codex/docs/api.md")
//	// ref.Org == "fractary", ref.Project == "codex", ref.Path == "docs/api.md"
func Parse(uri string) (Reference, error) {
	if uri == "" {
		return Reference{}, fmt.Errorf("%w: URI is empty", ErrInvalidReference)
	}

	if !strings.HasPrefix(uri, Scheme) {
		return Reference{}, fmt.Errorf("%w: URI must start with %q: %s", ErrInvalidReference, Scheme, uri)
	}

	rest := uri[len(Scheme):]
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Reference{}, fmt.Errorf("%w: URI must have format codex://org/project[/path]: %s", ErrInvalidReference, uri)
	}

	org, project := parts[0], parts[1]
	path := ""
	if len(parts) == 3 {
		path = parts[2]
	}

	if err := validateName("organization", org); err != nil {
		return Reference{}, err
	}
	if err := validateName("project", project); err != nil {
		return Reference{}, err
	}

	if path != "" {
		if len(path) > MaxPathLength {
			return Reference{}, fmt.Errorf("%w: path too long: %d chars (max %d)", ErrInvalidReference, len(path), MaxPathLength)
		}
		if err := ValidatePath(path); err != nil {
			return Reference{}, err
		}
	}

	return Reference{
		URI:     uri,
		Org:     org,
		Project: project,
		Path:    path,
	}, nil
}

// Build constructs a codex:// URI from components. For well-formed inputs
// it is the exact inverse of Parse: Parse(Build(org, project, path))
// yields the same components back.
func Build(org, project, path string) string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return Scheme + org + "/" + project
	}
	return Scheme + org + "/" + project + "/" + path
}

// IsValid reports whether uri parses as a codex:// reference.
func IsValid(uri string) bool {
	_, err := Parse(uri)
	return err == nil
}

func validateName(kind, name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: invalid %s name %q: must start with an alphanumeric and contain only alphanumerics, dots, underscores, or hyphens",
			ErrInvalidReference, kind, name)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: %s name too long: %d chars (max %d)", ErrInvalidReference, kind, len(name), MaxNameLength)
	}
	return nil
}
