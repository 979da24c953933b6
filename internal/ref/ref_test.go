package ref

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		org     string
		project string
		path    string
	}{
		{"full path", "codex://fractary/codex/docs/api.md", "fractary", "codex", "docs/api.md"},
		{"nested path", "codex://acme/site/specs/auth/tokens.md", "acme", "site", "specs/auth/tokens.md"},
		{"project root", "codex://fractary/codex", "fractary", "codex", ""},
		{"dotted names", "codex://my.org/my-project_2/readme.md", "my.org", "my-project_2", "readme.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := Parse(tt.uri)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.uri, err)
			}
			if ref.Org != tt.org {
				t.Errorf("Org = %q, want %q", ref.Org, tt.org)
			}
			if ref.Project != tt.project {
				t.Errorf("Project = %q, want %q", ref.Project, tt.project)
			}
			if ref.Path != tt.path {
				t.Errorf("Path = %q, want %q", ref.Path, tt.path)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"empty", ""},
		{"wrong scheme", "https://fractary/codex/docs/api.md"},
		{"no scheme", "fractary/codex/docs/api.md"},
		{"missing project", "codex://fractary"},
		{"empty org", "codex:///codex/docs/api.md"},
		{"empty project", "codex://fractary//docs/api.md"},
		{"bad org char", "codex://frac tary/codex/docs/api.md"},
		{"leading hyphen org", "codex://-fractary/codex/docs/api.md"},
		{"traversal path", "codex://fractary/codex/../secrets"},
		{"long path", "codex://fractary/codex/" + strings.Repeat("a", MaxPathLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.uri); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.uri)
			}
		})
	}
}

func TestParseErrorIsInvalidReference(t *testing.T) {
	_, err := Parse("codex://bad org/project")
	if !errors.Is(err, ErrInvalidReference) {
		t.Errorf("error = %v, want ErrInvalidReference", err)
	}
}

// Build must be the exact inverse of Parse for well-formed inputs.
func TestBuildParseRoundTrip(t *testing.T) {
	tests := []struct {
		org     string
		project string
		path    string
	}{
		{"fractary", "codex", "docs/api.md"},
		{"fractary", "codex", ""},
		{"acme", "site", "specs/v2/auth.md"},
		{"my.org", "proj-1", "a/b/c.txt"},
	}

	for _, tt := range tests {
		uri := Build(tt.org, tt.project, tt.path)
		ref, err := Parse(uri)
		if err != nil {
			t.Fatalf("Parse(Build(%q, %q, %q)) failed: %v", tt.org, tt.project, tt.path, err)
		}
		if ref.Org != tt.org || ref.Project != tt.project || ref.Path != tt.path {
			t.Errorf("round trip = %q/%q/%q, want %q/%q/%q",
				ref.Org, ref.Project, ref.Path, tt.org, tt.project, tt.path)
		}
	}
}

func TestBuildStripsLeadingSlash(t *testing.T) {
	got := Build("fractary", "codex", "/docs/api.md")
	want := "codex://fractary/codex/docs/api.md"
	if got != want {
		t.Errorf("Build = %q, want %q", got, want)
	}
}

func TestStringCanonicalizes(t *testing.T) {
	ref, err := Parse("codex://fractary/codex/docs/api.md")
	if err != nil {
		t.Fatal(err)
	}
	if got := ref.String(); got != "codex://fractary/codex/docs/api.md" {
		t.Errorf("String() = %q", got)
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("codex://fractary/codex/docs/api.md") {
		t.Error("IsValid rejected a valid URI")
	}
	if IsValid("codex://fractary") {
		t.Error("IsValid accepted a URI without a project")
	}
}
