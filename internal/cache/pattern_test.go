package cache

import (
	"errors"
	"strings"
	"testing"
)

func TestValidatePatternRejects(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"empty", ""},
		{"too long", strings.Repeat("a", maxPatternLength+1)},
		{"repeated dot-star", ".*docs.*"},
		{"nested quantifier plus", "(a+)+"},
		{"nested quantifier star", "(ab*)*"},
		{"nested quantifier brace", "(a{2}){3}"},
		{"too many groups", strings.Repeat("(a)", maxGroups+1)},
		{"oversized char class", "[" + strings.Repeat("a", maxCharClassSize+1) + "]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePattern(tt.pattern)
			if !errors.Is(err, ErrUnsafePattern) {
				t.Errorf("ValidatePattern(%q) = %v, want ErrUnsafePattern", tt.pattern, err)
			}
		})
	}
}

func TestValidatePatternAccepts(t *testing.T) {
	patterns := []string{
		"codex://fractary/codex/docs/.*",
		"docs/api",
		"^codex://acme/.+\\.md$",
		"[a-z0-9]+",
		"(docs|specs)/",
	}

	for _, pattern := range patterns {
		if err := ValidatePattern(pattern); err != nil {
			t.Errorf("ValidatePattern(%q) = %v, want nil", pattern, err)
		}
	}
}

func TestCompilePattern(t *testing.T) {
	re, err := CompilePattern("docs/.*")
	if err != nil {
		t.Fatalf("CompilePattern failed: %v", err)
	}
	if !re.MatchString("codex://fractary/codex/docs/api.md") {
		t.Error("compiled pattern did not match")
	}

	if _, err := CompilePattern("(a+)+"); !errors.Is(err, ErrUnsafePattern) {
		t.Errorf("unsafe pattern error = %v, want ErrUnsafePattern", err)
	}

	// Syntactically invalid but not unsafe: compilation itself fails.
	if _, err := CompilePattern("[unclosed"); err == nil {
		t.Error("CompilePattern accepted an invalid pattern")
	}
}
