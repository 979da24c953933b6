package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/fractary/codex/internal/ref"
)

// fakeProvider is a scriptable provider for cascade tests.
type fakeProvider struct {
	name    string
	handles bool
	content []byte
	err     error
	calls   atomic.Int32
}

func (f *fakeProvider) Name() string                { return f.name }
func (f *fakeProvider) CanHandle(ref.Resolved) bool { return f.handles }

func (f *fakeProvider) Fetch(_ context.Context, r ref.Resolved, _ FetchOptions) (*Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Content: f.content, Size: int64(len(f.content)), Source: f.name}, nil
}

func (f *fakeProvider) Exists(_ context.Context, r ref.Resolved, _ FetchOptions) bool {
	return f.err == nil
}

func testResolved(t *testing.T, uri string) ref.Resolved {
	t.Helper()
	parsed, err := ref.Parse(uri)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", uri, err)
	}
	return ref.Resolved{Reference: parsed, Source: ref.SourceRemote}
}

func TestFetchStopsAtFirstSuccess(t *testing.T) {
	first := &fakeProvider{name: "first", handles: true, err: ErrNotFound}
	second := &fakeProvider{name: "second", handles: true, content: []byte("hello")}
	third := &fakeProvider{name: "third", handles: true, content: []byte("unreached")}

	m := NewManager([]Provider{first, second, third}, nil)
	r := testResolved(t, "codex://fractary/codex/docs/api.md")

	result, err := m.Fetch(context.Background(), r, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Source != "second" {
		t.Errorf("Source = %q, want second", result.Source)
	}
	if third.calls.Load() != 0 {
		t.Error("third provider was called after a success")
	}
}

func TestFetchSkipsIneligibleProviders(t *testing.T) {
	skipped := &fakeProvider{name: "skipped", handles: false, content: []byte("wrong")}
	used := &fakeProvider{name: "used", handles: true, content: []byte("right")}

	m := NewManager([]Provider{skipped, used}, nil)
	r := testResolved(t, "codex://fractary/codex/docs/api.md")

	result, err := m.Fetch(context.Background(), r, FetchOptions{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Source != "used" {
		t.Errorf("Source = %q, want used", result.Source)
	}
	if skipped.calls.Load() != 0 {
		t.Error("ineligible provider was called")
	}
}

func TestFetchExhaustedError(t *testing.T) {
	first := &fakeProvider{name: "first", handles: true, err: fmt.Errorf("%w: a", ErrNotFound)}
	second := &fakeProvider{name: "second", handles: true, err: fmt.Errorf("%w: b", ErrNetworkError)}

	m := NewManager([]Provider{first, second}, nil)
	r := testResolved(t, "codex://fractary/codex/docs/api.md")

	_, err := m.Fetch(context.Background(), r, FetchOptions{})
	if err == nil {
		t.Fatal("Fetch succeeded, want error")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %T, want *ExhaustedError", err)
	}
	// The primary error is the first provider's, so callers can match
	// the most meaningful failure.
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ExhaustedError does not unwrap to the primary error: %v", err)
	}
	if exhausted.Others != 1 {
		t.Errorf("Others = %d, want 1", exhausted.Others)
	}
}

func TestFetchNoEligibleProviders(t *testing.T) {
	m := NewManager([]Provider{&fakeProvider{name: "off", handles: false}}, nil)
	r := testResolved(t, "codex://fractary/codex/docs/api.md")

	if _, err := m.Fetch(context.Background(), r, FetchOptions{}); err == nil {
		t.Fatal("Fetch succeeded with no eligible providers")
	}
}

func TestExists(t *testing.T) {
	missing := &fakeProvider{name: "missing", handles: true, err: ErrNotFound}
	present := &fakeProvider{name: "present", handles: true, content: []byte("x")}

	m := NewManager([]Provider{missing, present}, nil)
	r := testResolved(t, "codex://fractary/codex/docs/api.md")

	if !m.Exists(context.Background(), r, FetchOptions{}) {
		t.Error("Exists = false, want true")
	}

	m = NewManager([]Provider{missing}, nil)
	if m.Exists(context.Background(), r, FetchOptions{}) {
		t.Error("Exists = true, want false")
	}
}

func TestFetchManyPartialFailure(t *testing.T) {
	provider := &conditionalProvider{}
	m := NewManager([]Provider{provider}, nil)

	refs := []ref.Resolved{
		testResolved(t, "codex://fractary/codex/docs/good1.md"),
		testResolved(t, "codex://fractary/codex/docs/bad.md"),
		testResolved(t, "codex://fractary/codex/docs/good2.md"),
	}

	outcomes := m.FetchMany(context.Background(), refs, FetchOptions{}, 2)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	for _, r := range refs {
		if _, ok := outcomes[r.URI]; !ok {
			t.Errorf("no outcome for %s", r.URI)
		}
	}

	if outcomes["codex://fractary/codex/docs/bad.md"].Err == nil {
		t.Error("bad ref succeeded, want error")
	}
	if outcomes["codex://fractary/codex/docs/good1.md"].Err != nil {
		t.Errorf("good ref failed: %v", outcomes["codex://fractary/codex/docs/good1.md"].Err)
	}
	if got := outcomes["codex://fractary/codex/docs/good2.md"]; got.Err != nil || string(got.Result.Content) != "ok" {
		t.Errorf("good2 outcome = %+v", got)
	}
}

// conditionalProvider fails paths containing "bad".
type conditionalProvider struct{}

func (c *conditionalProvider) Name() string                { return "conditional" }
func (c *conditionalProvider) CanHandle(ref.Resolved) bool { return true }

func (c *conditionalProvider) Fetch(_ context.Context, r ref.Resolved, _ FetchOptions) (*Result, error) {
	if len(r.Path) >= 8 && r.Path[5:8] == "bad" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, r.URI)
	}
	return &Result{Content: []byte("ok"), Size: 2, Source: c.Name()}, nil
}

func (c *conditionalProvider) Exists(_ context.Context, r ref.Resolved, _ FetchOptions) bool {
	return true
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNetworkError, true},
		{ErrRateLimited, true},
		{ErrServerError, true},
		{ErrNotFound, false},
		{ErrAuthFailed, false},
		{ErrPermissionDenied, false},
		{fmt.Errorf("wrapped: %w", ErrNetworkError), true},
	}

	for _, tt := range tests {
		if got := IsRetryable(tt.err); got != tt.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
