package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fractary/codex/internal/gitx"
	"github.com/fractary/codex/internal/ref"
)

// DefaultRawHost serves raw file content for git-hosted repositories.
const DefaultRawHost = "https://raw.githubusercontent.com"

// GitHosted fetches raw file content over HTTPS from a git hosting
// service at a specific branch.
//
// Authentication cascade, in priority order: per-source token from config,
// environment token, the OS git credential helper, and finally
// unauthenticated access when FallbackToPublic is set. On a 401/403 with a
// token present, the fetch is retried once unauthenticated if fallback is
// allowed; otherwise ErrAuthFailed surfaces.
type GitHosted struct {
	// RawHost is the raw-content host; empty means DefaultRawHost.
	RawHost string

	// DefaultBranch is used when FetchOptions carries no branch.
	DefaultBranch string

	// Token is the resolved config/env token, empty when absent.
	Token string

	// FallbackToPublic permits unauthenticated retries.
	FallbackToPublic bool

	// Client is the HTTP client; nil means http.DefaultClient.
	Client *http.Client
}

// NewGitHosted creates a git-hosted provider.
func NewGitHosted(token, branch string, fallbackToPublic bool) *GitHosted {
	return &GitHosted{
		RawHost:          DefaultRawHost,
		DefaultBranch:    branch,
		Token:            token,
		FallbackToPublic: fallbackToPublic,
	}
}

// Name implements Provider.
func (g *GitHosted) Name() string { return "git-hosted" }

// CanHandle implements Provider. Any reference with a path can be tried
// against the hosting service.
func (g *GitHosted) CanHandle(r ref.Resolved) bool { return r.Path != "" }

// Fetch implements Provider.
func (g *GitHosted) Fetch(ctx context.Context, r ref.Resolved, opts FetchOptions) (*Result, error) {
	url := g.url(r, opts)
	token := g.token(ctx)

	result, err := g.get(ctx, url, token, opts)
	if err == nil {
		return result, nil
	}

	// Authenticated request refused: retry once without credentials when
	// public fallback is allowed.
	if token != "" && errors.Is(err, ErrAuthFailed) && g.FallbackToPublic {
		return g.get(ctx, url, "", opts)
	}
	return nil, err
}

// Exists implements Provider.
func (g *GitHosted) Exists(ctx context.Context, r ref.Resolved, opts FetchOptions) bool {
	reqCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, g.url(r, opts), nil)
	if err != nil {
		return false
	}
	if token := g.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (g *GitHosted) get(ctx context.Context, url, token string, opts FetchOptions) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= opts.retries(); attempt++ {
		result, err := g.getOnce(ctx, url, token, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !errors.Is(err, ErrNetworkError) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (g *GitHosted) getOnce(ctx context.Context, url, token string, opts FetchOptions) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrNetworkError, url, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp.StatusCode, url); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response from %s: %v", ErrNetworkError, url, err)
	}

	return &Result{
		Content:     content,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        int64(len(content)),
		Source:      g.Name(),
		Metadata: map[string]string{
			"url":           url,
			"authenticated": fmt.Sprintf("%t", token != ""),
		},
	}, nil
}

// token resolves credentials: the configured/env token first, then the OS
// git credential helper.
func (g *GitHosted) token(ctx context.Context) string {
	if g.Token != "" {
		return g.Token
	}
	return credentialHelperToken(ctx, g.host())
}

// credentialHelperToken asks the OS git credential helper for a password
// for the host. Failures mean no credentials, never an error.
func credentialHelperToken(ctx context.Context, host string) string {
	request := fmt.Sprintf("protocol=https\nhost=%s\n\n", host)
	out, err := gitx.RunInput(ctx, "", 5*time.Second, request, "credential", "fill")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		if v, ok := strings.CutPrefix(line, "password="); ok {
			return v
		}
	}
	return ""
}

func (g *GitHosted) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}

func (g *GitHosted) host() string {
	host := g.RawHost
	if host == "" {
		host = DefaultRawHost
	}
	return strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
}

func (g *GitHosted) url(r ref.Resolved, opts FetchOptions) string {
	host := g.RawHost
	if host == "" {
		host = DefaultRawHost
	}
	branch := opts.Branch
	if branch == "" {
		branch = g.DefaultBranch
	}
	if branch == "" {
		branch = "main"
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s", strings.TrimRight(host, "/"), r.Org, r.Project, branch, r.Path)
}
