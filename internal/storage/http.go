package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fractary/codex/internal/ref"
)

// userAgent is sent with every outgoing request.
const userAgent = "fractary-codex-go"

// HTTP is a generic GET provider against a base URL. References map to
// {baseURL}/{org}/{project}/{path}.
type HTTP struct {
	// BaseURL is the URL prefix content is served under.
	BaseURL string

	// Headers are added to every request.
	Headers map[string]string

	// Client is the HTTP client; nil means http.DefaultClient.
	Client *http.Client
}

// NewHTTP creates a generic HTTP provider.
func NewHTTP(baseURL string, headers map[string]string) *HTTP {
	return &HTTP{BaseURL: strings.TrimRight(baseURL, "/"), Headers: headers}
}

// Name implements Provider.
func (h *HTTP) Name() string { return "http" }

// CanHandle implements Provider.
func (h *HTTP) CanHandle(ref.Resolved) bool { return h.BaseURL != "" }

// Fetch implements Provider. Transient network failures are retried up to
// the bounded count from opts before surfacing as ErrNetworkError.
func (h *HTTP) Fetch(ctx context.Context, r ref.Resolved, opts FetchOptions) (*Result, error) {
	url := h.url(r)

	var lastErr error
	for attempt := 0; attempt <= opts.retries(); attempt++ {
		result, err := h.get(ctx, url, r, opts)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Exists implements Provider.
func (h *HTTP) Exists(ctx context.Context, r ref.Resolved, opts FetchOptions) bool {
	reqCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, h.url(r), nil)
	if err != nil {
		return false
	}
	h.setHeaders(req, opts)

	resp, err := h.client().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (h *HTTP) get(ctx context.Context, url string, r ref.Resolved, opts FetchOptions) (*Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	h.setHeaders(req, opts)

	resp, err := h.client().Do(req)
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
		Source:      h.Name(),
		Metadata: map[string]string{
			"url":    url,
			"status": resp.Status,
		},
	}, nil
}

func (h *HTTP) setHeaders(req *http.Request, opts FetchOptions) {
	req.Header.Set("User-Agent", userAgent)
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (h *HTTP) url(r ref.Resolved) string {
	return h.BaseURL + "/" + r.Org + "/" + r.Project + "/" + r.Path
}

// mapStatus converts an HTTP status code to the package error taxonomy.
func mapStatus(status int, url string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d from %s", ErrAuthFailed, status, url)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, url)
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d from %s", ErrServerError, status, url)
	default:
		return fmt.Errorf("unexpected HTTP %d from %s", status, url)
	}
}
