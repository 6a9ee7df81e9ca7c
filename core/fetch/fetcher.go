// Package fetch implements the Fetcher interface.
// It performs HTTP GET requests against an allow-listed set of origin
// hosts, so the proxy can never be used as an open fetch relay.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gaurav-prasanna/deckproxy/core"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "deckproxy/1.0 (https://github.com/gaurav-prasanna/deckproxy)"
)

// HTTPFetcher fetches remote resources via HTTP.
type HTTPFetcher struct {
	client  *http.Client
	allowed []string
}

// New creates an HTTPFetcher restricted to the given host patterns.
// A pattern either names a host exactly ("cdn.example.com") or, with a
// "*." prefix, any subdomain ("*.example.com" also matches the apex).
func New(allowedHosts []string) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{Timeout: defaultTimeout},
		allowed: allowedHosts,
	}
}

// NewWithTimeout is New with a caller-chosen request timeout.
func NewWithTimeout(allowedHosts []string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		allowed: allowedHosts,
	}
}

// Fetch retrieves the resource at the given URL with the body buffered
// in memory.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*core.FetchResult, error) {
	stream, err := f.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer stream.Body.Close()

	body, err := io.ReadAll(stream.Body)
	if err != nil {
		return nil, &core.UpstreamError{URL: rawURL, Err: fmt.Errorf("reading response body: %w", err)}
	}

	return &core.FetchResult{
		URL:         rawURL,
		StatusCode:  stream.StatusCode,
		ContentType: stream.ContentType,
		Body:        body,
	}, nil
}

// Open retrieves the resource at the given URL as a stream. The caller
// must close the returned body.
func (f *HTTPFetcher) Open(ctx context.Context, rawURL string) (*core.Stream, error) {
	if err := f.checkURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &core.UpstreamError{URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &core.UpstreamError{URL: rawURL, Status: resp.StatusCode}
	}

	return &core.Stream{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Length:      resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

// checkURL validates the URL and matches its host against the allow-list.
// This runs before any network call.
func (f *HTTPFetcher) checkURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("%w: %s", core.ErrInvalidURL, rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", core.ErrInvalidURL, parsed.Scheme)
	}

	host := parsed.Hostname()
	for _, pattern := range f.allowed {
		if hostMatches(host, pattern) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", core.ErrDisallowedHost, host)
}

// hostMatches checks a single allow-list pattern against a hostname.
func hostMatches(host, pattern string) bool {
	host = strings.ToLower(host)
	pattern = strings.ToLower(pattern)

	if apex, ok := strings.CutPrefix(pattern, "*."); ok {
		return host == apex || strings.HasSuffix(host, "."+apex)
	}
	return host == pattern
}
