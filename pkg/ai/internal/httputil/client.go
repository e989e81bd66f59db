// ABOUTME: Shared HTTP client with retry logic for pre-response failures
// ABOUTME: Exponential backoff with jitter on connection errors, 429 and 5xx; honors Retry-After

package httputil

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"

	pilog "github.com/mauromedda/pi-loop-go/internal/log"
)

const (
	defaultMaxAttempts = 4
	baseBackoffMs      = 500
	maxBackoffMs       = 10000
	errorBodyLimit     = 2048
)

// RetryPolicy bounds the attempts made for one request.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts including the first
	BaseDelay   time.Duration // Backoff before the second attempt; doubles afterwards
	MaxDelay    time.Duration // Cap on any single wait, including Retry-After
	Jitter      bool          // Randomize each wait within [d/2, d]
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   baseBackoffMs * time.Millisecond,
		MaxDelay:    maxBackoffMs * time.Millisecond,
		Jitter:      true,
	}
}

// withDefaults fills zero fields from DefaultRetryPolicy.
func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	return p
}

// backoff returns the wait before attempt+1 using exponential backoff.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter && d > 1 {
		half := d / 2
		d = half + rand.N(half+1)
	}
	return d
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string // Excerpt of the response body
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status warrants another attempt.
func (e *StatusError) Retryable() bool {
	return isRetryable(e.StatusCode)
}

// Client wraps an http.Client with retry logic and default headers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	retry      RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the retry policy. Zero fields keep their defaults.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p.withDefaults() }
}

// WithProxyURL routes all requests through the given proxy. An empty URL
// keeps the HTTP_PROXY / HTTPS_PROXY / NO_PROXY environment settings.
func WithProxyURL(proxyURL string) Option {
	return func(c *Client) {
		if t, ok := c.httpClient.Transport.(*http.Transport); ok {
			t.Proxy = proxyFunc(proxyURL)
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new HTTP client with the given base URL and default headers.
func NewClient(baseURL string, headers map[string]string, opts ...Option) *Client {
	if headers == nil {
		headers = make(map[string]string)
	}
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: proxyFunc(""),
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		baseURL: baseURL,
		headers: headers,
		retry:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// proxyFunc resolves proxies with the environment rules, with an explicit
// URL taking precedence for both schemes.
func proxyFunc(explicit string) func(*http.Request) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	if explicit != "" {
		cfg.HTTPProxy = explicit
		cfg.HTTPSProxy = explicit
	}
	resolve := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		return resolve(req.URL)
	}
}

// BaseURL returns the base URL configured on this client.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RetryPolicy returns the client's effective retry policy.
func (c *Client) RetryPolicy() RetryPolicy {
	return c.retry
}

// Do sends an HTTP request, retrying connection errors, 429 and 5xx with
// backoff. A 2xx response is returned for the caller to consume and close;
// any other status becomes a *StatusError. If body implements io.Seeker, it
// is rewound before each retry attempt.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	var used int
	return c.do(ctx, method, path, body, &used)
}

// do is Do drawing on a caller-held attempt counter, so a caller that
// re-issues the request spends the same MaxAttempts budget.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, used *int) (*http.Response, error) {
	seeker, _ := body.(io.Seeker)
	var lastErr error

	for tries := 0; *used < c.retry.MaxAttempts; tries++ {
		attempt := *used
		*used++
		if tries > 0 {
			wait := c.retry.backoff(attempt - 1)
			var se *StatusError
			if errors.As(lastErr, &se) && se.RetryAfter > 0 {
				wait = min(se.RetryAfter, c.retry.MaxDelay)
			}
			pilog.Debug("http: retry %d/%d %s %s in %s: %v", attempt+1, c.retry.MaxAttempts, method, path, wait, lastErr)
			if err := sleepWithContext(ctx, wait); err != nil {
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", err)
			}
		}
		if err := rewindBody(seeker, tries); err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}

		req, err := c.buildRequest(ctx, method, path, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request failed: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		se := newStatusError(resp)
		if !se.Retryable() {
			return nil, se
		}
		lastErr = se
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%s %s: retry budget of %d attempt(s) spent", method, path, c.retry.MaxAttempts)
	}
	return nil, lastErr
}

// NormalizeBaseURL trims trailing slashes and a bare "/v1" path, since the
// providers append versioned paths themselves. A nested "/api/v1" is kept.
func NormalizeBaseURL(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimRight(raw, "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Path != "/v1" {
		return trimmed
	}
	u.Path = ""
	return strings.TrimRight(u.String(), "/")
}

// newStatusError drains and closes a failed response into a StatusError.
func newStatusError(resp *http.Response) *StatusError {
	defer resp.Body.Close()
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(excerpt)),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// buildRequest creates an http.Request with default headers applied.
func (c *Client) buildRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s %s: %w", method, path, err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// rewindBody resets a seekable body to the beginning for retry attempts.
// It is a no-op on the first attempt (attempt == 0) or if seeker is nil.
func rewindBody(seeker io.Seeker, attempt int) error {
	if seeker == nil || attempt == 0 {
		return nil
	}
	_, err := seeker.Seek(0, io.SeekStart)
	return err
}

// isRetryable returns true for status codes that warrant a retry.
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// sleepWithContext waits for the given duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
