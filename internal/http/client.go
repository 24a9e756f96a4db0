package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent is sent on every request unless overridden. Some hub
// mirrors reject clients without a browser-looking agent string.
const DefaultUserAgent = "Mozilla/5.0 (Linux; Android 10) AppleWebKit/537.36"

// StatusError reports a response outside the accepted status set. Callers
// treat it as an authoritative server answer, not a transient failure.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http: unexpected status %s", e.Status)
}

// IsSuccess reports whether code is a 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}

// Options configures the HTTP client.
type Options struct {
	// UserAgent is sent with every request.
	// Default: DefaultUserAgent
	UserAgent string

	// ProbeTimeout bounds metadata (HEAD) requests end to end.
	// Default: 10s
	ProbeTimeout time.Duration

	// ListTimeout bounds JSON API requests end to end.
	// Default: 30s
	ListTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for a stream's response
	// headers. The stream body itself has no overall deadline; large
	// transfers run as long as they need to.
	// Default: 60s
	ResponseHeaderTimeout time.Duration

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 8
	MaxIdleConnsPerHost int
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent:             DefaultUserAgent,
		ProbeTimeout:          10 * time.Second,
		ListTimeout:           30 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
}

// Client is an HTTP client for hub metadata and file streams.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options. Zero-valued
// fields in opts take their defaults.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = def.ProbeTimeout
	}
	if opts.ListTimeout == 0 {
		opts.ListTimeout = def.ListTimeout
	}
	if opts.ResponseHeaderTimeout == 0 {
		opts.ResponseHeaderTimeout = def.ResponseHeaderTimeout
	}
	if opts.MaxIdleConnsPerHost == 0 {
		opts.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		DisableCompression:    true, // on-disk byte counts must match remote offsets
	}

	return &Client{
		client: &http.Client{Transport: transport},
		opts:   opts,
	}
}

// ProbeSize asks the server for a file's size with a HEAD request,
// following redirects. It returns 0 on any failure: network error, timeout,
// non-success status, or a response without a usable Content-Length.
// Callers use 0 as "size unknown" and carry on.
func (c *Client) ProbeSize(ctx context.Context, url string) int64 {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodHead, url)
	if err != nil {
		return 0
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	resp.Body.Close()

	if !IsSuccess(resp.StatusCode) || resp.ContentLength < 0 {
		return 0
	}
	return resp.ContentLength
}

// GetJSON fetches url and decodes the response body into v. A non-success
// status returns a *StatusError; nothing is decoded from error responses.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ListTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Stream opens a GET request for a file body. When offset > 0 a Range
// header asks the server to start partway through. The response is
// returned regardless of status code: a resuming caller needs to see a
// 200 where it requested a 206 and decide what to do, so status
// interpretation stays with the caller. The caller owns resp.Body.
func (c *Client) Stream(ctx context.Context, url string, offset int64) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return resp, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	return req, nil
}
