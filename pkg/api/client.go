// Package api is the HTTP client for the remote configuration and
// telemetry service. It owns conditional-fetch headers, per-call
// timeouts, and retryable-error classification; retry policy itself
// lives with the callers (circuit breakers and the resilience machine).
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
)

// Doer abstracts the underlying HTTP client for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CacheHeaders carries the conditional-fetch markers from the last
// response.
type CacheHeaders struct {
	LastModified string `msgpack:"lm"`
	ETag         string `msgpack:"etag"`
}

// Timeouts bound each call class. Metadata probes stay short; payload
// fetches and telemetry submission get longer.
type Timeouts struct {
	Probe  time.Duration
	Fetch  time.Duration
	Submit time.Duration
}

// Config for the API client.
type Config struct {
	BaseURL     string
	ClientKey   string
	DimensionID string
	SDKVersion  string
	Timeouts    Timeouts
}

// Client talks to the remote service.
type Client struct {
	cfg    Config
	http   Doer
	logger *log.Logger
}

// NewClient builds a client with an HTTP/2-enabled pooled transport.
func NewClient(cfg Config, logger *log.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Printf("http2 transport setup failed, continuing on http/1.1: %v", err)
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport},
		logger: logger,
	}
}

// NewClientWithDoer creates a client over an injected Doer for tests.
func NewClientWithDoer(cfg Config, doer Doer, logger *log.Logger) *Client {
	return &Client{cfg: cfg, http: doer, logger: logger}
}

func (c *Client) endpoint(path string) string {
	u := c.cfg.BaseURL + path
	if path == "/sdk-settings/"+c.cfg.DimensionID {
		return u
	}
	return u + "?cfenc=" + url.QueryEscape(c.cfg.ClientKey)
}

func setConditionalHeaders(req *http.Request, since CacheHeaders) {
	if since.LastModified != "" {
		req.Header.Set("If-Modified-Since", since.LastModified)
	}
	if since.ETag != "" {
		req.Header.Set("If-None-Match", since.ETag)
	}
}

func headersFromResponse(resp *http.Response) CacheHeaders {
	return CacheHeaders{
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
	}
}

// do issues the request under a bounded timeout and classifies the
// outcome. Timeouts and transport errors come back as retryable network
// errors; 4xx responses are permanent.
func (c *Client) do(ctx context.Context, req *http.Request, timeout time.Duration) (*http.Response, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(ctx)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &Error{Kind: KindNetwork, Op: req.Method + " " + req.URL.Path, Err: err, retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &Error{Kind: KindNetwork, Op: req.Method + " " + req.URL.Path, Err: err, retryable: true}
	}
	return resp, body, nil
}

func statusError(op string, resp *http.Response, body []byte) error {
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, truncate(body, 200))
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return &Error{Kind: KindNetwork, Op: op, Err: err, retryable: retryable}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

func (c *Client) postJSON(ctx context.Context, path string, payload []byte, since *CacheHeaders, timeout time.Duration) (*http.Response, []byte, error) {
	req, err := http.NewRequest(http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, &Error{Kind: KindSerialization, Op: "POST " + path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if since != nil {
		setConditionalHeaders(req, *since)
	}
	return c.do(ctx, req, timeout)
}
