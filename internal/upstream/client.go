// Package upstream is the HTTP transport shared by every explorer, RPC node
// and price oracle client. It applies the provider's rate limit, records
// metrics and turns non-success responses into categorized errors.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chain-ledger/internal/config"
	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/metrics"
	"github.com/chain-ledger/internal/ratelimit"
	"github.com/chain-ledger/internal/retry"
)

const maxErrorBody = 4096

// Client talks to one upstream provider
type Client struct {
	provider string
	baseURL  string
	http     *http.Client
	limiter  *ratelimit.Registry
	retry    *retry.RetryConfig
	headers  http.Header
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithLimiter shares a rate limit registry with other clients
func WithLimiter(r *ratelimit.Registry) Option {
	return func(c *Client) { c.limiter = r }
}

// WithRetry enables caller-side retries of retryable failures.
// MaxAttempts of 1 or less keeps the single-attempt behaviour.
func WithRetry(cfg config.RetryConfig) Option {
	return func(c *Client) {
		if cfg.MaxAttempts <= 1 {
			c.retry = nil
			return
		}
		c.retry = &retry.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.InitialDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   2.0,
			ShouldRetry:  errors.IsRetryable,
		}
	}
}

// WithHeader adds a header sent on every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.headers.Set(key, value)
		}
	}
}

// New creates a client for provider rooted at baseURL
func New(provider, baseURL string, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		headers:  make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.Unlimited()
	}
	return c
}

// Provider returns the provider name used for rate limits and metrics
func (c *Client) Provider() string {
	return c.provider
}

// BaseURL returns the root URL requests are resolved against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithBaseURL returns a copy of the client pointed at another root URL.
// The copy shares the rate limiter of the original.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = strings.TrimRight(baseURL, "/")
	clone.headers = c.headers.Clone()
	return &clone
}

// GetJSON issues a GET and decodes the JSON response into out
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, nil, out)
}

// PostJSON issues a POST with a JSON body and decodes the JSON response into out
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, nil, out)
}

// Do issues a request. header is merged over the client's default headers.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}, header http.Header, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.NewInternalError("failed to encode request body", err)
		}
	}

	attempt := func(ctx context.Context, n int) error {
		return c.do(ctx, method, path, query, payload, header, out)
	}
	if c.retry == nil {
		return attempt(ctx, 1)
	}
	return retry.Do(ctx, c.retry, attempt)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, header http.Header, out interface{}) error {
	if err := c.limiter.Wait(ctx, c.provider); err != nil {
		return err
	}

	endpoint := c.baseURL + path
	target := endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.NewInternalError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	for k, v := range header {
		req.Header[k] = v
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.provider, "error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewUpstreamTransportError(c.provider, endpoint, err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(c.provider, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.NewUpstreamError(c.provider, endpoint, resp.StatusCode, string(b))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewUpstreamTransportError(c.provider, endpoint, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.NewUpstreamEnvelopeError(c.provider, endpoint, fmt.Sprintf("invalid JSON response: %v", err))
	}
	return nil
}
