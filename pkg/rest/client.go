// Package rest holds the JSON-over-HTTP plumbing shared by the energy and
// water service clients.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"irriflow.dev/dashboard/pkg/metrics"
)

// Client issues JSON requests against one service base URL.
// It never retries and applies no deadline beyond what the caller's context
// and the underlying http.Client carry.
type Client struct {
	service string
	baseURL string
	http    *http.Client
	metrics *metrics.ClientMetrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets an overall per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			clone := *c.http
			clone.Timeout = d
			c.http = &clone
		}
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient returns a client for the service rooted at baseURL.
// The service name only labels metrics and errors.
func NewClient(service, baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%s: empty base url", service)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: parse base url: %w", service, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: base url must be http or https, got %q", service, baseURL)
	}

	c := &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Service returns the service name the client was built for.
func (c *Client) Service() string {
	return c.service
}

// Get decodes the JSON body of GET path into out.
func (c *Client) Get(ctx context.Context, op, path string, out any) error {
	return c.Do(ctx, op, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the response into out, which may be nil.
func (c *Client) Post(ctx context.Context, op, path string, body, out any) error {
	return c.Do(ctx, op, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the response into out, which may be nil.
func (c *Client) Put(ctx context.Context, op, path string, body, out any) error {
	return c.Do(ctx, op, http.MethodPut, path, body, out)
}

// Delete issues DELETE path and discards the response body.
func (c *Client) Delete(ctx context.Context, op, path string) error {
	return c.Do(ctx, op, http.MethodDelete, path, nil, nil)
}

// Do performs one request. op names the operation for metrics.
// A nil body sends no payload; a nil out skips decoding, and so does an
// empty response body.
func (c *Client) Do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.Observe(c.service, op, time.Since(start), err)
	}()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode %s body: %w", c.service, op, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%s: build %s request: %w", c.service, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s %s: %w", c.service, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Service:    c.service,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%s: decode %s response: %w", c.service, op, err)
	}
	return nil
}
