// Package rpc provides a minimal JSON-RPC 2.0 client over HTTP.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// ErrRPCResponse indicates the server replied with something that is not JSON-RPC.
var ErrRPCResponse = &anchorerr.AnchorError{
	Code:     "RPC_INVALID_RESPONSE",
	Message:  "invalid RPC response",
	ExitCode: anchorerr.ExitUnavailable,
}

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// Observer is called once per HTTP round trip.
type Observer func(method string, elapsed time.Duration, err error)

// Client is a JSON-RPC 2.0 client bound to one endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    Limiter
	retry      *RetryConfig
	observer   Observer
	idCounter  atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter throttles calls through l, keyed by the endpoint URL.
func WithRateLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetry retries transport failures and rate limiting using cfg.
func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) { c.retry = &cfg }
}

// WithObserver registers a callback invoked after every round trip.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a client for url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string {
	return c.url
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      uint64 `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is an error object returned by the remote end.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Call invokes method with params and decodes the result into result.
// A nil result discards the payload.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	raw, err := c.CallRaw(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: %s returned no result", ErrRPCResponse, method)
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%w: decoding %s result: %w", ErrRPCResponse, method, err)
	}
	return nil
}

// CallRaw invokes method and returns the undecoded result.
func (c *Client) CallRaw(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.retry == nil {
		return c.roundTrip(ctx, method, params)
	}
	return Retry(ctx, *c.retry, func() (json.RawMessage, error) {
		return c.roundTrip(ctx, method, params)
	})
}

func (c *Client) roundTrip(ctx context.Context, method string, params any) (result json.RawMessage, err error) {
	if c.limiter != nil {
		if err = c.limiter.Wait(ctx, c.url); err != nil {
			return nil, err
		}
	}

	if c.observer != nil {
		start := time.Now()
		defer func() { c.observer(method, time.Since(start), err) }()
	}

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.idCounter.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapRetryable(fmt.Errorf("sending HTTP request: %w", err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitedError{After: parseRetryAfter(httpResp.Header.Get("Retry-After"))}
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, WrapRetryable(fmt.Errorf("HTTP status %d", httpResp.StatusCode))
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, WrapRetryable(fmt.Errorf("reading response body: %w", err))
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: HTTP status %d: %w", ErrRPCResponse, httpResp.StatusCode, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp.Result, nil
}

// parseRetryAfter reads a Retry-After header given as seconds or an HTTP date.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}
