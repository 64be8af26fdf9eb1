// Package httpclient is the C4 HTTP Client: a shared, timeout-bounded
// client the dispatch actor uses to issue the outbound request a
// RequestTask describes (spec.md §4.4). Grounded on the shared
// *http.Client/*http.Transport pattern the teacher's web_fetch tool uses
// for outbound fetches, narrowed to the single request/response shape
// dispatch needs instead of content extraction.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/nlbx/reqsched/internal/apperr"
)

const (
	// DefaultTimeout is applied when New or SetTimeout is given a
	// non-positive timeout (spec.md §4.4).
	DefaultTimeout = 60 * time.Second
	maxResponseBytes = 1 << 20 // 1 MiB, response bodies are not persisted beyond this
)

// Client issues the HTTP call a dispatch unit requires. The connection
// pool (transport) is built once and never replaced; SetTimeout swaps
// only the *http.Client wrapping it, so a config hot-reload can change
// the per-request timeout without re-parenting the pool (spec.md §9).
type Client struct {
	transport *http.Transport
	client    atomic.Pointer[http.Client]
}

// New builds a Client with timeout as its per-request deadline. Pass 0 to
// use DefaultTimeout.
func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	}
	c := &Client{transport: transport}
	c.SetTimeout(timeout)
	return c
}

// SetTimeout replaces the per-request timeout. Pass 0 to use
// DefaultTimeout. Safe to call concurrently with Request.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c.client.Store(&http.Client{Timeout: timeout, Transport: c.transport})
}

// Response is the normalized outcome of Request: status code and a
// size-capped body, never an error for ordinary non-2xx HTTP responses —
// only transport-level failures (DNS, connection refused, timeout) surface
// as an *apperr.Error of KindTransport (spec.md §4.4, §7).
type Response struct {
	StatusCode int
	Body       []byte
}

// bodyMethods are the only methods a body is ever attached to (spec.md
// §9); GET, HEAD, and OPTIONS never carry one even if the task configured
// one, and the check happens here, at the transport boundary, not earlier
// in admission or dispatch.
var bodyMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
	http.MethodDelete: true,
}

// Request performs method against rawURL with the given headers and body.
func (c *Client) Request(ctx context.Context, method, rawURL string, header map[string]string, body json.RawMessage) (*Response, error) {
	var reader io.Reader
	if bodyMethods[method] && len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, apperr.Transport("build request", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if reader != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Load().Do(req)
	if err != nil {
		return nil, apperr.Transport("request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperr.Transport("read response", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}
