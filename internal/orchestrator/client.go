// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator is the client side of the conversion pipeline. It
// validates a batch of files locally, submits it to the conversion proxy,
// and, for the job flow, drives the bounded status-polling loop.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/convertease/internal/formats"
	"github.com/pdiddy/convertease/internal/httputil"
	"github.com/pdiddy/convertease/pkg/types"
)

// convertPath is the proxy's conversion endpoint.
const convertPath = "/convert"

// maxResponseBytes caps a proxy response. A full batch at the default file
// limit, base64-expanded, fits comfortably.
var maxResponseBytes int64 = 4 << 30

// TraceEvent describes one HTTP exchange with the proxy. File contents are
// never included.
type TraceEvent struct {
	Stage      string
	Method     string
	URL        string
	Action     string
	StatusCode int
	DurationMs int64
	Error      string
}

// ProgressFunc receives every status observed while polling a job.
// Progress is advisory; it never affects the outcome.
type ProgressFunc func(filename string, status types.JobStatus)

// Client submits conversions to the proxy. Configure it with the Set
// methods before first use; it is then safe for concurrent use.
type Client struct {
	baseURL     string
	http        *http.Client
	userAgent   string
	table       *formats.Table
	maxFileSize int64
	poller      *httputil.Poller
	trace       func(TraceEvent)
	progress    ProgressFunc
}

// New builds a client from cfg. A nil table selects the built-in tables.
func New(cfg types.ClientConfig, table *formats.Table) *Client {
	if table == nil {
		table = formats.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	base := cfg.ProxyURL
	if base == "" {
		base = types.DefaultProxyURL
	}
	max := cfg.MaxFileSize
	if max <= 0 {
		max = types.DefaultMaxFileSize
	}
	return &Client{
		baseURL:     strings.TrimRight(base, "/"),
		http:        &http.Client{Timeout: timeout},
		userAgent:   cfg.UserAgent,
		table:       table,
		maxFileSize: max,
		poller:      httputil.NewPoller(cfg.Poll),
	}
}

// SetTrace installs a hook that observes every proxy exchange.
func (c *Client) SetTrace(fn func(TraceEvent)) {
	c.trace = fn
}

// SetProgress installs the polling progress callback.
func (c *Client) SetProgress(fn ProgressFunc) {
	c.progress = fn
}

func (c *Client) emitTrace(ev TraceEvent) {
	if c.trace != nil {
		c.trace(ev)
	}
}

// post sends body to the proxy and decodes a 2xx response into out.
// Transport failures become *types.NetworkError; non-2xx responses become
// *types.RemoteError carrying the proxy's error text.
func (c *Client) post(ctx context.Context, body types.ConvertRequest, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	url := c.baseURL + convertPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	action := body.Action
	if action == "" {
		action = "convert-direct"
	}
	c.emitTrace(TraceEvent{Stage: "request", Method: req.Method, URL: url, Action: action})
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.emitTrace(TraceEvent{
			Stage:      "error",
			Method:     req.Method,
			URL:        url,
			Action:     action,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      err.Error(),
		})
		return &types.NetworkError{Op: "POST " + convertPath, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &types.NetworkError{Op: "POST " + convertPath, Err: fmt.Errorf("reading response: %w", err)}
	}
	c.emitTrace(TraceEvent{
		Stage:      "response",
		Method:     req.Method,
		URL:        url,
		Action:     action,
		StatusCode: resp.StatusCode,
		DurationMs: time.Since(start).Milliseconds(),
	})

	if resp.StatusCode/100 != 2 {
		return &types.RemoteError{StatusCode: resp.StatusCode, Message: errorText(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &types.RemoteError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("invalid proxy response: %v", err)}
	}
	return nil
}

// errorText extracts the proxy's error message, falling back to the raw
// body.
func errorText(body []byte) string {
	var r types.SingleResponse
	if err := json.Unmarshal(body, &r); err == nil && r.Error != "" {
		return r.Error
	}
	return strings.TrimSpace(string(body))
}
