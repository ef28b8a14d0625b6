// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cloudmersive calls the external conversion API. It performs one
// HTTP request per call and never retries; callers own any retry policy.
package cloudmersive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/convertease/internal/logger"
	"github.com/pdiddy/convertease/pkg/types"
)

// maxResponseBytes caps how much of a converted file is read into memory.
// Declared as a var so tests can lower it.
var maxResponseBytes int64 = 512 << 20

// Result is a converted file as returned by the API.
type Result struct {
	Data        []byte
	ContentType string
}

// Client talks to the conversion API. It is safe for concurrent use.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	userAgent string
	bodyMode  types.BodyMode
	limiter   *rate.Limiter
}

// New builds a client from cfg. A missing API key is not an error here:
// the proxy must still start and answer every conversion with a
// configuration error, which CheckCredentials reports.
func New(cfg types.UpstreamConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	base := cfg.BaseURL
	if base == "" {
		base = types.DefaultUpstreamURL
	}
	mode := cfg.BodyMode
	if mode == "" {
		mode = types.BodyMultipart
	}

	c := &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(base, "/"),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		userAgent: cfg.UserAgent,
		bodyMode:  mode,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// CheckCredentials returns a *types.ConfigurationError when no usable API
// key is configured.
func (c *Client) CheckCredentials() error {
	if c.apiKey == "" {
		return &types.ConfigurationError{Message: "API key not configured"}
	}
	if strings.ContainsAny(c.apiKey, " \t\r\n") {
		return &types.ConfigurationError{Message: "API key is malformed"}
	}
	return nil
}

// Convert posts data to route and returns the converted bytes.
func (c *Client) Convert(ctx context.Context, route, filename string, data []byte) (Result, error) {
	req, err := c.uploadRequest(ctx, route, filename, data)
	if err != nil {
		return Result{}, err
	}
	body, header, err := c.do(req)
	if err != nil {
		return Result{}, err
	}
	ct := header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return Result{Data: body, ContentType: ct}, nil
}

// jobResponse is the provider's asynchronous job record.
type jobResponse struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error"`
}

func (j jobResponse) status() types.JobStatus {
	st := types.JobStatus{
		ID:       j.JobID,
		State:    parseState(j.Status),
		Progress: clampProgress(j.Progress),
		Error:    j.Error,
	}
	if st.State == types.JobCompleted {
		st.Progress = 100
	}
	return st
}

// StartJob submits data for asynchronous conversion on route.
func (c *Client) StartJob(ctx context.Context, route, filename string, data []byte) (types.JobStatus, error) {
	req, err := c.uploadRequest(ctx, route+"/async", filename, data)
	if err != nil {
		return types.JobStatus{}, err
	}
	var out jobResponse
	if err := c.doJSON(req, &out); err != nil {
		return types.JobStatus{}, err
	}
	if out.JobID == "" {
		return types.JobStatus{}, &types.RemoteError{StatusCode: http.StatusBadGateway, Message: "conversion service returned no job id"}
	}
	return out.status(), nil
}

// JobStatus fetches the current state of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (types.JobStatus, error) {
	path, err := jobPath(jobID)
	if err != nil {
		return types.JobStatus{}, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return types.JobStatus{}, err
	}
	var out jobResponse
	if err := c.doJSON(req, &out); err != nil {
		return types.JobStatus{}, err
	}
	if out.JobID == "" {
		out.JobID = jobID
	}
	return out.status(), nil
}

// JobResult downloads the output of a completed job.
func (c *Client) JobResult(ctx context.Context, jobID string) (Result, error) {
	path, err := jobPath(jobID)
	if err != nil {
		return Result{}, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, path+"/result", nil)
	if err != nil {
		return Result{}, err
	}
	body, header, err := c.do(req)
	if err != nil {
		return Result{}, err
	}
	return Result{Data: body, ContentType: header.Get("Content-Type")}, nil
}

// jobPath places jobID in a single escaped path segment.
func jobPath(jobID string) (string, error) {
	switch jobID {
	case "", ".", "..":
		return "", types.Validationf("invalid job id %q", jobID)
	}
	return "/convert/jobs/" + url.PathEscape(jobID), nil
}

func (c *Client) uploadRequest(ctx context.Context, path, filename string, data []byte) (*http.Request, error) {
	var (
		body        bytes.Buffer
		contentType string
	)
	switch c.bodyMode {
	case types.BodyJSON:
		if err := json.NewEncoder(&body).Encode(map[string]string{"FileBytes": types.EncodeContent(data)}); err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		contentType = "application/json"
	default:
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile("inputFile", filename)
		if err != nil {
			return nil, fmt.Errorf("creating form file: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, fmt.Errorf("writing form file: %w", err)
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("closing form: %w", err)
		}
		contentType = mw.FormDataContentType()
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if err := c.CheckCredentials(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Apikey", c.apiKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// do sends req and returns the body of a 2xx response. Transport failures
// become *types.NetworkError; other statuses become *types.RemoteError, or
// *types.ConfigurationError when the key is rejected.
func (c *Client) do(req *http.Request) ([]byte, http.Header, error) {
	op := req.Method + " " + req.URL.Path
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, nil, err
		}
	}

	start := time.Now()
	logger.Debug("upstream request: %s", op)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &types.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, &types.NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}
	logger.Debug("upstream response: %s -> %d (%d bytes, %v)", op, resp.StatusCode, len(body), time.Since(start).Round(time.Millisecond))

	switch {
	case resp.StatusCode/100 == 2:
		return body, resp.Header, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, nil, &types.ConfigurationError{Message: "API key rejected by conversion service"}
	default:
		return nil, nil, &types.RemoteError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}
}

func (c *Client) doJSON(req *http.Request, out any) error {
	body, _, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &types.RemoteError{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("parsing job response: %v", err)}
	}
	return nil
}

func parseState(s string) types.JobState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "pending", "waiting":
		return types.JobQueued
	case "completed", "complete", "succeeded", "finished", "done":
		return types.JobCompleted
	case "failed", "error", "cancelled":
		return types.JobFailed
	default:
		return types.JobProcessing
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
