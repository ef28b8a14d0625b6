// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cloudmersive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/convertease/pkg/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc, mode types.BodyMode) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(types.UpstreamConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "test-agent"},
		BaseURL:    ts.URL,
		APIKey:     "secret-key",
		BodyMode:   mode,
	})
}

func TestConvert_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/convert/docx/to/pdf", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("Apikey"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))

		f, hdr, err := r.FormFile("inputFile")
		require.NoError(t, err)
		defer f.Close()
		got, _ := io.ReadAll(f)
		assert.Equal(t, "a.docx", hdr.Filename)
		assert.Equal(t, []byte("docx bytes"), got)

		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7"))
	}, types.BodyMultipart)

	res, err := c.Convert(context.Background(), "/convert/docx/to/pdf", "a.docx", []byte("docx bytes"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), res.Data)
	assert.Equal(t, "application/pdf", res.ContentType)
}

func TestConvert_JSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data, err := types.DecodeContent(body["FileBytes"])
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 1, 2, 255}, data)
		w.Write([]byte("out"))
	}, types.BodyJSON)

	res, err := c.Convert(context.Background(), "/convert/pdf/to/txt", "x.pdf", []byte{0, 1, 2, 255})
	require.NoError(t, err)
	assert.Equal(t, []byte("out"), res.Data)
	assert.Equal(t, "application/octet-stream", res.ContentType)
}

func TestConvert_UpstreamErrorIsRemoteError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	}, types.BodyMultipart)

	_, err := c.Convert(context.Background(), "/convert/docx/to/pdf", "a.docx", []byte("x"))
	var re *types.RemoteError
	require.True(t, errors.As(err, &re), "want RemoteError, got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)
	assert.Equal(t, "Service Unavailable", re.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "no retry")
}

func TestConvert_UnauthorizedIsConfigurationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, types.BodyMultipart)

	_, err := c.Convert(context.Background(), "/convert/docx/to/pdf", "a.docx", nil)
	var ce *types.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.NotContains(t, ce.Error(), "secret-key")
}

func TestConvert_TransportFailureIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(types.UpstreamConfig{BaseURL: url, APIKey: "k"})
	_, err := c.Convert(context.Background(), "/convert/docx/to/pdf", "a.docx", nil)
	var ne *types.NetworkError
	require.True(t, errors.As(err, &ne), "want NetworkError, got %v", err)
	assert.Equal(t, "POST /convert/docx/to/pdf", ne.Op)
}

func TestCheckCredentials(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "API key not configured"},
		{"   ", "API key not configured"},
		{"abc def", "API key is malformed"},
		{"abc", ""},
	}
	for _, tt := range tests {
		err := New(types.UpstreamConfig{APIKey: tt.key}).CheckCredentials()
		if tt.want == "" {
			assert.NoError(t, err)
			continue
		}
		var ce *types.ConfigurationError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, tt.want, ce.Message)
	}
}

func TestConvert_MissingKeyMakesNoRequest(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	c := New(types.UpstreamConfig{BaseURL: ts.URL})
	_, err := c.Convert(context.Background(), "/convert/docx/to/pdf", "a.docx", []byte("x"))
	var ce *types.ConfigurationError
	assert.True(t, errors.As(err, &ce))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestJobLifecycle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/video/convert/mov/to/mp4/async", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"jobId":"job-1","status":"pending"}`))
	})
	mux.HandleFunc("/convert/jobs/job-1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jobId":"job-1","status":"done","progress":40}`))
	})
	mux.HandleFunc("/convert/jobs/job-1/result", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4"))
	})
	c := newTestClient(t, mux.ServeHTTP, types.BodyMultipart)
	ctx := context.Background()

	st, err := c.StartJob(ctx, "/video/convert/mov/to/mp4", "clip.mov", []byte("mov"))
	require.NoError(t, err)
	assert.Equal(t, types.JobStatus{ID: "job-1", State: types.JobQueued}, st)

	st, err = c.JobStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, st.State)
	assert.Equal(t, 100, st.Progress)

	res, err := c.JobResult(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), res.Data)
	assert.Equal(t, "video/mp4", res.ContentType)
}

func TestJobIDStaysInOnePathSegment(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		paths = append(paths, r.URL.EscapedPath())
		w.Write([]byte(`{"jobId":"x","status":"processing"}`))
	}, types.BodyMultipart)
	ctx := context.Background()

	_, err := c.JobStatus(ctx, "../../validate/account?x=")
	require.NoError(t, err)
	_, err = c.JobResult(ctx, "abc/result")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/convert/jobs/..%2F..%2Fvalidate%2Faccount%3Fx=",
		"/convert/jobs/abc%2Fresult/result",
	}, paths)

	for _, id := range []string{"", ".", ".."} {
		_, err := c.JobStatus(ctx, id)
		var ve *types.ValidationError
		assert.True(t, errors.As(err, &ve), "id %q", id)
	}
	assert.Len(t, paths, 2)
}

func TestStartJob_MissingJobID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"queued"}`))
	}, types.BodyMultipart)
	_, err := c.StartJob(context.Background(), "/convert/docx/to/pdf", "a.docx", nil)
	var re *types.RemoteError
	assert.True(t, errors.As(err, &re))
}

func TestParseState(t *testing.T) {
	tests := map[string]types.JobState{
		"queued":     types.JobQueued,
		"Processing": types.JobProcessing,
		"running":    types.JobProcessing,
		"completed":  types.JobCompleted,
		"succeeded":  types.JobCompleted,
		"FAILED":     types.JobFailed,
		"cancelled":  types.JobFailed,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseState(in), in)
	}
}

func TestRateLimiterPacesCalls(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	c := New(types.UpstreamConfig{BaseURL: ts.URL, APIKey: "k", RequestsPerSecond: 1, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := c.Convert(ctx, "/convert/docx/to/pdf", "a.docx", nil)
	require.NoError(t, err)
	_, err = c.Convert(ctx, "/convert/docx/to/pdf", "a.docx", nil)
	assert.Error(t, err, "second call should wait past the deadline")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
