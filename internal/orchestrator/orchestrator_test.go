// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/convertease/internal/cloudmersive"
	"github.com/pdiddy/convertease/internal/proxy"
	"github.com/pdiddy/convertease/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func memFile(name string, content []byte) FileHandle {
	return FileHandle{
		Name: name,
		Size: int64(len(content)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(content)), nil },
	}
}

// unopenable fails the test if its content is ever read.
func unopenable(t *testing.T, name string, size int64) FileHandle {
	return FileHandle{
		Name: name,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			t.Errorf("%s opened before validation finished", name)
			return nil, errors.New("unexpected open")
		},
	}
}

// fakeClock is a Sleeper that advances virtual time instantly.
type fakeClock struct {
	mu      sync.Mutex
	elapsed time.Duration
	sleeps  int
}

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elapsed += d
	f.sleeps++
	return nil
}

func newClient(url string) *Client {
	return New(types.ClientConfig{ProxyURL: url, Poll: types.PollConfig{Interval: 2 * time.Second, MaxAttempts: 30}}, nil)
}

func TestSelectFiles_Valid(t *testing.T) {
	c := newClient("http://unused")
	req, err := c.SelectFiles([]FileHandle{
		memFile("a.docx", []byte("AAA")),
		memFile("b.docx", []byte("BBBB")),
	}, "", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "docx", req.SourceFormat)
	assert.Equal(t, "pdf", req.TargetFormat)
	assert.Equal(t, types.CategoryDocument, req.Category)
	require.Len(t, req.Files, 2)
	assert.Equal(t, []byte("BBBB"), req.Files[1].Content)
	assert.Equal(t, int64(7), req.TotalSize())
}

func TestSelectFiles_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		inputs func(t *testing.T) []FileHandle
		source string
		target string
		want   string
	}{
		{
			name:   "no files",
			inputs: func(t *testing.T) []FileHandle { return nil },
			target: "pdf",
			want:   types.MsgNoFileSelected,
		},
		{
			name: "too large",
			inputs: func(t *testing.T) []FileHandle {
				return []FileHandle{unopenable(t, "big.docx", types.DefaultMaxFileSize+1)}
			},
			target: "pdf",
			want:   "File size exceeds the maximum limit of 100MB",
		},
		{
			name:   "unsupported type",
			inputs: func(t *testing.T) []FileHandle { return []FileHandle{unopenable(t, "notes.xyz", 3)} },
			target: "pdf",
			want:   types.MsgFileNotSupported,
		},
		{
			name: "mixed categories",
			inputs: func(t *testing.T) []FileHandle {
				return []FileHandle{unopenable(t, "a.docx", 3), unopenable(t, "b.png", 3)}
			},
			target: "pdf",
			want:   types.MsgMixedCategories,
		},
		{
			name:   "same format",
			inputs: func(t *testing.T) []FileHandle { return []FileHandle{unopenable(t, "a.pdf", 3)} },
			target: "pdf",
			want:   types.MsgSameFormat,
		},
		{
			name:   "unmapped pair",
			inputs: func(t *testing.T) []FileHandle { return []FileHandle{unopenable(t, "clip.mp4", 3)} },
			target: "mp3",
			want:   "Conversion from mp4 to mp3 is not supported",
		},
		{
			name: "extension differs from source",
			inputs: func(t *testing.T) []FileHandle {
				return []FileHandle{unopenable(t, "a.png", 3), unopenable(t, "b.jpg", 3)}
			},
			source: "png",
			target: "jpg",
			want:   "b.jpg is not a png file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newClient("http://unused").SelectFiles(tt.inputs(t), tt.source, tt.target)
			var ve *types.ValidationError
			require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
			assert.Equal(t, tt.want, ve.Message)
		})
	}
}

func TestSelectFiles_ActualSizeChecked(t *testing.T) {
	c := New(types.ClientConfig{MaxFileSize: 4}, nil)
	h := memFile("a.docx", []byte("123456"))
	h.Size = 2
	_, err := c.SelectFiles([]FileHandle{h}, "", "pdf")
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "File size exceeds the maximum limit of 4 Bytes", ve.Message)
}

func TestOSFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, os.WriteFile(path, []byte("docx"), 0o644))

	h, err := OSFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report.docx", h.Name)
	assert.Equal(t, int64(4), h.Size)

	_, err = OSFile(filepath.Dir(path))
	assert.Error(t, err)
}

// TestSubmit_EndToEnd runs the client against the real proxy handler backed
// by a fake conversion API.
func TestSubmit_EndToEnd(t *testing.T) {
	var upstreamCalls int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&upstreamCalls, 1)
		assert.Equal(t, "/convert/docx/to/pdf", r.URL.Path)
		f, hdr, err := r.FormFile("inputFile")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		w.Write([]byte("PDF(" + hdr.Filename + ":" + string(data) + ")"))
	}))
	defer upstream.Close()

	conv := cloudmersive.New(types.UpstreamConfig{BaseURL: upstream.URL, APIKey: "k"})
	px := httptest.NewServer(proxy.New(nil, conv, types.ProxyConfig{}).Handler())
	defer px.Close()

	c := newClient(px.URL)
	req, err := c.SelectFiles([]FileHandle{
		memFile("a.docx", []byte("one")),
		memFile("b.docx", []byte("two")),
	}, "docx", "pdf")
	require.NoError(t, err)

	results, err := c.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.pdf", results[0].Filename)
	assert.Equal(t, []byte("PDF(a.docx:one)"), results[0].Content)
	assert.Equal(t, "application/pdf", results[0].ContentType)
	assert.Equal(t, "b.pdf", results[1].Filename)
	assert.Equal(t, []byte("PDF(b.docx:two)"), results[1].Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&upstreamCalls))
}

func TestSubmit_ProxyFailureIsRemoteError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	conv := cloudmersive.New(types.UpstreamConfig{BaseURL: upstream.URL, APIKey: "k"})
	px := httptest.NewServer(proxy.New(nil, conv, types.ProxyConfig{}).Handler())
	defer px.Close()

	c := newClient(px.URL)
	_, err := c.Submit(context.Background(), types.ConversionRequest{
		SourceFormat: "docx",
		TargetFormat: "pdf",
		Files:        []types.FileEntry{{Filename: "a.docx", Content: []byte("x")}},
	})
	var re *types.RemoteError
	require.True(t, errors.As(err, &re), "want RemoteError, got %v", err)
	assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
	assert.Equal(t, "Cloudmersive error: 503 Service Unavailable", re.Message)
}

func TestSubmit_UnreachableProxyIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	var events []TraceEvent
	c := newClient(url)
	c.SetTrace(func(ev TraceEvent) { events = append(events, ev) })
	_, err := c.Submit(context.Background(), types.ConversionRequest{
		SourceFormat: "docx",
		TargetFormat: "pdf",
		Files:        []types.FileEntry{{Filename: "a.docx", Content: []byte("x")}},
	})
	var ne *types.NetworkError
	require.True(t, errors.As(err, &ne), "want NetworkError, got %v", err)
	require.Len(t, events, 2)
	assert.Equal(t, "request", events[0].Stage)
	assert.Equal(t, "error", events[1].Stage)
	assert.Equal(t, "convert-direct", events[1].Action)
}

// jobProxy is a scripted proxy for the job flow. statuses is consumed one
// entry per status call; the last entry repeats.
type jobProxy struct {
	mu          sync.Mutex
	statuses    []types.SingleResponse
	statusCalls int
	actions     []string
}

func (p *jobProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req types.ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, req.Action)

	var resp types.SingleResponse
	switch req.Action {
	case types.ActionUpload:
		resp = types.SingleResponse{Success: true, TaskID: "task-" + req.Filename}
	case types.ActionConvert:
		resp = types.SingleResponse{Success: true, ConversionID: "conv-" + req.Filename, Status: "queued"}
	case types.ActionStatus:
		i := p.statusCalls
		if i >= len(p.statuses) {
			i = len(p.statuses) - 1
		}
		p.statusCalls++
		resp = p.statuses[i]
	case types.ActionDownload:
		resp = types.SingleResponse{
			Success:     true,
			Data:        types.EncodeContent([]byte("out:" + req.ConversionID)),
			Filename:    strings.TrimSuffix(req.Filename, filepath.Ext(req.Filename)) + "." + req.ToFormat,
			ContentType: "video/mp4",
		}
	}
	json.NewEncoder(w).Encode(resp)
}

func movRequest(names ...string) types.ConversionRequest {
	req := types.ConversionRequest{SourceFormat: "mov", TargetFormat: "mp4", Category: types.CategoryVideo}
	for _, n := range names {
		req.Files = append(req.Files, types.FileEntry{Filename: n, Content: []byte(n)})
	}
	return req
}

func TestSubmitJob_CompletesAfterPolling(t *testing.T) {
	jp := &jobProxy{statuses: []types.SingleResponse{
		{Success: true, Status: "processing", Progress: 10},
		{Success: true, Status: "processing", Progress: 60},
		{Success: true, Status: "completed", Progress: 100},
	}}
	px := httptest.NewServer(jp)
	defer px.Close()

	clock := &fakeClock{}
	c := newClient(px.URL)
	c.poller.Sleep = clock.Sleep
	var seen []int
	c.SetProgress(func(filename string, st types.JobStatus) {
		assert.Equal(t, "clip.mov", filename)
		seen = append(seen, st.Progress)
	})

	results, err := c.SubmitJob(context.Background(), movRequest("clip.mov"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "clip.mp4", results[0].Filename)
	assert.Equal(t, []byte("out:conv-clip.mov"), results[0].Content)
	assert.Equal(t, []int{10, 60, 100}, seen)
	assert.Equal(t, 4*time.Second, clock.elapsed)
	assert.Equal(t, []string{"upload", "convert", "status", "status", "status", "download"}, jp.actions)
}

func TestSubmitJob_TimesOutAfterSixtySeconds(t *testing.T) {
	jp := &jobProxy{statuses: []types.SingleResponse{{Success: true, Status: "processing", Progress: 50}}}
	px := httptest.NewServer(jp)
	defer px.Close()

	clock := &fakeClock{}
	c := newClient(px.URL)
	c.poller.Sleep = clock.Sleep

	_, err := c.SubmitJob(context.Background(), movRequest("clip.mov"))
	var te *types.TimeoutError
	require.True(t, errors.As(err, &te), "want TimeoutError, got %v", err)
	assert.Equal(t, 30, te.Attempts)
	assert.Equal(t, 60*time.Second, te.Elapsed)
	assert.Equal(t, 30, jp.statusCalls)
	assert.NotContains(t, jp.actions, types.ActionDownload)
}

func TestSubmitJob_FailedJob(t *testing.T) {
	jp := &jobProxy{statuses: []types.SingleResponse{
		{Success: true, Status: "processing"},
		{Success: true, Status: "failed", Error: "corrupt input"},
	}}
	px := httptest.NewServer(jp)
	defer px.Close()

	c := newClient(px.URL)
	c.poller.Sleep = (&fakeClock{}).Sleep

	_, err := c.SubmitJob(context.Background(), movRequest("a.mov", "b.mov"))
	var re *types.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "corrupt input", re.Message)
	assert.Contains(t, err.Error(), "a.mov")
	assert.Equal(t, 2, jp.statusCalls, "b.mov is never started")
}

func TestSubmitJob_ProcessesFilesInOrder(t *testing.T) {
	jp := &jobProxy{statuses: []types.SingleResponse{{Success: true, Status: "completed"}}}
	px := httptest.NewServer(jp)
	defer px.Close()

	c := newClient(px.URL)
	c.poller.Sleep = (&fakeClock{}).Sleep

	results, err := c.SubmitJob(context.Background(), movRequest("a.mov", "b.mov", "c.mov"))
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		assert.Equal(t, name, results[i].Filename)
	}
}

func TestWaitForJobOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		statuses []types.SingleResponse
		want     types.Outcome
		last     types.JobState
	}{
		{"completed", []types.SingleResponse{{Success: true, Status: "completed", Progress: 100}}, types.OutcomeSuccess, types.JobCompleted},
		{"failed", []types.SingleResponse{{Success: true, Status: "failed", Error: "bad"}}, types.OutcomeFailure, types.JobFailed},
		{"never finishes", []types.SingleResponse{{Success: true, Status: "queued"}}, types.OutcomeTimedOut, types.JobQueued},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			px := httptest.NewServer(&jobProxy{statuses: tt.statuses})
			defer px.Close()

			c := newClient(px.URL)
			c.poller.Sleep = (&fakeClock{}).Sleep
			last, outcome, err := c.WaitForJob(context.Background(), "conv-1", "clip.mov")
			assert.Equal(t, tt.want, outcome)
			assert.Equal(t, tt.last, last.State)
			assert.Equal(t, tt.want == types.OutcomeSuccess, err == nil)
		})
	}
}

func TestPollIsIdempotentAfterCompletion(t *testing.T) {
	jp := &jobProxy{statuses: []types.SingleResponse{{Success: true, Status: "completed", Progress: 100}}}
	px := httptest.NewServer(jp)
	defer px.Close()

	c := newClient(px.URL)
	first, err := c.Poll(context.Background(), "conv-1")
	require.NoError(t, err)
	second, err := c.Poll(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, types.JobStatus{ID: "conv-1", State: types.JobCompleted, Progress: 100}, first)
}

func TestSubmit_EmptyRequest(t *testing.T) {
	c := newClient("http://unused")
	_, err := c.Submit(context.Background(), types.ConversionRequest{})
	var ve *types.ValidationError
	assert.True(t, errors.As(err, &ve))
	_, err = c.SubmitJob(context.Background(), types.ConversionRequest{})
	assert.True(t, errors.As(err, &ve))
}

// countingProxy counts requests and fails the test on any of them.
func countingProxy(t *testing.T, calls *int32) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		http.Error(w, "unexpected call", http.StatusTeapot)
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestSubmit_SameFormatMakesNoCall(t *testing.T) {
	var calls int32
	c := newClient(countingProxy(t, &calls))

	_, err := c.Submit(context.Background(), types.ConversionRequest{
		SourceFormat: "pdf",
		TargetFormat: "pdf",
		Files:        []types.FileEntry{{Filename: "a.pdf", Content: []byte("x")}},
	})
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	assert.Equal(t, types.MsgSameFormat, ve.Message)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSubmitJob_UnsupportedPairMakesNoCall(t *testing.T) {
	var calls int32
	c := newClient(countingProxy(t, &calls))

	_, err := c.SubmitJob(context.Background(), types.ConversionRequest{
		SourceFormat: "mp4",
		TargetFormat: "mp3",
		Files:        []types.FileEntry{{Filename: "clip.mp4", Content: []byte("x")}},
	})
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSubmit_RechecksHandBuiltRequests(t *testing.T) {
	var calls int32
	c := New(types.ClientConfig{ProxyURL: countingProxy(t, &calls), MaxFileSize: 4}, nil)

	tests := []struct {
		name string
		file types.FileEntry
		want string
	}{
		{"declared size", types.FileEntry{Filename: "a.docx", DeclaredSize: 5}, "File size exceeds the maximum limit of 4 Bytes"},
		{"content size", types.FileEntry{Filename: "a.docx", Content: []byte("12345")}, "File size exceeds the maximum limit of 4 Bytes"},
		{"wrong extension", types.FileEntry{Filename: "a.txt", Content: []byte("x")}, "a.txt is not a docx file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := types.ConversionRequest{SourceFormat: "docx", TargetFormat: "pdf", Files: []types.FileEntry{tt.file}}
			for _, submit := range []func(context.Context, types.ConversionRequest) ([]types.ConversionResult, error){c.Submit, c.SubmitJob} {
				_, err := submit(context.Background(), req)
				var ve *types.ValidationError
				require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
				assert.Equal(t, tt.want, ve.Message)
			}
		})
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}
