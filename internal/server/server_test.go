package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/portfolio-pipeline/internal/db"
	"github.com/jonathan/portfolio-pipeline/internal/metrics"
	"github.com/jonathan/portfolio-pipeline/internal/pipeline"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

type fakeProcessor struct {
	mu       sync.Mutex
	requests []pipeline.Request
	result   *pipeline.Result
	events   []pipeline.Progress
}

func (f *fakeProcessor) Process(_ context.Context, req pipeline.Request) *pipeline.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if req.Progress != nil {
		for _, e := range f.events {
			req.Progress.OnEvent(e)
		}
	}
	return f.result
}

func (f *fakeProcessor) last(t *testing.T) pipeline.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

type fakeStore struct {
	submission *db.Submission
	components []db.Component
	err        error
}

func (f *fakeStore) GetSubmission(_ context.Context, _ uuid.UUID) (*db.Submission, error) {
	return f.submission, f.err
}

func (f *fakeStore) ListComponents(_ context.Context, _ uuid.UUID) ([]db.Component, error) {
	return f.components, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func successResult() *pipeline.Result {
	return &pipeline.Result{
		Success:      true,
		SubmissionID: "sub-1",
		Profile:      &types.CandidateProfile{ID: "p-1", Name: "Ada Lovelace", Category: types.CategoryTechnical},
		Components: []types.ComponentConfig{
			{Type: types.ComponentHeroTerminal, Order: 0, Theme: "neon_blue", Props: map[string]any{"name": "Ada Lovelace"}},
		},
		Theme:          types.ThemeNeonBlue,
		ProcessingTime: 1500 * time.Millisecond,
		Warnings:       []string{},
	}
}

func newTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	if cfg.Processor == nil {
		cfg.Processor = &fakeProcessor{result: successResult()}
	}
	s, err := New(cfg)
	require.NoError(t, err)
	return s.Handler()
}

func multipartRequest(t *testing.T, path, filename string, content []byte, options string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	if options != "" {
		require.NoError(t, mw.WriteField("options", options))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "203.0.113.7:5555"
	return req
}

func TestNew_RequiresProcessor(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHandleProcess_Success(t *testing.T) {
	proc := &fakeProcessor{result: successResult()}
	h := newTestServer(t, Config{Processor: proc})

	req := multipartRequest(t, "/portfolio", "resume.txt", []byte("Ada Lovelace\nEngineer"), `{"theme_preference":"cyber_pink"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "sub-1", resp.SubmissionID)
	assert.Equal(t, int64(1500), resp.ProcessingTimeMs)
	assert.Equal(t, types.ThemeNeonBlue, resp.Theme)
	require.Len(t, resp.Components, 1)
	assert.Equal(t, "Ada Lovelace", resp.CandidateProfile.Name)

	got := proc.last(t)
	assert.Equal(t, "resume.txt", got.Filename)
	assert.Equal(t, []byte("Ada Lovelace\nEngineer"), got.Content)
	assert.Equal(t, "203.0.113.7", got.ClientID)
	assert.Equal(t, "cyber_pink", got.Options["theme_preference"])
	assert.Nil(t, got.Progress)
}

func TestHandleProcess_MalformedOptionsIgnored(t *testing.T) {
	proc := &fakeProcessor{result: successResult()}
	h := newTestServer(t, Config{Processor: proc})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/portfolio", "resume.txt", []byte("text"), "{not json"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, proc.last(t).Options)
}

func TestHandleProcess_ForwardedClient(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		want    string
	}{
		{"header ignored without trusted proxies", nil, "203.0.113.7"},
		{"trusted proxy chain", []string{"203.0.113.0/24", "10.0.0.0/8"}, "198.51.100.1"},
		{"untrusted inner hop stops the walk", []string{"203.0.113.7"}, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{result: successResult()}
			h := newTestServer(t, Config{Processor: proc, TrustedProxies: tt.trusted})

			req := multipartRequest(t, "/portfolio", "resume.txt", []byte("text"), "")
			req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, proc.last(t).ClientID)
		})
	}
}

func TestNew_RejectsInvalidTrustedProxy(t *testing.T) {
	_, err := New(Config{Processor: &fakeProcessor{}, TrustedProxies: []string{"10.0.0.0/33"}})
	assert.Error(t, err)
	_, err = New(Config{Processor: &fakeProcessor{}, TrustedProxies: []string{"proxy.internal"}})
	assert.Error(t, err)
}

func TestHandleProcess_RequestErrors(t *testing.T) {
	tests := []struct {
		name       string
		build      func(t *testing.T) *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name: "missing file",
			build: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/portfolio", "", nil, `{"theme_preference":"auto"}`)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeMissingFile,
		},
		{
			name: "json body",
			build: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/portfolio", strings.NewReader(`{}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name: "scanner user agent",
			build: func(t *testing.T) *http.Request {
				req := multipartRequest(t, "/portfolio", "resume.txt", []byte("text"), "")
				req.Header.Set("User-Agent", "sqlmap/1.7")
				return req
			},
			wantStatus: http.StatusForbidden,
			wantCode:   CodeSuspiciousClient,
		},
		{
			name: "body too large",
			build: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/portfolio", "resume.txt", bytes.Repeat([]byte("a"), 4096), "")
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{result: successResult()}
			h := newTestServer(t, Config{Processor: proc, MaxUploadBytes: 1024})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.build(t))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.ErrorCode)
			assert.Empty(t, proc.requests)
		})
	}
}

func TestHandleProcess_PipelineFailures(t *testing.T) {
	tests := []struct {
		name           string
		result         *pipeline.Result
		wantStatus     int
		wantRetryAfter string
	}{
		{
			name:           "rate limited",
			result:         &pipeline.Result{ErrorCode: pipeline.CodeRateLimited, Error: "Rate limit exceeded", RetryAfter: 1500 * time.Millisecond},
			wantStatus:     http.StatusTooManyRequests,
			wantRetryAfter: "2",
		},
		{
			name:       "duplicate",
			result:     &pipeline.Result{ErrorCode: "DUPLICATE_SUBMISSION", Error: "Duplicate submission detected"},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unsupported format",
			result:     &pipeline.Result{ErrorCode: "UNSUPPORTED_FORMAT", Error: "Unsupported file format"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "processing error",
			result:     &pipeline.Result{ErrorCode: pipeline.CodeProcessingError, Error: "boom"},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, Config{Processor: &fakeProcessor{result: tt.result}})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, multipartRequest(t, "/portfolio", "resume.txt", []byte("text"), ""))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantRetryAfter, rec.Header().Get("Retry-After"))
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.result.ErrorCode, resp.ErrorCode)
			assert.Equal(t, tt.result.Error, resp.Error)
		})
	}
}

type sseEvent struct {
	name string
	data string
}

func readSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	seq := 0
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id: "):
			seq++
			assert.Equal(t, fmt.Sprintf("id: %d", seq), line)
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.name != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestHandleProcessStream_Success(t *testing.T) {
	proc := &fakeProcessor{
		result: successResult(),
		events: []pipeline.Progress{
			{SubmissionID: "sub-1", Stage: pipeline.StageValidation, Percent: 5, Message: "Validating file"},
			{SubmissionID: "sub-1", Stage: pipeline.StageExtraction, Percent: 20, Message: "Extracting text"},
		},
	}
	h := newTestServer(t, Config{Processor: proc})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/portfolio/stream", "resume.txt", []byte("text"), ""))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := readSSE(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "progress", events[0].name)
	assert.Equal(t, "progress", events[1].name)
	assert.Equal(t, "complete", events[2].name)

	var p pipeline.Progress
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &p))
	assert.Equal(t, pipeline.StageExtraction, p.Stage)
	assert.Equal(t, 20, p.Percent)

	var done ProcessResponse
	require.NoError(t, json.Unmarshal([]byte(events[2].data), &done))
	assert.Equal(t, "sub-1", done.SubmissionID)
}

func TestHandleProcessStream_Failure(t *testing.T) {
	proc := &fakeProcessor{result: &pipeline.Result{ErrorCode: pipeline.CodeRateLimited, Error: "Rate limit exceeded", RetryAfter: 3 * time.Second}}
	h := newTestServer(t, Config{Processor: proc})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "/portfolio/stream", "resume.txt", []byte("text"), ""))

	events := readSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(events[0].data), &resp))
	assert.Equal(t, pipeline.CodeRateLimited, resp.ErrorCode)
	assert.Equal(t, 3, resp.RetryAfter)
}

func TestHandleGetSubmission(t *testing.T) {
	id := uuid.New()

	t.Run("not configured", func(t *testing.T) {
		h := newTestServer(t, Config{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+id.String(), nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		h := newTestServer(t, Config{Submissions: &fakeStore{}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found", func(t *testing.T) {
		h := newTestServer(t, Config{Submissions: &fakeStore{}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+id.String(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store errors", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			debug      bool
			wantStatus int
			wantCode   string
		}{
			{"unreachable database", errors.New("connection reset by peer"), false, http.StatusServiceUnavailable, "TRANSIENT"},
			{"query failure", errors.New("relation \"submissions\" does not exist"), false, http.StatusInternalServerError, "UNKNOWN"},
			{"details in debug mode", errors.New("relation \"submissions\" does not exist"), true, http.StatusInternalServerError, "UNKNOWN"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				level := slog.LevelInfo
				if tt.debug {
					level = slog.LevelDebug
				}
				logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level}))
				h := newTestServer(t, Config{Submissions: &fakeStore{err: tt.err}, Logger: logger})

				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+id.String(), nil))
				require.Equal(t, tt.wantStatus, rec.Code)

				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.Equal(t, tt.wantCode, resp.ErrorCode)
				assert.Equal(t, "get_submission", resp.Operation)
				assert.NotContains(t, resp.Error, "relation", "raw errors stay out of the message")
				if tt.debug {
					require.NotNil(t, resp.Details)
					assert.Equal(t, tt.err.Error(), resp.Details.Message)
				} else {
					assert.Nil(t, resp.Details)
				}
			})
		}
	})

	t.Run("found", func(t *testing.T) {
		store := &fakeStore{
			submission: &db.Submission{ID: id, Filename: "resume.pdf", Status: db.StatusCompleted},
			components: []db.Component{{ID: uuid.New(), SubmissionID: id, Position: 0, Type: "tool_hero_prism", Props: json.RawMessage(`{}`)}},
		}
		h := newTestServer(t, Config{Submissions: store})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submissions/"+id.String(), nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, id.String(), body["id"])
		assert.Equal(t, db.StatusCompleted, body["status"])
		assert.Len(t, body["components"], 1)
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("no dependencies", func(t *testing.T) {
		h := newTestServer(t, Config{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("degraded", func(t *testing.T) {
		h := newTestServer(t, Config{Pingers: map[string]Pinger{
			"postgres": fakePinger{},
			"redis":    fakePinger{err: errors.New("dial tcp: refused")},
		}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"degraded","postgres":"ok","redis":"unavailable"}`, rec.Body.String())
	})
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Config{})
	req := httptest.NewRequest(http.MethodOptions, "/portfolio", nil)
	req.Header.Set("Origin", "https://portfolio.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Less(t, rec.Code, 300)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := newTestServer(t, Config{Metrics: m})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestHTTPStatus(t *testing.T) {
	tests := map[string]int{
		"":                           http.StatusOK,
		pipeline.CodeRateLimited:     http.StatusTooManyRequests,
		"DUPLICATE_SUBMISSION":       http.StatusConflict,
		"FILE_TOO_LARGE":             http.StatusRequestEntityTooLarge,
		"INVALID_CHARACTERS":         http.StatusBadRequest,
		"EMPTY_FILE":                 http.StatusBadRequest,
		CodeMissingFile:              http.StatusBadRequest,
		CodeSuspiciousClient:         http.StatusForbidden,
		CodeNotFound:                 http.StatusNotFound,
		CodeNotConfigured:            http.StatusServiceUnavailable,
		pipeline.CodeProcessingError: http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, HTTPStatus(code), "code %q", code)
	}
}

func TestClientIdentifier(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.0.2.1 ", ""})
	require.NoError(t, err)
	require.Len(t, trusted, 2)

	tests := []struct {
		name      string
		remote    string
		forwarded []string
		trusted   []netip.Prefix
		want      string
	}{
		{"remote host", "192.0.2.10:4321", nil, nil, "192.0.2.10"},
		{"unparsable remote", "unix-socket", nil, nil, "unix-socket"},
		{"spoofed header from direct client", "198.51.100.20:80", []string{"1.1.1.1"}, trusted, "198.51.100.20"},
		{"header ignored when nothing is trusted", "10.1.1.1:80", []string{"1.1.1.1"}, nil, "10.1.1.1"},
		{"single trusted proxy", "10.1.1.1:80", []string{" 198.51.100.9 "}, trusted, "198.51.100.9"},
		{"client spoofs left of proxy", "10.1.1.1:80", []string{"6.6.6.6, 198.51.100.9"}, trusted, "198.51.100.9"},
		{"chained proxies across headers", "10.1.1.1:80", []string{"198.51.100.9", "10.2.2.2"}, trusted, "198.51.100.9"},
		{"exact proxy address", "192.0.2.1:80", []string{"198.51.100.9"}, trusted, "198.51.100.9"},
		{"all hops trusted", "10.1.1.1:80", []string{"10.3.3.3"}, trusted, "10.3.3.3"},
		{"empty header", "10.1.1.1:80", []string{""}, trusted, "10.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, ClientIdentifier(req, tt.trusted))
		})
	}
}
