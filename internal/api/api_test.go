package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/vaultbot/internal/config"
	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/llm/llmtest"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/service"
)

var fixedNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// pingingFake adds a health check to the fake provider.
type pingingFake struct {
	*llmtest.Fake
	pingErr error
}

func (p *pingingFake) Ping(context.Context) error { return p.pingErr }

type testEnv struct {
	app    *service.App
	router http.Handler
	fake   *llmtest.Fake
	root   string
}

func newTestEnv(t *testing.T, mutate func(*config.Config), provider llm.Provider) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Vault.Path = t.TempDir()
	cfg.Audit.Dir = ""
	cfg.Pipeline.FetchArticles = false
	cfg.Pipeline.OCR.Enabled = false
	cfg.HTTP.Rate = ""
	if mutate != nil {
		mutate(&cfg)
	}

	fake := &llmtest.Fake{ProviderName: "claude"}
	if provider == nil {
		provider = fake
	}
	app, err := service.New(cfg, nil, service.WithProvider(provider),
		service.WithNow(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	router, err := NewRouter(app)
	require.NoError(t, err)
	return &testEnv{app: app, router: router, fake: fake, root: cfg.Vault.Path}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (e *testEnv) writeNote(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCreateMessage(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.fake.Result = models.Analysis{Title: "From HTTP", Summary: "s", Tags: []string{"api"}}

	w := env.do(t, jsonRequest(t, http.MethodPost, "/v1/messages", map[string]any{
		"text":     "see docs for details",
		"links":    []map[string]any{{"offset": 4, "length": 4, "url": "https://example.com/docs"}},
		"username": "alice",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var saved models.SavedNote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	assert.Equal(t, "Incoming/2025-01-15 - from-http.md", saved.Path)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	data, err := os.ReadFile(filepath.Join(env.root, filepath.FromSlash(saved.Path)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "see [docs](https://example.com/docs) for details")

	calls := env.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, models.ContentTextWithURL, calls[0].Context.ContentType)
}

func TestCreateMessageValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name    string
		body    any
		wantMsg string
	}{
		{"missing text", map[string]any{}, "text: failed required"},
		{"blank text", map[string]any{"text": "   "}, "message has no text or media"},
		{"bad link", map[string]any{"text": "x", "links": []map[string]any{{"offset": 0, "length": 1, "url": "nope"}}}, "url: failed url"},
		{"escaping subfolder", map[string]any{"text": "x", "subfolder": "../../etc"}, "subfolder escapes the vault"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, jsonRequest(t, http.MethodPost, "/v1/messages", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", bytes.NewBufferString("{"))
	w := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestCreateMessageFatalBackend(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Pipeline.FallbackOnError = false }, nil)
	env.fake.Err = &llm.ProviderError{Provider: "claude", Op: "analyze", Kind: llm.ErrQuota, Err: errors.New("credit balance too low")}

	w := env.do(t, jsonRequest(t, http.MethodPost, "/v1/messages", map[string]any{"text": "hello"}))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "not saved")
}

func TestUploadPhoto(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.fake.Result = models.Analysis{Title: "Whiteboard", Summary: "s"}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("kind", "photo"))
	require.NoError(t, mw.WriteField("text", "sprint plan"))
	part, err := mw.CreateFormFile("file", "board.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := env.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var saved models.SavedNote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.Len(t, saved.Attachments, 1)
	assert.Equal(t, "_attachments/photo_20250115_103000_board.png", saved.Attachments[0])

	data, err := os.ReadFile(filepath.Join(env.root, filepath.FromSlash(saved.Attachments[0])))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("kind", "video"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "kind: failed oneof")
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.HTTP.Token = "secret" }, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/folders", nil)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/folders", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(t, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/folders", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, env.do(t, req).Code)

	// Health stays public.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, env.do(t, req).Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.HTTP.Rate = "2-M" }, nil)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/v1/folders", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		codes = append(codes, env.do(t, req).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	_, err := RateLimit("lots")
	assert.Error(t, err)
}

func TestFoldersRelatedSearch(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.writeNote(t, "Knowledge/Tech/cache.md", "# Caching\n\n#caching with Redis")
	env.writeNote(t, "Projects/plan.md", "# Plan\n\nRoadmap")

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/folders?depth=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"folders":["Knowledge","Projects"]}`, w.Body.String())

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/notes/related?tag=caching,go&entity=redis", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var related struct {
		Notes []models.RelatedNote `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &related))
	require.Len(t, related.Notes, 1)
	assert.Equal(t, "Knowledge/Tech/cache.md", related.Notes[0].Path)
	assert.InDelta(t, 2.5, related.Notes[0].Score, 0.001)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/notes/related?limit=100", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/notes/search?q=roadmap", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Projects/plan.md")

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/notes/search?q=ab", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "query: failed min=3")
}

func TestIngestJobs(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.fake.Result = models.Analysis{Title: "Batch", Summary: "s"}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second"), 0o644))

	w := env.do(t, jsonRequest(t, http.MethodPost, "/v1/ingest", map[string]any{"path": dir}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var job service.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, 2, job.Total)

	require.Eventually(t, func() bool {
		w := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID, nil))
		var got service.Job
		_ = json.Unmarshal(w.Body.Bytes(), &got)
		return got.Status == service.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), job.ID)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, jsonRequest(t, http.MethodPost, "/v1/ingest", map[string]any{"path": filepath.Join(dir, "nope")}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, jsonRequest(t, http.MethodPost, "/v1/ingest", map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/stats?since=1h", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var st service.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "claude", st.Provider)

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/v1/stats?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	fake := &pingingFake{Fake: &llmtest.Fake{ProviderName: "ollama"}, pingErr: errors.New("connection refused")}
	env := newTestEnv(t, nil, fake)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	fake.pingErr = nil
	w = env.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","provider":"ollama","model":"fake-model"}`, w.Body.String())
}
