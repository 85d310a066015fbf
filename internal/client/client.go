// Package client provides an HTTP client for the vaultbot intake API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/vaultbot/internal/models"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// Client talks to a vaultbot-server.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// New creates a new client.
// If endpoint is empty, uses VAULTBOT_SERVER_URL env var or defaults to localhost:8585.
// Timeout can be configured via VAULTBOT_CLIENT_TIMEOUT env var (default 5m; analysis can be slow).
func New(endpoint, token string) *Client {
	if endpoint == "" {
		endpoint = os.Getenv("VAULTBOT_SERVER_URL")
	}
	if endpoint == "" {
		endpoint = "http://localhost:8585"
	}
	if token == "" {
		token = os.Getenv("VAULTBOT_HTTP_TOKEN")
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("VAULTBOT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.Status, e.Message)
}

// Unwrap maps 404 to ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Endpoint returns the server base URL.
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// Execute sends a request with an optional JSON body and decodes a JSON
// answer into result.
func (c *Client) Execute(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TYPES (matching the API's JSON)
// =============================================================================

// Link is an inline link entity with rune offsets into the message text.
type Link struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url"`
}

// Message is the body of POST /v1/messages.
type Message struct {
	Text      string `json:"text"`
	Links     []Link `json:"links,omitempty"`
	Source    string `json:"source,omitempty"`
	Subfolder string `json:"subfolder,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Upload describes an attachment sent as multipart form data.
type Upload struct {
	Path      string
	Kind      string
	Text      string
	Source    string
	Subfolder string
	Duration  time.Duration
}

// IngestOptions configures a server-side directory ingestion.
type IngestOptions struct {
	Recursive bool   `json:"recursive"`
	Source    string `json:"source,omitempty"`
	Subfolder string `json:"subfolder,omitempty"`
}

// IngestResult summarizes a finished ingestion job.
type IngestResult struct {
	FilesProcessed int      `json:"files_processed"`
	NotesCreated   int      `json:"notes_created"`
	Notes          []string `json:"notes,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Job is a background ingestion job.
type Job struct {
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	Status      string        `json:"status"`
	DirPath     string        `json:"dir_path"`
	Progress    int           `json:"progress"`
	Total       int           `json:"total"`
	Result      *IngestResult `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	return j.Status == "completed" || j.Status == "failed"
}

// Health is the answer of GET /healthz.
type Health struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Error    string `json:"error,omitempty"`
}

// =============================================================================
// CAPTURE OPERATIONS
// =============================================================================

// Capture sends a text message and returns the saved note.
func (c *Client) Capture(ctx context.Context, msg Message) (*models.SavedNote, error) {
	var saved models.SavedNote
	if err := c.Execute(ctx, http.MethodPost, "/v1/messages", msg, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// UploadFile sends a file as an attachment message.
func (c *Client) UploadFile(ctx context.Context, up Upload) (*models.SavedNote, error) {
	data, err := os.ReadFile(up.Path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"kind":      up.Kind,
		"text":      up.Text,
		"source":    up.Source,
		"subfolder": up.Subfolder,
	}
	if up.Duration > 0 {
		fields["duration_seconds"] = strconv.Itoa(int(up.Duration / time.Second))
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(up.Path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/messages", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var saved models.SavedNote
	if err := c.do(req, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// =============================================================================
// VAULT OPERATIONS
// =============================================================================

// ListFolders returns vault folders up to depth (0 uses the server default).
func (c *Client) ListFolders(ctx context.Context, depth int) ([]string, error) {
	path := "/v1/folders"
	if depth > 0 {
		path += "?depth=" + strconv.Itoa(depth)
	}
	var result struct {
		Folders []string `json:"folders"`
	}
	if err := c.Execute(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Folders, nil
}

// Related ranks vault notes by tag and entity overlap.
func (c *Client) Related(ctx context.Context, tags, entities []string, limit int) ([]models.RelatedNote, error) {
	q := url.Values{}
	for _, t := range tags {
		q.Add("tag", t)
	}
	for _, e := range entities {
		q.Add("entity", e)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.notes(ctx, "/v1/notes/related?"+q.Encode())
}

// Search finds vault notes containing query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.RelatedNote, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.notes(ctx, "/v1/notes/search?"+q.Encode())
}

func (c *Client) notes(ctx context.Context, path string) ([]models.RelatedNote, error) {
	var result struct {
		Notes []models.RelatedNote `json:"notes"`
	}
	if err := c.Execute(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Notes, nil
}

// Stats returns the server's runtime report as raw JSON.
func (c *Client) Stats(ctx context.Context, since time.Duration) (json.RawMessage, error) {
	path := "/v1/stats"
	if since > 0 {
		path += "?since=" + url.QueryEscape(since.String())
	}
	var raw json.RawMessage
	if err := c.Execute(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Health checks the server and its analysis backend.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	err := c.Execute(ctx, http.MethodGet, "/healthz", nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		h.Status = "unavailable"
		h.Error = apiErr.Message
		return &h, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// =============================================================================
// JOB OPERATIONS
// =============================================================================

// IngestDirectoryAsync starts an ingestion job for a directory on the
// server host and returns immediately.
func (c *Client) IngestDirectoryAsync(ctx context.Context, dirPath string, opts IngestOptions) (*Job, error) {
	payload := struct {
		Path string `json:"path"`
		IngestOptions
	}{Path: dirPath, IngestOptions: opts}

	var job Job
	if err := c.Execute(ctx, http.MethodPost, "/v1/ingest", payload, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns all background jobs.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var result struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.Execute(ctx, http.MethodGet, "/v1/jobs", nil, &result); err != nil {
		return nil, err
	}
	return result.Jobs, nil
}

// GetJob retrieves a job by ID.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	if err := c.Execute(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// =============================================================================
// STREAMING
// =============================================================================

// WatchJob streams job updates over a websocket until the job finishes.
// onUpdate is invoked for each update; return an error from it to abort.
func (c *Client) WatchJob(ctx context.Context, id string, onUpdate func(*Job) error) error {
	wsEndpoint := c.endpoint
	wsEndpoint = strings.Replace(wsEndpoint, "http://", "ws://", 1)
	wsEndpoint = strings.Replace(wsEndpoint, "https://", "wss://", 1)

	u, err := url.Parse(wsEndpoint + "/v1/jobs/" + url.PathEscape(id) + "/watch")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("websocket connect: %w", err)
	}

	// Track connection state for proper cleanup
	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Handle context cancellation in a separate goroutine
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var job Job
		if err := conn.ReadJSON(&job); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
		if err := onUpdate(&job); err != nil {
			return err
		}
		if job.Done() {
			return nil
		}
	}
}
