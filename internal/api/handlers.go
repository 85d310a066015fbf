package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raphaelgruber/vaultbot/internal/llm"
	"github.com/raphaelgruber/vaultbot/internal/models"
	"github.com/raphaelgruber/vaultbot/internal/service"
	"github.com/raphaelgruber/vaultbot/internal/vault"
)

const (
	maxJSONBody       = 1 << 20
	maxUploadBody     = 25 << 20
	readHeaderTimeout = 10 * time.Second
	defaultLimit      = 5
)

// Handler holds API route handlers.
type Handler struct {
	app    *service.App
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(app *service.App) *Handler {
	return &Handler{app: app, logger: app.Logger}
}

// CreateMessage handles POST /v1/messages. JSON bodies carry text and link
// entities; multipart bodies carry one attachment in the "file" part.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var (
		msg service.Message
		ok  bool
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		msg, ok = h.decodeUpload(w, r)
	} else {
		msg, ok = h.decodeMessage(w, r)
	}
	if !ok {
		return
	}

	saved, err := h.app.Pipeline.Capture(r.Context(), msg)
	if err != nil {
		h.writeCaptureError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) decodeMessage(w http.ResponseWriter, r *http.Request) (service.Message, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return service.Message{}, false
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
		return service.Message{}, false
	}
	return service.Message{
		Text:      req.Text,
		Links:     toLinkEntities(req.Links),
		Source:    req.Source,
		UserID:    req.UserID,
		Username:  req.Username,
		Subfolder: req.Subfolder,
	}, true
}

func (h *Handler) decodeUpload(w http.ResponseWriter, r *http.Request) (service.Message, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return service.Message{}, false
	}

	req := UploadRequest{
		Kind:      r.FormValue("kind"),
		Text:      r.FormValue("text"),
		Source:    r.FormValue("source"),
		Subfolder: r.FormValue("subfolder"),
	}
	if d := r.FormValue("duration_seconds"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("duration_seconds must be an integer"))
			return service.Message{}, false
		}
		req.Duration = n
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
		return service.Message{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file is required"))
		return service.Message{}, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("read upload failed"))
		return service.Message{}, false
	}

	kind := models.ContentPhoto
	if req.Kind != "" {
		kind = models.ContentType(req.Kind)
	}
	return service.Message{
		Text:      req.Text,
		Source:    req.Source,
		Subfolder: req.Subfolder,
		Media: &service.Media{
			Kind:     kind,
			Filename: header.Filename,
			Data:     data,
			Duration: time.Duration(req.Duration) * time.Second,
		},
	}, true
}

func (h *Handler) writeCaptureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, vault.ErrPathEscape):
		writeJSON(w, http.StatusBadRequest, errorBody("subfolder escapes the vault"))
	case errors.Is(err, llm.ErrFatalAPI):
		h.logger.Error("analysis backend rejected request", "error", err)
		writeJSON(w, http.StatusBadGateway, errorBody("analysis backend unavailable, not saved"))
	default:
		h.logger.Error("capture failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("not saved"))
	}
}

// StartIngest handles POST /v1/ingest by starting a background job.
func (h *Handler) StartIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
		return
	}

	job, err := h.app.Ingest.IngestDirectoryAsync(h.app.Jobs, req.Path, service.IngestOptions{
		Source:    req.Source,
		Subfolder: req.Subfolder,
		Recursive: req.Recursive,
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

// ListJobs handles GET /v1/jobs.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.app.Jobs.ListJobs()
	out := make([]*service.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// GetJob handles GET /v1/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job := h.app.Jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// ListFolders handles GET /v1/folders.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))
	if depth <= 0 {
		depth = h.app.Config.Vault.FolderDepth
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": h.app.Writer.ListFolders(depth)})
}

// Related handles GET /v1/notes/related?tag=..&entity=..&limit=..
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	query := RelatedQuery{
		Tags:     splitList(q["tag"]),
		Entities: splitList(q["entity"]),
		Limit:    limit,
	}
	if err := validate.Struct(query); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultLimit
	}

	notes, err := h.app.Finder.Related(r.Context(), query.Tags, query.Entities, query.Limit)
	if err != nil {
		h.logger.Error("find related failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// Search handles GET /v1/notes/search?q=..&limit=..
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	query := SearchQuery{Query: q.Get("q"), Limit: limit}
	if err := validate.Struct(query); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultLimit
	}

	notes, err := h.app.Finder.Search(r.Context(), query.Query, query.Limit)
	if err != nil {
		h.logger.Error("search failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

// Stats handles GET /v1/stats?since=24h.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("since must be a positive duration"))
			return
		}
		window = d
	}
	st, err := h.app.Stats(r.Context(), time.Now().Add(-window))
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"provider": h.app.Provider.Name(),
		"model":    h.app.Provider.Model(),
	}
	if err := h.app.Health(r.Context()); err != nil {
		body["status"] = "unavailable"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ok"
	writeJSON(w, http.StatusOK, body)
}

// splitList accepts repeated and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
