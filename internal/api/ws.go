package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/vaultbot/internal/service"
)

const (
	watchInterval = 250 * time.Millisecond
	writeWait     = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// WatchJob handles GET /v1/jobs/{id}/watch. It upgrades to a websocket and
// pushes a job snapshot whenever its status or progress changes, then
// closes after the terminal snapshot.
func (h *Handler) WatchJob(w http.ResponseWriter, r *http.Request) {
	job := h.app.Jobs.GetJob(chi.URLParam(r, "id"))
	if job == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	var last *service.Job
	for {
		snap := job.Snapshot()
		if last == nil || snap.Status != last.Status || snap.Progress != last.Progress {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
			last = snap
		}
		if snap.Status == service.JobStatusCompleted || snap.Status == service.JobStatusFailed {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-gone:
			return
		case <-ticker.C:
		}
	}
}
