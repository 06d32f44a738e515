package handler

import (
	"errors"
	"net/http"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/service"
)

// SyncHandler serves the pull and push endpoints mirrors sync through.
type SyncHandler struct {
	sync *service.SyncService
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(sync *service.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// HandlePull returns every record changed since the given timestamp plus
// the tombstones written since then, and the watermark for the next pull.
// GET /api/sync/pull?since=2024-01-01T00:00:00.000Z
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	changes, err := h.sync.Pull(r.Context(), r.URL.Query().Get("since"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeServiceError(w, err, "sync pull")
		return
	}
	writeJSON(w, http.StatusOK, changes)
}

// HandlePush merges a batch of mirror-side changes. Each record succeeds or
// fails on its own; failures come back as conflicts.
// POST /api/sync/push
// Request: {"sessions": [...], "sets": [...], "sessionDays": [...], "sessionExercises": [...]}
// Response: {"synced": 3, "failed": 0, "conflicts": [], "timestamp": "..."}
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	var batch domain.PushBatch
	if err := readJSON(w, r, &batch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	res := h.sync.Push(r.Context(), batch, r.Header.Get(ClientIDHeader))
	writeJSON(w, http.StatusOK, res)
}
