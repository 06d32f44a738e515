package handler

import (
	"net/http"

	"github.com/msomdec/gymtrack/internal/service"
)

// ConfigHandler serves reference data and the cycle configuration.
type ConfigHandler struct {
	catalog *service.CatalogService
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(catalog *service.CatalogService) *ConfigHandler {
	return &ConfigHandler{catalog: catalog}
}

// HandleStaticData returns exercises, exercise groups and the schedule.
// GET /api/config/static-data
func (h *ConfigHandler) HandleStaticData(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.catalog.StaticData(r.Context())
	if err != nil {
		writeServiceError(w, err, "load static data")
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

// HandleGetCycleStart returns the cycle start date and today's rotation day.
// GET /api/config/cycle-start
// Response: {"startDate": "2024-01-01", "currentDay": 3}
func (h *ConfigHandler) HandleGetCycleStart(w http.ResponseWriter, r *http.Request) {
	start, day, err := h.catalog.CycleStart(r.Context())
	if err != nil {
		writeServiceError(w, err, "get cycle start")
		return
	}
	writeJSON(w, http.StatusOK, cycleStartResponse{StartDate: start, CurrentDay: day})
}

// HandleSetCycleStart changes the cycle start date.
// PUT /api/config/cycle-start
// Request: {"startDate": "2024-01-01"}
func (h *ConfigHandler) HandleSetCycleStart(w http.ResponseWriter, r *http.Request) {
	var req cycleStartRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.catalog.SetCycleStart(r.Context(), req.StartDate); err != nil {
		writeServiceError(w, err, "set cycle start")
		return
	}

	start, day, err := h.catalog.CycleStart(r.Context())
	if err != nil {
		writeServiceError(w, err, "get cycle start")
		return
	}
	writeJSON(w, http.StatusOK, cycleStartResponse{StartDate: start, CurrentDay: day})
}
