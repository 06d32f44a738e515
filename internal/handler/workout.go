package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/service"
)

// WorkoutHandler serves sessions, day selections and sets.
type WorkoutHandler struct {
	workouts *service.WorkoutService
}

// NewWorkoutHandler creates a new WorkoutHandler.
func NewWorkoutHandler(workouts *service.WorkoutService) *WorkoutHandler {
	return &WorkoutHandler{workouts: workouts}
}

// HandleToday returns the workout view for a date, defaulting to today.
// GET /api/workouts/today?date=YYYY-MM-DD
func (h *WorkoutHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(domain.DateLayout)
	}

	today, err := h.workouts.Today(r.Context(), date)
	if err != nil {
		writeServiceError(w, err, "load today")
		return
	}
	writeJSON(w, http.StatusOK, today)
}

// HandleHistory pages through completed sessions.
// GET /api/workouts/history?limit=20&offset=0
func (h *WorkoutHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	history, err := h.workouts.History(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err, "load history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleGetSession returns a session with its days, selections and sets.
// GET /api/workouts/session/{id}
func (h *WorkoutHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID.")
		return
	}

	detail, err := h.workouts.GetSession(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "get session")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// HandleCreateSession starts a session for a date.
// POST /api/workouts/session
// Request: {"date": "2024-01-01"}
// Response: 201 {"session": {...}}, 409 when the date already has one.
func (h *WorkoutHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	session, err := h.workouts.CreateSession(r.Context(), req.Date)
	if err != nil {
		writeServiceError(w, err, "create session")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: session})
}

// HandleUpdateSession changes status, notes or completion time.
// PUT /api/workouts/session/{id}
// Request: {"status": "completed", "notes": "..."}
func (h *WorkoutHandler) HandleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID.")
		return
	}
	var req domain.SessionUpdate
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	session, err := h.workouts.UpdateSession(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err, "update session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session})
}

// HandleToggleDay activates or deactivates a rotation day on a session.
// POST /api/workouts/session/{id}/days
// Request: {"dayNumber": 3, "exerciseGroupId": 3}
// Response: {"active": true}
func (h *WorkoutHandler) HandleToggleDay(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID.")
		return
	}
	var req toggleDayRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	active, err := h.workouts.ToggleDay(r.Context(), id, req.DayNumber, req.ExerciseGroupID)
	if err != nil {
		writeServiceError(w, err, "toggle day")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

// HandleSelectExercises records the two exercises chosen for an active day.
// POST /api/workouts/session/{id}/select-exercises
// Request: {"dayNumber": 1, "exercise1Id": 1, "exercise2Id": 4}
// Response: {"selectedExercises": [...]}
func (h *WorkoutHandler) HandleSelectExercises(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid session ID.")
		return
	}
	var req selectExercisesRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	selected, err := h.workouts.SelectExercises(r.Context(), id, req.DayNumber, req.Exercise1ID, req.Exercise2ID)
	if err != nil {
		writeServiceError(w, err, "select exercises")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selectedExercises": selected})
}

// HandleCreateSet logs a set.
// POST /api/workouts/set
// Request: {"sessionId": 1, "exerciseId": 1, "setNumber": 1, "reps": 8, "weight": 60}
// Response: 201 {"set": {...}}, 409 when the set number is taken.
func (h *WorkoutHandler) HandleCreateSet(w http.ResponseWriter, r *http.Request) {
	var req domain.NewSet
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	set, err := h.workouts.CreateSet(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "create set")
		return
	}
	writeJSON(w, http.StatusCreated, setResponse{Set: set})
}

// HandleUpdateSet edits a logged set.
// PUT /api/workouts/set/{id}
func (h *WorkoutHandler) HandleUpdateSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid set ID.")
		return
	}
	var req domain.SetUpdate
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	set, err := h.workouts.UpdateSet(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err, "update set")
		return
	}
	writeJSON(w, http.StatusOK, setResponse{Set: set})
}

// HandleDeleteSet removes a set and leaves a tombstone for mirrors.
// DELETE /api/workouts/set/{id}
// Response: {"success": true}
func (h *WorkoutHandler) HandleDeleteSet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid set ID.")
		return
	}
	if err := h.workouts.DeleteSet(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete set")
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
