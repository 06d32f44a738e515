package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/msomdec/gymtrack/internal/domain"
)

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body := decode[map[string]any](t, resp)
		t.Fatalf("%s %s: expected %d, got %d (%v)", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func TestIntegration_WorkoutFlow(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t)

	// 1. Start a session.
	resp := srv.do(t, http.MethodPost, "/api/workouts/session", token, map[string]string{"date": "2024-01-01"})
	expectStatus(t, resp, http.StatusCreated)
	created := decode[struct {
		Session domain.Session `json:"session"`
	}](t, resp)
	sessionID := strconv.FormatInt(created.Session.ID, 10)

	// A second session on the same date conflicts.
	resp = srv.do(t, http.MethodPost, "/api/workouts/session", token, map[string]string{"date": "2024-01-01"})
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	// 2. Activate day 1 and pick its exercises.
	resp = srv.do(t, http.MethodPost, "/api/workouts/session/"+sessionID+"/days", token,
		map[string]any{"dayNumber": 1, "exerciseGroupId": 1})
	expectStatus(t, resp, http.StatusOK)
	if toggled := decode[map[string]bool](t, resp); !toggled["active"] {
		t.Fatal("expected day 1 to be active")
	}

	resp = srv.do(t, http.MethodPost, "/api/workouts/session/"+sessionID+"/select-exercises", token,
		map[string]any{"dayNumber": 1, "exercise1Id": 1, "exercise2Id": 4})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	// 3. Log a set, then edit it.
	resp = srv.do(t, http.MethodPost, "/api/workouts/set", token,
		map[string]any{"sessionId": created.Session.ID, "exerciseId": 1, "setNumber": 1, "reps": 8, "weight": 60})
	expectStatus(t, resp, http.StatusCreated)
	set := decode[struct {
		Set domain.Set `json:"set"`
	}](t, resp).Set
	setID := strconv.FormatInt(set.ID, 10)

	resp = srv.do(t, http.MethodPut, "/api/workouts/set/"+setID, token, map[string]any{"reps": 10})
	expectStatus(t, resp, http.StatusOK)
	updated := decode[struct {
		Set domain.Set `json:"set"`
	}](t, resp).Set
	if updated.Reps == nil || *updated.Reps != 10 || updated.SyncVersion <= set.SyncVersion {
		t.Fatalf("expected reps 10 and a bumped version, got %+v", updated)
	}

	// 4. The today view reflects all of it.
	resp = srv.do(t, http.MethodGet, "/api/workouts/today?date=2024-01-01", "", nil)
	expectStatus(t, resp, http.StatusOK)
	today := decode[domain.Today](t, resp)
	if today.Session == nil || len(today.ActiveDays) != 1 || len(today.SelectedExercises) != 2 || len(today.Sets) != 1 {
		t.Fatalf("unexpected today view %+v", today)
	}

	// 5. Complete the session; it shows up in history.
	resp = srv.do(t, http.MethodPut, "/api/workouts/session/"+sessionID, token, map[string]string{"status": "completed"})
	expectStatus(t, resp, http.StatusOK)
	completed := decode[struct {
		Session domain.Session `json:"session"`
	}](t, resp).Session
	if completed.CompletedAt == nil {
		t.Fatal("expected completed_at to be stamped")
	}

	resp = srv.do(t, http.MethodGet, "/api/workouts/history", "", nil)
	expectStatus(t, resp, http.StatusOK)
	if history := decode[domain.History](t, resp); history.Total != 1 {
		t.Fatalf("expected 1 completed session, got %d", history.Total)
	}

	// 6. Delete the set; a pull from before the delete reports the tombstone.
	before := domain.Epoch
	resp = srv.do(t, http.MethodDelete, "/api/workouts/set/"+setID, token, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = srv.do(t, http.MethodGet, "/api/sync/pull?since="+string(before), "", nil)
	expectStatus(t, resp, http.StatusOK)
	changes := decode[domain.Changes](t, resp)
	if len(changes.Sets) != 0 {
		t.Fatalf("expected the deleted set to be gone, got %+v", changes.Sets)
	}
	var tombstoned bool
	for _, d := range changes.Deletions {
		if d.TableName == domain.TableSets && d.RecordID == set.ID {
			tombstoned = true
		}
	}
	if !tombstoned {
		t.Fatalf("expected a tombstone for set %d, got %+v", set.ID, changes.Deletions)
	}
}

func TestIntegration_WritesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/api/workouts/session", "", map[string]string{"date": "2024-01-01"})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = srv.do(t, http.MethodPut, "/api/config/cycle-start", "", map[string]string{"startDate": "2024-02-01"})
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestIntegration_UnauthorizedPushMergesNothing(t *testing.T) {
	srv := newTestServer(t)

	batch := domain.PushBatch{Sessions: []domain.Session{
		{ID: 7, SessionDate: "2024-03-01", Status: domain.SessionInProgress, SyncVersion: 1},
	}}
	resp := srv.do(t, http.MethodPost, "/api/sync/push", "", batch)
	expectStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	if _, err := srv.db.Sessions().GetByID(context.Background(), 7); err == nil {
		t.Fatal("expected no session to be merged without a token")
	}
}

func TestIntegration_PushAndPull(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t)

	reps := 5
	batch := domain.PushBatch{
		Sessions: []domain.Session{{ID: 7, SessionDate: "2024-03-01", Status: domain.SessionInProgress, SyncVersion: 1}},
		Sets:     []domain.Set{{ID: 3, SessionID: 7, ExerciseID: 1, SetNumber: 1, Reps: &reps, Completed: true, SyncVersion: 1}},
	}
	req := srv.do(t, http.MethodPost, "/api/sync/push", token, batch)
	expectStatus(t, req, http.StatusOK)
	res := decode[domain.PushResult](t, req)
	if res.Synced != 2 || res.Failed != 0 {
		t.Fatalf("expected 2 synced, got %+v", res)
	}

	resp := srv.do(t, http.MethodGet, "/api/sync/pull", "", nil)
	expectStatus(t, resp, http.StatusOK)
	changes := decode[domain.Changes](t, resp)
	if len(changes.Sessions) != 1 || len(changes.Sets) != 1 {
		t.Fatalf("expected the pushed records back, got %d sessions %d sets", len(changes.Sessions), len(changes.Sets))
	}
	if changes.Sessions[0].SyncVersion < 2 {
		t.Fatalf("expected the server to advance the version, got %d", changes.Sessions[0].SyncVersion)
	}
}

func TestIntegration_PullRejectsMalformedSince(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/api/sync/pull?since=yesterday", "", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestIntegration_CycleStart(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t)

	resp := srv.do(t, http.MethodPut, "/api/config/cycle-start", token, map[string]string{"startDate": "2024-02-01"})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = srv.do(t, http.MethodGet, "/api/config/cycle-start", "", nil)
	expectStatus(t, resp, http.StatusOK)
	got := decode[map[string]any](t, resp)
	if got["startDate"] != "2024-02-01" {
		t.Fatalf("expected start date 2024-02-01, got %v", got["startDate"])
	}

	resp = srv.do(t, http.MethodGet, "/api/config/static-data", "", nil)
	expectStatus(t, resp, http.StatusOK)
	catalog := decode[domain.Catalog](t, resp)
	if len(catalog.Exercises) == 0 || len(catalog.Schedule) != domain.CycleLength {
		t.Fatalf("unexpected static data: %d exercises, %d schedule days", len(catalog.Exercises), len(catalog.Schedule))
	}
}
