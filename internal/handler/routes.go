package handler

import (
	"net/http"

	"github.com/msomdec/gymtrack/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux. Reads are open;
// writes and sync push require a bearer token. Login is rate limited per
// client IP when limiter is non-nil.
func RegisterRoutes(
	mux *http.ServeMux,
	auth *service.AuthService,
	limiter *service.TokenBucket,
	catalog *service.CatalogService,
	workouts *service.WorkoutService,
	syncer *service.SyncService,
) {
	authH := NewAuthHandler(auth)
	configH := NewConfigHandler(catalog)
	workoutH := NewWorkoutHandler(workouts)
	syncH := NewSyncHandler(syncer)

	protect := func(fn http.HandlerFunc) http.Handler {
		return RequireAuth(auth, fn)
	}

	var login http.Handler = http.HandlerFunc(authH.HandleLogin)
	if limiter != nil {
		login = RateLimit(limiter, login)
	}

	mux.HandleFunc("GET /api/health", HandleHealth)

	mux.Handle("POST /api/auth/login", login)
	mux.Handle("GET /api/auth/verify", protect(authH.HandleVerify))
	mux.Handle("POST /api/auth/logout", protect(authH.HandleLogout))

	mux.HandleFunc("GET /api/config/static-data", configH.HandleStaticData)
	mux.HandleFunc("GET /api/config/cycle-start", configH.HandleGetCycleStart)
	mux.Handle("PUT /api/config/cycle-start", protect(configH.HandleSetCycleStart))

	mux.HandleFunc("GET /api/workouts/today", workoutH.HandleToday)
	mux.HandleFunc("GET /api/workouts/history", workoutH.HandleHistory)
	mux.HandleFunc("GET /api/workouts/session/{id}", workoutH.HandleGetSession)
	mux.Handle("POST /api/workouts/session", protect(workoutH.HandleCreateSession))
	mux.Handle("PUT /api/workouts/session/{id}", protect(workoutH.HandleUpdateSession))
	mux.Handle("POST /api/workouts/session/{id}/days", protect(workoutH.HandleToggleDay))
	mux.Handle("POST /api/workouts/session/{id}/select-exercises", protect(workoutH.HandleSelectExercises))
	mux.Handle("POST /api/workouts/set", protect(workoutH.HandleCreateSet))
	mux.Handle("PUT /api/workouts/set/{id}", protect(workoutH.HandleUpdateSet))
	mux.Handle("DELETE /api/workouts/set/{id}", protect(workoutH.HandleDeleteSet))

	mux.HandleFunc("GET /api/sync/pull", syncH.HandlePull)
	mux.Handle("POST /api/sync/push", protect(syncH.HandlePush))
}
