// Package apitest runs the real server handler stack in-process for client
// tests.
package apitest

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/msomdec/gymtrack/internal/handler"
	"github.com/msomdec/gymtrack/internal/repository/sqlite"
	"github.com/msomdec/gymtrack/internal/service"
	"github.com/stretchr/testify/require"
)

const (
	Password   = "correct-horse-battery"
	secret     = "apitest-secret-that-is-at-least-32-bytes"
	CycleStart = "2024-01-01"
)

// Server is a seeded server on a temp-dir database. While Down is set every
// request fails at the transport level, as if the network dropped.
type Server struct {
	*httptest.Server
	DB       *sqlite.DB
	Auth     *service.AuthService
	Workouts *service.WorkoutService

	down     atomic.Bool
	requests atomic.Int64
	pulls    atomic.Int64
}

// New starts a server and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	catalog := service.NewCatalogService(db.Catalog(), db.Config())
	require.NoError(t, catalog.SeedDefaults(ctx))
	require.NoError(t, catalog.SetCycleStart(ctx, CycleStart))

	hash, err := service.HashPassword(Password, 4)
	require.NoError(t, err)
	auth := service.NewAuthService(hash, secret)
	workouts := service.NewWorkoutService(db.Sessions(), db.Sets(), db.SessionDays(),
		db.SessionExercises(), db.Catalog(), db.Config())
	syncer := service.NewSyncService(db.Sync(), slog.New(slog.DiscardHandler))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, auth, nil, catalog, workouts, syncer)

	s := &Server{DB: db, Auth: auth, Workouts: workouts}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.down.Load() {
			// Hijack and drop the connection so the client sees a transport error.
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		s.requests.Add(1)
		if r.URL.Path == "/api/sync/pull" {
			s.pulls.Add(1)
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// SetDown toggles simulated network loss.
func (s *Server) SetDown(down bool) { s.down.Store(down) }

// Requests counts the requests served while up.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Pulls counts the pull requests served while up.
func (s *Server) Pulls() int64 { return s.pulls.Load() }

// Token issues a bearer token without going through the login route.
func (s *Server) Token(t testing.TB) string {
	t.Helper()
	token, _, err := s.Auth.Login(Password)
	require.NoError(t, err)
	return token
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }
