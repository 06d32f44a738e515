// Package workout is the client-side workout service. Set and session edits
// are written to the local mirror first and pushed in the background;
// operations that need server-allocated ids or validation go to the server
// and are followed by a pull.
package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/localstore"
	"github.com/msomdec/gymtrack/internal/syncengine"
)

// Server is the subset of the server API used for server-routed commands.
type Server interface {
	CreateSession(ctx context.Context, date string) (*domain.Session, error)
	ToggleDay(ctx context.Context, sessionID int64, dayNumber int, groupID int64) (bool, error)
	SelectExercises(ctx context.Context, sessionID int64, dayNumber int, exercise1, exercise2 int64) ([]domain.SessionExercise, error)
	DeleteSet(ctx context.Context, id int64) error
}

type Service struct {
	store  *localstore.Store
	engine *syncengine.Engine
	server Server
	logger *slog.Logger
}

func NewService(engine *syncengine.Engine, server Server, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: engine.Store(), engine: engine, server: server, logger: logger}
}

// Today projects the workout for date from the local mirror.
func (s *Service) Today(ctx context.Context, date string) (*domain.Today, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	return s.store.Today(ctx, date)
}

// History lists completed sessions from the local mirror.
func (s *Service) History(ctx context.Context, limit, offset int) (*domain.History, error) {
	return s.store.History(ctx, limit, offset)
}

// LogSet records a set locally. It succeeds offline; the push follows
// whenever the server is reachable.
func (s *Service) LogSet(ctx context.Context, n domain.NewSet) (*domain.Set, error) {
	set, err := s.store.CreateSet(ctx, n)
	if err != nil {
		return nil, err
	}
	s.engine.NotifyMutation()
	return set, nil
}

// NextSetNumber returns the set number following the highest one logged
// for the exercise in the session.
func (s *Service) NextSetNumber(ctx context.Context, sessionID, exerciseID int64) (int, error) {
	row, err := s.store.Get(ctx,
		"SELECT COALESCE(MAX(set_number), 0) + 1 AS next FROM workout_sets WHERE session_id = ? AND exercise_id = ?",
		sessionID, exerciseID)
	if err != nil {
		return 0, err
	}
	return int(row["next"].(int64)), nil
}

func (s *Service) UpdateSet(ctx context.Context, id int64, u domain.SetUpdate) (*domain.Set, error) {
	set, err := s.store.UpdateSet(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.engine.NotifyMutation()
	return set, nil
}

// UpdateSession edits a session locally. Status changes stamp started_at
// and completed_at.
func (s *Service) UpdateSession(ctx context.Context, id int64, u domain.SessionUpdate) (*domain.Session, error) {
	session, err := s.store.UpdateSession(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.engine.NotifyMutation()
	return session, nil
}

// CompleteSession marks the session completed.
func (s *Service) CompleteSession(ctx context.Context, id int64) (*domain.Session, error) {
	status := domain.SessionCompleted
	return s.UpdateSession(ctx, id, domain.SessionUpdate{Status: &status})
}

// StartSession opens the session for date on the server and mirrors it. A
// session the server already has for that date is returned as is.
func (s *Service) StartSession(ctx context.Context, date string) (*domain.Session, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	local, err := s.store.SessionByDate(ctx, date)
	if err == nil {
		return local, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	_, err = s.server.CreateSession(ctx, date)
	s.engine.Observe(err)
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s.store.SessionByDate(ctx, date)
}

// ToggleDay activates or deactivates a rotation day in the session using
// the day's scheduled exercise group. It reports whether the day is now
// active.
func (s *Service) ToggleDay(ctx context.Context, sessionID int64, dayNumber int) (bool, error) {
	if !domain.ValidDayNumber(dayNumber) {
		return false, fmt.Errorf("%w: day must be between 1 and %d", domain.ErrInvalidInput, domain.CycleLength)
	}
	group, err := s.store.ScheduledGroup(ctx, dayNumber)
	if err != nil {
		return false, fmt.Errorf("scheduled group for day %d: %w", dayNumber, err)
	}

	active, err := s.server.ToggleDay(ctx, sessionID, dayNumber, group.ID)
	s.engine.Observe(err)
	if err != nil {
		return false, fmt.Errorf("toggle day: %w", err)
	}
	return active, s.refresh(ctx)
}

// SelectExercises picks the two exercises for an active day.
func (s *Service) SelectExercises(ctx context.Context, sessionID int64, dayNumber int, exercise1, exercise2 int64) ([]domain.SessionExercise, error) {
	selected, err := s.server.SelectExercises(ctx, sessionID, dayNumber, exercise1, exercise2)
	s.engine.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("select exercises: %w", err)
	}
	return selected, s.refresh(ctx)
}

// DeleteSet deletes a set on the server; the pulled tombstone removes it
// locally. A set that never reached the server is deleted locally only.
func (s *Service) DeleteSet(ctx context.Context, id int64) error {
	set, err := s.store.Set(ctx, id)
	if err != nil {
		return err
	}

	err = s.server.DeleteSet(ctx, id)
	s.engine.Observe(err)
	switch {
	case err == nil:
		return s.refresh(ctx)
	case errors.Is(err, domain.ErrNotFound) && set.LastSyncedAt == nil:
		if _, err := s.store.Run(ctx, "DELETE FROM workout_sets WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete local set: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("delete set: %w", err)
	}
}

// refresh pulls after a server-routed command. The command already
// succeeded, so a failed pull is logged rather than returned.
func (s *Service) refresh(ctx context.Context) error {
	if _, err := s.engine.Pull(ctx); err != nil {
		if errors.Is(err, localstore.ErrNotReady) || errors.Is(err, localstore.ErrClosed) {
			return err
		}
		s.logger.Warn("pull after server command failed", "error", err)
	}
	return nil
}
