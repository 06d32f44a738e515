package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/msomdec/gymtrack/internal/domain"
)

const (
	sessionColumns = `id, session_date, status, notes, started_at, completed_at,
	created_at, updated_at, sync_version, last_synced_at`
	setColumns = `id, session_id, exercise_id, set_number, reps, weight, duration_seconds,
	notes, completed, created_at, updated_at, sync_version, last_synced_at`
	dayColumns      = `id, session_id, day_number, exercise_group_id, created_at, sync_version, last_synced_at`
	exerciseColumns = `id, session_id, day_number, muscle_group, exercise_id, selection_order,
	created_at, sync_version, last_synced_at`
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		s                                   domain.Session
		notes, started, completed, syncedAt sql.NullString
	)
	err := row.Scan(&s.ID, &s.SessionDate, &s.Status, &notes, &started, &completed,
		&s.CreatedAt, &s.UpdatedAt, &s.SyncVersion, &syncedAt)
	if err != nil {
		return nil, err
	}
	s.Notes = nullString(notes)
	s.StartedAt = nullTimestamp(started)
	s.CompletedAt = nullTimestamp(completed)
	s.LastSyncedAt = nullTimestamp(syncedAt)
	return &s, nil
}

func scanSet(row scanner) (*domain.Set, error) {
	var (
		s               domain.Set
		reps, duration  sql.NullInt64
		weight          sql.NullFloat64
		notes, syncedAt sql.NullString
	)
	err := row.Scan(&s.ID, &s.SessionID, &s.ExerciseID, &s.SetNumber, &reps, &weight, &duration,
		&notes, &s.Completed, &s.CreatedAt, &s.UpdatedAt, &s.SyncVersion, &syncedAt)
	if err != nil {
		return nil, err
	}
	s.Reps = nullInt(reps)
	s.Weight = nullFloat(weight)
	s.DurationSeconds = nullInt(duration)
	s.Notes = nullString(notes)
	s.LastSyncedAt = nullTimestamp(syncedAt)
	return &s, nil
}

func scanSessionDay(row scanner) (*domain.SessionDay, error) {
	var (
		d        domain.SessionDay
		syncedAt sql.NullString
	)
	if err := row.Scan(&d.ID, &d.SessionID, &d.DayNumber, &d.ExerciseGroupID,
		&d.CreatedAt, &d.SyncVersion, &syncedAt); err != nil {
		return nil, err
	}
	d.LastSyncedAt = nullTimestamp(syncedAt)
	return &d, nil
}

func scanSessionExercise(row scanner) (*domain.SessionExercise, error) {
	var (
		e        domain.SessionExercise
		syncedAt sql.NullString
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.DayNumber, &e.MuscleGroup, &e.ExerciseID,
		&e.SelectionOrder, &e.CreatedAt, &e.SyncVersion, &syncedAt); err != nil {
		return nil, err
	}
	e.LastSyncedAt = nullTimestamp(syncedAt)
	return &e, nil
}

// collect runs query and scans every row with scan. The result is never nil.
func collect[T any](ctx context.Context, q queryer, scan func(scanner) (*T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func nullTimestamp(ns sql.NullString) *domain.Timestamp {
	if !ns.Valid {
		return nil
	}
	ts := domain.Timestamp(ns.String)
	return &ts
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Session returns a session by id.
func (s *Store) Session(ctx context.Context, id int64) (*domain.Session, error) {
	var out *domain.Session
	err := s.read(ctx, func(q queryer) error {
		var err error
		out, err = scanSession(q.QueryRowContext(ctx,
			"SELECT "+sessionColumns+" FROM workout_sessions WHERE id = ?", id))
		return err
	})
	if err != nil {
		return nil, notFound(err, "get session")
	}
	return out, nil
}

// SessionByDate returns the session recorded for date.
func (s *Store) SessionByDate(ctx context.Context, date string) (*domain.Session, error) {
	var out *domain.Session
	err := s.read(ctx, func(q queryer) error {
		var err error
		out, err = scanSession(q.QueryRowContext(ctx,
			"SELECT "+sessionColumns+" FROM workout_sessions WHERE session_date = ?", date))
		return err
	})
	if err != nil {
		return nil, notFound(err, "get session by date")
	}
	return out, nil
}

// Set returns a set by id.
func (s *Store) Set(ctx context.Context, id int64) (*domain.Set, error) {
	var out *domain.Set
	err := s.read(ctx, func(q queryer) error {
		var err error
		out, err = scanSet(q.QueryRowContext(ctx,
			"SELECT "+setColumns+" FROM workout_sets WHERE id = ?", id))
		return err
	})
	if err != nil {
		return nil, notFound(err, "get set")
	}
	return out, nil
}

func sessionDetail(ctx context.Context, q queryer, session domain.Session) (*domain.SessionDetail, error) {
	d := &domain.SessionDetail{Session: session}
	var err error
	d.Days, err = collect(ctx, q, scanSessionDay,
		"SELECT "+dayColumns+" FROM session_days WHERE session_id = ? ORDER BY day_number", session.ID)
	if err != nil {
		return nil, fmt.Errorf("list session days: %w", err)
	}
	d.Exercises, err = collect(ctx, q, scanSessionExercise,
		"SELECT "+exerciseColumns+" FROM session_exercises WHERE session_id = ? ORDER BY day_number, selection_order",
		session.ID)
	if err != nil {
		return nil, fmt.Errorf("list session exercises: %w", err)
	}
	d.Sets, err = collect(ctx, q, scanSet,
		"SELECT "+setColumns+" FROM workout_sets WHERE session_id = ? ORDER BY exercise_id, set_number", session.ID)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	return d, nil
}

// SessionDetail returns a session with its days, selections and sets.
func (s *Store) SessionDetail(ctx context.Context, id int64) (*domain.SessionDetail, error) {
	var out *domain.SessionDetail
	err := s.read(ctx, func(q queryer) error {
		session, err := scanSession(q.QueryRowContext(ctx,
			"SELECT "+sessionColumns+" FROM workout_sessions WHERE id = ?", id))
		if err != nil {
			return notFound(err, "get session")
		}
		out, err = sessionDetail(ctx, q, *session)
		return err
	})
	return out, err
}

// Today projects the workout view for date from the mirror: the rotation
// day from the local cycle start, the scheduled group when reference data
// is present, and the session with everything under it.
func (s *Store) Today(ctx context.Context, date string) (*domain.Today, error) {
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}

	var out *domain.Today
	err := s.read(ctx, func(q queryer) error {
		start := date
		err := q.QueryRowContext(ctx, "SELECT value FROM app_config WHERE key = ?",
			domain.ConfigCycleStartDate).Scan(&start)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read cycle start: %w", err)
		}
		dayNumber, err := domain.DayNumberFor(date, start)
		if err != nil {
			return err
		}

		today := &domain.Today{
			Date:              date,
			DayNumber:         dayNumber,
			ActiveDays:        []domain.SessionDay{},
			SelectedExercises: []domain.SessionExercise{},
			Sets:              []domain.Set{},
		}

		group, err := scheduledGroup(ctx, q, dayNumber)
		switch {
		case err == nil:
			exercises, err := exercisesFor(ctx, q, []string{group.MuscleGroup1, group.MuscleGroup2})
			if err != nil {
				return err
			}
			today.ExerciseGroup = domain.NewGroupView(*group, exercises)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		session, err := scanSession(q.QueryRowContext(ctx,
			"SELECT "+sessionColumns+" FROM workout_sessions WHERE session_date = ?", date))
		if errors.Is(err, sql.ErrNoRows) {
			out = today
			return nil
		}
		if err != nil {
			return fmt.Errorf("get session by date: %w", err)
		}
		detail, err := sessionDetail(ctx, q, *session)
		if err != nil {
			return err
		}
		today.Session = &detail.Session
		today.ActiveDays = detail.Days
		today.SelectedExercises = detail.Exercises
		today.Sets = detail.Sets
		out = today
		return nil
	})
	return out, err
}

// History returns a page of completed sessions, newest first.
func (s *Store) History(ctx context.Context, limit, offset int) (*domain.History, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	h := &domain.History{}
	err := s.read(ctx, func(q queryer) error {
		var err error
		h.Sessions, err = collect(ctx, q, scanSession,
			"SELECT "+sessionColumns+` FROM workout_sessions WHERE status = 'completed'
			 ORDER BY session_date DESC LIMIT ? OFFSET ?`, limit, offset)
		if err != nil {
			return fmt.Errorf("list completed sessions: %w", err)
		}
		return q.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM workout_sessions WHERE status = 'completed'").Scan(&h.Total)
	})
	if err != nil {
		return nil, err
	}
	h.HasMore = offset+len(h.Sessions) < h.Total
	return h, nil
}

// CreateSet logs a set against a mirrored session. The row is written dirty
// with sync_version 0 and waits for the next push.
func (s *Store) CreateSet(ctx context.Context, n domain.NewSet) (*domain.Set, error) {
	set := n.Set()
	if err := set.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Set
	err := s.Batch(ctx, func(tx *Tx) error {
		var exists int
		if err := tx.tx.QueryRowContext(tx.ctx,
			"SELECT COUNT(*) FROM workout_sessions WHERE id = ?", set.SessionID).Scan(&exists); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: session %d", domain.ErrNotFound, set.SessionID)
		}

		res, err := tx.Exec(
			`INSERT INTO workout_sets (session_id, exercise_id, set_number, reps, weight, duration_seconds,
			 notes, completed, created_at, updated_at, sync_version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			set.SessionID, set.ExerciseID, set.SetNumber, set.Reps, set.Weight, set.DurationSeconds,
			set.Notes, set.Completed, tx.now, tx.now)
		if err != nil {
			if isUniqueConstraintError(err) {
				return domain.ErrDuplicateSet
			}
			return fmt.Errorf("insert set: %w", err)
		}
		out, err = scanSet(tx.tx.QueryRowContext(tx.ctx,
			"SELECT "+setColumns+" FROM workout_sets WHERE id = ?", res.LastInsertID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSet applies u to a mirrored set and marks it dirty.
func (s *Store) UpdateSet(ctx context.Context, id int64, u domain.SetUpdate) (*domain.Set, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Set
	err := s.Batch(ctx, func(tx *Tx) error {
		clause, args := domain.SetClause(u.Assignments())
		args = append(args, tx.now, id)
		res, err := tx.Exec("UPDATE workout_sets SET "+clause+", updated_at = ? WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("update set: %w", err)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		out, err = scanSet(tx.tx.QueryRowContext(tx.ctx,
			"SELECT "+setColumns+" FROM workout_sets WHERE id = ?", id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSession applies u to a mirrored session and marks it dirty. Status
// transitions stamp started_at and completed_at when they are still empty.
func (s *Store) UpdateSession(ctx context.Context, id int64, u domain.SessionUpdate) (*domain.Session, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Session
	err := s.Batch(ctx, func(tx *Tx) error {
		clause, args := domain.SetClause(u.Assignments())
		for _, col := range u.LifecycleColumns() {
			clause += ", " + col + " = COALESCE(" + col + ", ?)"
			args = append(args, tx.now)
		}
		args = append(args, tx.now, id)
		res, err := tx.Exec("UPDATE workout_sessions SET "+clause+", updated_at = ? WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		out, err = scanSession(tx.tx.QueryRowContext(tx.ctx,
			"SELECT "+sessionColumns+" FROM workout_sessions WHERE id = ?", id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
