package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/gymtrack/internal/domain"
)

// SyncRepository implements domain.SyncRepository using SQLite.
type SyncRepository struct {
	db *sql.DB
}

// NewSyncRepository creates a new SQLite-backed SyncRepository.
func NewSyncRepository(db *DB) *SyncRepository {
	return &SyncRepository{db: db.SqlDB}
}

// Changes reads every record stamped after since. All reads and the final
// clock read happen in one transaction on the single connection, so no
// write can land between them.
func (r *SyncRepository) Changes(ctx context.Context, since domain.Timestamp) (*domain.Changes, domain.Timestamp, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	c := &domain.Changes{
		Sessions:         []domain.Session{},
		SessionDays:      []domain.SessionDay{},
		SessionExercises: []domain.SessionExercise{},
		Sets:             []domain.Set{},
		Deletions:        []domain.Tombstone{},
	}

	err = queryEach(ctx, tx,
		"SELECT "+sessionColumns+" FROM workout_sessions WHERE updated_at > ? ORDER BY updated_at, id", since,
		func(row scanner) error {
			s, err := scanSession(row)
			if err == nil {
				c.Sessions = append(c.Sessions, *s)
			}
			return err
		})
	if err != nil {
		return nil, "", fmt.Errorf("changed sessions: %w", err)
	}

	err = queryEach(ctx, tx,
		"SELECT "+dayColumns+" FROM session_days WHERE created_at > ? ORDER BY created_at, id", since,
		func(row scanner) error {
			d, err := scanSessionDay(row)
			if err == nil {
				c.SessionDays = append(c.SessionDays, *d)
			}
			return err
		})
	if err != nil {
		return nil, "", fmt.Errorf("changed session days: %w", err)
	}

	err = queryEach(ctx, tx,
		"SELECT "+exerciseColumns+" FROM session_exercises WHERE created_at > ? ORDER BY created_at, id", since,
		func(row scanner) error {
			e, err := scanSessionExercise(row)
			if err == nil {
				c.SessionExercises = append(c.SessionExercises, *e)
			}
			return err
		})
	if err != nil {
		return nil, "", fmt.Errorf("changed session exercises: %w", err)
	}

	err = queryEach(ctx, tx,
		"SELECT "+setColumns+" FROM workout_sets WHERE updated_at > ? ORDER BY updated_at, id", since,
		func(row scanner) error {
			s, err := scanSet(row)
			if err == nil {
				c.Sets = append(c.Sets, *s)
			}
			return err
		})
	if err != nil {
		return nil, "", fmt.Errorf("changed sets: %w", err)
	}

	err = queryEach(ctx, tx,
		"SELECT table_name, record_id, deleted_at FROM sync_tombstones WHERE deleted_at > ? ORDER BY deleted_at, id", since,
		func(row scanner) error {
			var t domain.Tombstone
			err := row.Scan(&t.TableName, &t.RecordID, &t.DeletedAt)
			if err == nil {
				c.Deletions = append(c.Deletions, t)
			}
			return err
		})
	if err != nil {
		return nil, "", fmt.Errorf("tombstones: %w", err)
	}

	var clock domain.Timestamp
	if err := tx.QueryRowContext(ctx, "SELECT "+nowSQL).Scan(&clock); err != nil {
		return nil, "", fmt.Errorf("read clock: %w", err)
	}

	return c, clock, tx.Commit()
}

func queryEach(ctx context.Context, tx *sql.Tx, query string, since domain.Timestamp, fn func(scanner) error) error {
	rows, err := tx.QueryContext(ctx, query, string(since))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpsertSession stores a pushed session by id. An id that already belongs
// to a different date is rejected with domain.ErrConflict.
//
// Every upsert stores MAX(sent+1, stored+1) as the version: a push built
// on a stale copy must still land above the stored version, or mirrors
// already holding that version would never pull the new content.
func (r *SyncRepository) UpsertSession(ctx context.Context, s domain.Session) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO workout_sessions (id, session_date, status, notes, started_at, completed_at,
		 created_at, updated_at, sync_version, last_synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, COALESCE(NULLIF(?, ''), `+nowSQL+`), `+nowSQL+`, ?, `+nowSQL+`)
		 ON CONFLICT(id) DO UPDATE SET
		 status = excluded.status, notes = excluded.notes,
		 started_at = excluded.started_at, completed_at = excluded.completed_at,
		 updated_at = excluded.updated_at, last_synced_at = excluded.last_synced_at,
		 sync_version = MAX(excluded.sync_version, workout_sessions.sync_version + 1)
		 WHERE workout_sessions.session_date = excluded.session_date`,
		s.ID, s.SessionDate, string(s.Status), optional(s.Notes), optionalTimestamp(s.StartedAt),
		optionalTimestamp(s.CompletedAt), string(s.CreatedAt), s.SyncVersion+1,
	)
	return upsertResult(result, err, "session")
}

// UpsertSet stores a pushed set by id. An id that already belongs to a
// different session or exercise is rejected with domain.ErrConflict. The
// version advances as in UpsertSession.
func (r *SyncRepository) UpsertSet(ctx context.Context, s domain.Set) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO workout_sets (id, session_id, exercise_id, set_number, reps, weight, duration_seconds,
		 notes, completed, created_at, updated_at, sync_version, last_synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(NULLIF(?, ''), `+nowSQL+`), `+nowSQL+`, ?, `+nowSQL+`)
		 ON CONFLICT(id) DO UPDATE SET
		 set_number = excluded.set_number, reps = excluded.reps, weight = excluded.weight,
		 duration_seconds = excluded.duration_seconds, notes = excluded.notes,
		 completed = excluded.completed, updated_at = excluded.updated_at,
		 last_synced_at = excluded.last_synced_at,
		 sync_version = MAX(excluded.sync_version, workout_sets.sync_version + 1)
		 WHERE workout_sets.session_id = excluded.session_id
		 AND workout_sets.exercise_id = excluded.exercise_id`,
		s.ID, s.SessionID, s.ExerciseID, s.SetNumber, optional(s.Reps), optional(s.Weight),
		optional(s.DurationSeconds), optional(s.Notes), s.Completed, string(s.CreatedAt), s.SyncVersion+1,
	)
	return upsertResult(result, err, "set")
}

// UpsertSessionDay stores a pushed day activation by id. The stored
// created_at is restamped so that other mirrors pull it, and the version
// advances as in UpsertSession.
func (r *SyncRepository) UpsertSessionDay(ctx context.Context, d domain.SessionDay) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO session_days (id, session_id, day_number, exercise_group_id, created_at, sync_version, last_synced_at)
		 VALUES (?, ?, ?, ?, `+nowSQL+`, ?, `+nowSQL+`)
		 ON CONFLICT(id) DO UPDATE SET
		 exercise_group_id = excluded.exercise_group_id, created_at = excluded.created_at,
		 last_synced_at = excluded.last_synced_at,
		 sync_version = MAX(excluded.sync_version, session_days.sync_version + 1)
		 WHERE session_days.session_id = excluded.session_id
		 AND session_days.day_number = excluded.day_number`,
		d.ID, d.SessionID, d.DayNumber, d.ExerciseGroupID, d.SyncVersion+1,
	)
	return upsertResult(result, err, "session day")
}

// UpsertSessionExercise stores a pushed exercise selection by id. The
// version advances as in UpsertSession.
func (r *SyncRepository) UpsertSessionExercise(ctx context.Context, e domain.SessionExercise) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO session_exercises (id, session_id, day_number, muscle_group, exercise_id, selection_order,
		 created_at, sync_version, last_synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, `+nowSQL+`, ?, `+nowSQL+`)
		 ON CONFLICT(id) DO UPDATE SET
		 muscle_group = excluded.muscle_group, exercise_id = excluded.exercise_id,
		 selection_order = excluded.selection_order, created_at = excluded.created_at,
		 last_synced_at = excluded.last_synced_at,
		 sync_version = MAX(excluded.sync_version, session_exercises.sync_version + 1)
		 WHERE session_exercises.session_id = excluded.session_id
		 AND session_exercises.day_number = excluded.day_number`,
		e.ID, e.SessionID, e.DayNumber, e.MuscleGroup, e.ExerciseID, e.SelectionOrder, e.SyncVersion+1,
	)
	return upsertResult(result, err, "session exercise")
}

func upsertResult(result sql.Result, err error, kind string) error {
	if err != nil {
		switch {
		case isUniqueConstraintError(err):
			return fmt.Errorf("%w: %s duplicates an existing record", domain.ErrConflict, kind)
		case isForeignKeyError(err):
			return fmt.Errorf("%w: %s references a missing record", domain.ErrConflict, kind)
		}
		return fmt.Errorf("upsert %s: %w", kind, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s id belongs to a different record", domain.ErrConflict, kind)
	}
	return nil
}
