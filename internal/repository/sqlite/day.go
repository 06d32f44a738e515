package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/gymtrack/internal/domain"
)

const (
	dayColumns      = "id, session_id, day_number, exercise_group_id, created_at, sync_version, last_synced_at"
	exerciseColumns = `id, session_id, day_number, muscle_group, exercise_id, selection_order,
	created_at, sync_version, last_synced_at`
)

// SessionDayRepository implements domain.SessionDayRepository using SQLite.
type SessionDayRepository struct {
	db *sql.DB
}

// NewSessionDayRepository creates a new SQLite-backed SessionDayRepository.
func NewSessionDayRepository(db *DB) *SessionDayRepository {
	return &SessionDayRepository{db: db.SqlDB}
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

func (r *SessionDayRepository) ListBySession(ctx context.Context, sessionID int64) ([]domain.SessionDay, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+dayColumns+" FROM session_days WHERE session_id = ? ORDER BY day_number", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session days: %w", err)
	}
	defer rows.Close()

	var days []domain.SessionDay
	for rows.Next() {
		d, err := scanSessionDay(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session day: %w", err)
		}
		days = append(days, *d)
	}
	return days, rows.Err()
}

// Toggle adds the day when absent. When present, the day and its exercise
// selections are removed and tombstoned.
func (r *SessionDayRepository) Toggle(ctx context.Context, sessionID int64, dayNumber int, groupID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var dayID int64
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM session_days WHERE session_id = ? AND day_number = ?",
		sessionID, dayNumber).Scan(&dayID)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_days (session_id, day_number, exercise_group_id, created_at)
			 VALUES (?, ?, ?, `+nowSQL+`)`,
			sessionID, dayNumber, groupID)
		if err != nil {
			if isForeignKeyError(err) {
				return false, fmt.Errorf("%w: unknown session or exercise group", domain.ErrNotFound)
			}
			return false, fmt.Errorf("insert session day: %w", err)
		}
		return true, tx.Commit()
	case err != nil:
		return false, fmt.Errorf("find session day: %w", err)
	}

	if err := deleteDayExercises(ctx, tx, sessionID, dayNumber); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM session_days WHERE id = ?", dayID); err != nil {
		return false, fmt.Errorf("delete session day: %w", err)
	}
	if err := insertTombstone(ctx, tx, domain.TableSessionDays, dayID); err != nil {
		return false, err
	}
	return false, tx.Commit()
}

// deleteDayExercises removes and tombstones the selections of one day.
func deleteDayExercises(ctx context.Context, tx *sql.Tx, sessionID int64, dayNumber int) error {
	rows, err := tx.QueryContext(ctx,
		"SELECT id FROM session_exercises WHERE session_id = ? AND day_number = ?",
		sessionID, dayNumber)
	if err != nil {
		return fmt.Errorf("list day exercises: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan day exercise: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list day exercises: %w", err)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "DELETE FROM session_exercises WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete day exercise: %w", err)
		}
		if err := insertTombstone(ctx, tx, domain.TableSessionExercises, id); err != nil {
			return err
		}
	}
	return nil
}

// SessionExerciseRepository implements domain.SessionExerciseRepository using SQLite.
type SessionExerciseRepository struct {
	db *sql.DB
}

// NewSessionExerciseRepository creates a new SQLite-backed SessionExerciseRepository.
func NewSessionExerciseRepository(db *DB) *SessionExerciseRepository {
	return &SessionExerciseRepository{db: db.SqlDB}
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

func (r *SessionExerciseRepository) ListBySession(ctx context.Context, sessionID int64) ([]domain.SessionExercise, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+exerciseColumns+` FROM session_exercises WHERE session_id = ?
		 ORDER BY day_number, selection_order`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session exercises: %w", err)
	}
	defer rows.Close()

	var exercises []domain.SessionExercise
	for rows.Next() {
		e, err := scanSessionExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session exercise: %w", err)
		}
		exercises = append(exercises, *e)
	}
	return exercises, rows.Err()
}

// ReplaceDay swaps the selections of one day inside a single transaction.
func (r *SessionExerciseRepository) ReplaceDay(ctx context.Context, sessionID int64, dayNumber int, selections []domain.SessionExercise) ([]domain.SessionExercise, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteDayExercises(ctx, tx, sessionID, dayNumber); err != nil {
		return nil, err
	}

	for _, sel := range selections {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_exercises (session_id, day_number, muscle_group, exercise_id, selection_order, created_at)
			 VALUES (?, ?, ?, ?, ?, `+nowSQL+`)`,
			sessionID, dayNumber, sel.MuscleGroup, sel.ExerciseID, sel.SelectionOrder)
		if err != nil {
			if isForeignKeyError(err) {
				return nil, fmt.Errorf("%w: unknown session or exercise", domain.ErrNotFound)
			}
			return nil, fmt.Errorf("insert session exercise: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	all, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var day []domain.SessionExercise
	for _, e := range all {
		if e.DayNumber == dayNumber {
			day = append(day, e)
		}
	}
	return day, nil
}
