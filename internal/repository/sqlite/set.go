package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/gymtrack/internal/domain"
)

const setColumns = `id, session_id, exercise_id, set_number, reps, weight, duration_seconds,
	notes, completed, created_at, updated_at, sync_version, last_synced_at`

// SetRepository implements domain.SetRepository using SQLite.
type SetRepository struct {
	db *sql.DB
}

// NewSetRepository creates a new SQLite-backed SetRepository.
func NewSetRepository(db *DB) *SetRepository {
	return &SetRepository{db: db.SqlDB}
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

// Create inserts a set and fills in its server-assigned fields.
func (r *SetRepository) Create(ctx context.Context, s *domain.Set) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO workout_sets (session_id, exercise_id, set_number, reps, weight, duration_seconds,
		 notes, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, `+nowSQL+`, `+nowSQL+`)`,
		s.SessionID, s.ExerciseID, s.SetNumber, optional(s.Reps), optional(s.Weight),
		optional(s.DurationSeconds), optional(s.Notes), s.Completed,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrDuplicateSet
		}
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: unknown session or exercise", domain.ErrNotFound)
		}
		return fmt.Errorf("insert set: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get set id: %w", err)
	}

	created, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*s = *created
	return nil
}

func (r *SetRepository) GetByID(ctx context.Context, id int64) (*domain.Set, error) {
	s, err := scanSet(r.db.QueryRowContext(ctx,
		"SELECT "+setColumns+" FROM workout_sets WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "get set")
	}
	return s, nil
}

func (r *SetRepository) ListBySession(ctx context.Context, sessionID int64) ([]domain.Set, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+setColumns+` FROM workout_sets WHERE session_id = ?
		 ORDER BY exercise_id, set_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}
	defer rows.Close()

	var sets []domain.Set
	for rows.Next() {
		s, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan set: %w", err)
		}
		sets = append(sets, *s)
	}
	return sets, rows.Err()
}

// Update applies u and bumps the sync version.
func (r *SetRepository) Update(ctx context.Context, id int64, u domain.SetUpdate) (*domain.Set, error) {
	clause, args := domain.SetClause(u.Assignments())
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		"UPDATE workout_sets SET "+clause+
			", updated_at = "+nowSQL+", sync_version = sync_version + 1 WHERE id = ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update set: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes the set and leaves a tombstone for mirrors.
func (r *SetRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM workout_sets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete set: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	if err := insertTombstone(ctx, tx, domain.TableSets, id); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTombstone(ctx context.Context, tx *sql.Tx, table string, id int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO sync_tombstones (table_name, record_id, deleted_at) VALUES (?, ?, "+nowSQL+")",
		table, id)
	if err != nil {
		return fmt.Errorf("record tombstone: %w", err)
	}
	return nil
}
