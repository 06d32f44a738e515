package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/msomdec/gymtrack/internal/domain"
)

const sessionColumns = `id, session_date, status, notes, started_at, completed_at,
	created_at, updated_at, sync_version, last_synced_at`

// SessionRepository implements domain.SessionRepository using SQLite.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SQLite-backed SessionRepository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db.SqlDB}
}

func scanSession(row scanner) (*domain.Session, error) {
	var (
		s                               domain.Session
		notes, started, completed, sync sql.NullString
	)
	err := row.Scan(&s.ID, &s.SessionDate, &s.Status, &notes, &started, &completed,
		&s.CreatedAt, &s.UpdatedAt, &s.SyncVersion, &sync)
	if err != nil {
		return nil, err
	}
	s.Notes = nullString(notes)
	s.StartedAt = nullTimestamp(started)
	s.CompletedAt = nullTimestamp(completed)
	s.LastSyncedAt = nullTimestamp(sync)
	return &s, nil
}

// Create starts the session for date. A second session on the same date
// fails with domain.ErrDuplicateSession.
func (r *SessionRepository) Create(ctx context.Context, date string) (*domain.Session, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO workout_sessions (session_date, status, started_at, created_at, updated_at)
		 VALUES (?, 'in_progress', `+nowSQL+`, `+nowSQL+`, `+nowSQL+`)`,
		date,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, domain.ErrDuplicateSession
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get session id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM workout_sessions WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err, "get session")
	}
	return s, nil
}

func (r *SessionRepository) GetByDate(ctx context.Context, date string) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM workout_sessions WHERE session_date = ?", date))
	if err != nil {
		return nil, notFound(err, "get session by date")
	}
	return s, nil
}

// ListCompleted returns completed sessions, newest date first.
func (r *SessionRepository) ListCompleted(ctx context.Context, limit, offset int) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+` FROM workout_sessions
		 WHERE status = 'completed'
		 ORDER BY session_date DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) CountCompleted(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM workout_sessions WHERE status = 'completed'").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completed sessions: %w", err)
	}
	return n, nil
}

// Update applies u and bumps the sync version so the change is pulled.
func (r *SessionRepository) Update(ctx context.Context, id int64, u domain.SessionUpdate) (*domain.Session, error) {
	clause, args := domain.SetClause(u.Assignments())
	for _, col := range u.LifecycleColumns() {
		clause += ", " + col + " = COALESCE(" + col + ", " + nowSQL + ")"
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx,
		"UPDATE workout_sessions SET "+clause+
			", updated_at = "+nowSQL+", sync_version = sync_version + 1 WHERE id = ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update session: %w", err)
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
