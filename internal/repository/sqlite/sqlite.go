// Package sqlite is the server-side store: the authoritative copy of every
// workout record plus the change feed mirrors pull from.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/repository/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// nowSQL stamps rows from SQLite's clock so that stamping and change-feed
// reads are ordered by the single connection.
const nowSQL = domain.SQLNow

// DB owns the server database handle.
type DB struct {
	SqlDB *sql.DB
}

// New opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes every statement and transaction.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{SqlDB: db}, nil
}

// Migrate applies pending schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, db.SqlDB)
}

// Close closes the underlying handle.
func (db *DB) Close() error {
	return db.SqlDB.Close()
}

func (db *DB) Sessions() *SessionRepository                 { return NewSessionRepository(db) }
func (db *DB) Sets() *SetRepository                         { return NewSetRepository(db) }
func (db *DB) SessionDays() *SessionDayRepository           { return NewSessionDayRepository(db) }
func (db *DB) SessionExercises() *SessionExerciseRepository { return NewSessionExerciseRepository(db) }
func (db *DB) Catalog() *CatalogRepository                  { return NewCatalogRepository(db) }
func (db *DB) Config() *ConfigRepository                    { return NewConfigRepository(db) }
func (db *DB) Sync() *SyncRepository                        { return NewSyncRepository(db) }

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// notFound maps sql.ErrNoRows to domain.ErrNotFound and wraps anything else.
func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// nullTimestamp converts an optional column into *domain.Timestamp.
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

// optional turns a nil pointer into a SQL NULL argument.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func optionalTimestamp(p *domain.Timestamp) any {
	if p == nil {
		return nil
	}
	return string(*p)
}
