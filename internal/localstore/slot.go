package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/msomdec/gymtrack/internal/domain"
	_ "modernc.org/sqlite"
)

// Well-known slot keys.
const (
	DefaultSlotKey = "gym-tracker-db"
	TokenSlotKey   = "auth-token"
)

// SlotStore is durable storage for named blobs and append-only journals.
type SlotStore interface {
	// Get returns domain.ErrNotFound when the slot is empty.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error

	// Append adds an entry to the named journal and returns how many
	// entries it now holds.
	Append(ctx context.Context, journal string, entry []byte) (int, error)
	Entries(ctx context.Context, journal string) ([][]byte, error)
	// Checkpoint stores data under key and empties journal atomically.
	Checkpoint(ctx context.Context, key, journal string, data []byte) error

	// Reset removes every slot and journal entry.
	Reset(ctx context.Context) error
}

const slotSchema = `
CREATE TABLE IF NOT EXISTS slots (
    key TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS journal (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    entry BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_name ON journal(name, id);
`

// SQLiteSlots implements SlotStore as BLOB rows in a SQLite file.
type SQLiteSlots struct {
	db *sql.DB
}

// OpenSlots opens (creating if needed) the slot database at path.
func OpenSlots(path string) (*SQLiteSlots, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create slot directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open slot database: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, slotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create slot tables: %w", err)
	}
	return &SQLiteSlots{db: db}, nil
}

// Close closes the slot database.
func (s *SQLiteSlots) Close() error {
	return s.db.Close()
}

func (s *SQLiteSlots) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM slots WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get slot %s: %w", key, err)
	}
	return data, nil
}

func (s *SQLiteSlots) Put(ctx context.Context, key string, data []byte) error {
	if err := putSlot(ctx, s.db, key, data); err != nil {
		return fmt.Errorf("put slot %s: %w", key, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putSlot(ctx context.Context, db execer, key string, data []byte) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO slots (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, string(domain.Now()))
	return err
}

func (s *SQLiteSlots) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM slots WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete slot %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteSlots) Append(ctx context.Context, journal string, entry []byte) (int, error) {
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO journal (name, entry) VALUES (?, ?)", journal, entry); err != nil {
		return 0, fmt.Errorf("append to journal %s: %w", journal, err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM journal WHERE name = ?", journal).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal %s: %w", journal, err)
	}
	return n, nil
}

func (s *SQLiteSlots) Entries(ctx context.Context, journal string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT entry FROM journal WHERE name = ? ORDER BY id", journal)
	if err != nil {
		return nil, fmt.Errorf("read journal %s: %w", journal, err)
	}
	defer rows.Close()

	var entries [][]byte
	for rows.Next() {
		var entry []byte
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *SQLiteSlots) Checkpoint(ctx context.Context, key, journal string, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint: %w", err)
	}
	defer tx.Rollback()

	if err := putSlot(ctx, tx, key, data); err != nil {
		return fmt.Errorf("write base image: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM journal WHERE name = ?", journal); err != nil {
		return fmt.Errorf("truncate journal: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteSlots) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM slots", "DELETE FROM journal"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("reset slots: %w", err)
		}
	}
	return tx.Commit()
}
