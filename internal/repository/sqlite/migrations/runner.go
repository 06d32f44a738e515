// Package migrations applies the server schema from embedded SQL files.
// Files are named NNN_description.sql and applied in version order.
package migrations

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Migration is one embedded schema step.
type Migration struct {
	Version int
	File    string
}

const ledgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`

// Available returns every embedded migration in version order.
func Available() ([]Migration, error) {
	names, err := files.ReadDir(".")
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(names))
	for _, e := range names {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		version, err := strconv.Atoi(prefix)
		if !ok || err != nil {
			return nil, fmt.Errorf("migration %s: name must start with a version number", name)
		}
		out = append(out, Migration{Version: version, File: name})
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("migrations %s and %s share version %d", out[i-1].File, out[i].File, out[i].Version)
		}
	}
	return out, nil
}

// Pending lists the files Run would apply.
func Pending(ctx context.Context, db *sql.DB) ([]string, error) {
	todo, err := pending(ctx, db)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(todo))
	for i, m := range todo {
		names[i] = m.File
	}
	return names, nil
}

func pending(ctx context.Context, db *sql.DB) ([]Migration, error) {
	if _, err := db.ExecContext(ctx, ledgerDDL); err != nil {
		return nil, fmt.Errorf("create migration ledger: %w", err)
	}
	done := map[string]struct{}{}
	rows, err := db.QueryContext(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		done[f] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	all, err := Available()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(m Migration) bool {
		_, ok := done[m.File]
		return ok
	}), nil
}

// Run applies every pending migration, each with its ledger row in one
// transaction, so a failed file leaves no trace.
func Run(ctx context.Context, db *sql.DB) error {
	todo, err := pending(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range todo {
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("migration %s: %w", m.File, err)
		}
		slog.Info("migration applied", "version", m.Version, "file", m.File)
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m Migration) error {
	body, err := files.ReadFile(m.File)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", m.File); err != nil {
		return err
	}
	return tx.Commit()
}
