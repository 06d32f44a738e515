// Package localstore is the client's embedded mirror of server state: an
// in-memory SQLite database made durable through a pluggable Persister.
package localstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/gymtrack/internal/domain"
	"modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

var (
	ErrNotReady = errors.New("local store not initialized")
	ErrClosed   = errors.New("local store closed")
)

// State is the lifecycle position of a Store.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Row maps column names to driver values: int64, float64, string, []byte
// or nil.
type Row map[string]any

// Result reports the effect of a mutation.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Seeder supplies reference data for a fresh mirror.
type Seeder interface {
	StaticData(ctx context.Context) (*domain.Catalog, error)
}

// InitResult describes what Initialize found and did.
type InitResult struct {
	Restored bool
	Seeded   bool
	SeedErr  error
}

// Store owns the mirror database. All access goes through one connection
// under one mutex, so reads never observe a half-applied batch.
type Store struct {
	slots     SlotStore
	persister Persister
	logger    *slog.Logger
	clock     func() time.Time

	mu       sync.Mutex
	db       *sql.DB
	conn     *sql.Conn
	state    State
	lastTick time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces time.Now for mutation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.clock = now }
}

// New creates an uninitialized Store.
func New(slots SlotStore, persister Persister, opts ...Option) *Store {
	s := &Store{
		slots:     slots,
		persister: persister,
		logger:    slog.Default(),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Slots returns the slot store backing this Store.
func (s *Store) Slots() SlotStore { return s.slots }

// Initialize restores the persisted image or creates a fresh database, then
// tries to seed reference data. A seeding failure is reported in the result
// and leaves the store usable; call Reseed later.
func (s *Store) Initialize(ctx context.Context, seeder Seeder) (InitResult, error) {
	restored, err := s.open(ctx)
	if err != nil {
		return InitResult{}, err
	}

	res := InitResult{Restored: restored}
	res.Seeded, res.SeedErr = s.Reseed(ctx, seeder)
	if res.SeedErr != nil {
		s.logger.Warn("reference data not seeded", "error", res.SeedErr)
	}
	return res, nil
}

func (s *Store) open(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return false, errors.New("local store already initialized")
	case StateClosed:
		return false, ErrClosed
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return false, fmt.Errorf("open local database: %w", err)
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return false, fmt.Errorf("acquire local connection: %w", err)
	}
	fail := func(err error) (bool, error) {
		conn.Close()
		db.Close()
		return false, err
	}

	img := &liveImage{conn: conn}
	restored, err := s.persister.Load(ctx, img)
	if err != nil {
		return fail(fmt.Errorf("load persisted image: %w", err))
	}
	if _, err := conn.ExecContext(ctx, schemaSQL); err != nil {
		return fail(fmt.Errorf("apply schema: %w", err))
	}
	created, err := ensureDeviceID(ctx, conn)
	if err != nil {
		return fail(err)
	}
	high, err := highestStamp(ctx, conn)
	if err != nil {
		return fail(err)
	}
	s.raiseTick(high)
	if !restored || created {
		if err := s.persister.Checkpoint(ctx, img); err != nil {
			return fail(fmt.Errorf("write initial image: %w", err))
		}
	}

	s.db, s.conn, s.state = db, conn, StateReady
	s.logger.Info("local store ready", "restored", restored)
	return restored, nil
}

// highestStamp is the latest timestamp stored anywhere in the synchronized
// tables, server stamps included.
func highestStamp(ctx context.Context, q queryer) (domain.Timestamp, error) {
	var high sql.NullString
	err := q.QueryRowContext(ctx, `SELECT MAX(ts) FROM (
		SELECT MAX(updated_at) AS ts FROM workout_sessions
		UNION ALL SELECT MAX(last_synced_at) FROM workout_sessions
		UNION ALL SELECT MAX(updated_at) FROM workout_sets
		UNION ALL SELECT MAX(last_synced_at) FROM workout_sets
		UNION ALL SELECT MAX(created_at) FROM session_days
		UNION ALL SELECT MAX(last_synced_at) FROM session_days
		UNION ALL SELECT MAX(created_at) FROM session_exercises
		UNION ALL SELECT MAX(last_synced_at) FROM session_exercises)`).Scan(&high)
	if err != nil {
		return "", fmt.Errorf("read highest stamp: %w", err)
	}
	return domain.Timestamp(high.String), nil
}

func ensureDeviceID(ctx context.Context, conn *sql.Conn) (bool, error) {
	res, err := conn.ExecContext(ctx,
		"INSERT OR IGNORE INTO sync_meta (key, value) VALUES (?, ?)", MetaDeviceID, uuid.NewString())
	if err != nil {
		return false, fmt.Errorf("assign device id: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Reseed loads reference data through seeder unless the mirror already has
// it. It reports whether reference data is present afterwards.
func (s *Store) Reseed(ctx context.Context, seeder Seeder) (bool, error) {
	counts, err := s.CatalogCounts(ctx)
	if err != nil {
		return false, err
	}
	if counts.Seeded() {
		return true, nil
	}
	if seeder == nil {
		return false, errors.New("no reference data source")
	}

	catalog, err := seeder.StaticData(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch reference data: %w", err)
	}
	if catalog == nil || catalog.Empty() {
		return false, errors.New("server returned no reference data")
	}
	if err := s.Batch(ctx, func(tx *Tx) error { return tx.SeedCatalog(*catalog) }); err != nil {
		return false, err
	}
	s.logger.Info("reference data seeded",
		"exercises", len(catalog.Exercises),
		"groups", len(catalog.ExerciseGroups),
		"schedule", len(catalog.Schedule))
	return true, nil
}

// Close releases the database. The slot store stays open; its owner closes
// it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	err := s.closeLocked()
	s.state = StateClosed
	return err
}

func (s *Store) closeLocked() error {
	if s.conn == nil {
		return nil
	}
	err := errors.Join(s.conn.Close(), s.db.Close())
	s.conn, s.db = nil, nil
	return err
}

// Reset discards the mirror and every persisted slot. The store returns to
// uninitialized and may be initialized again.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrClosed
	}
	if err := s.closeLocked(); err != nil {
		return err
	}
	s.state = StateUninitialized
	if err := s.slots.Reset(ctx); err != nil {
		return fmt.Errorf("reset slots: %w", err)
	}
	return nil
}

func (s *Store) readyLocked() error {
	switch s.state {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}
}

// raiseTick moves the tick floor up to ts, so the next local write stamps
// after every stamp already in the mirror even when the local clock lags
// the server's.
func (s *Store) raiseTick(ts domain.Timestamp) {
	if ts == "" {
		return
	}
	if t := ts.Time(); t.After(s.lastTick) {
		s.lastTick = t
	}
}

// tick returns a mutation timestamp strictly after the previous one, so a
// write never shares updated_at with the write it supersedes.
func (s *Store) tick() domain.Timestamp {
	now := s.clock().UTC().Truncate(time.Millisecond)
	if !now.After(s.lastTick) {
		now = s.lastTick.Add(time.Millisecond)
	}
	s.lastTick = now
	return domain.NewTimestamp(now)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// read runs fn against the connection under the store lock.
func (s *Store) read(ctx context.Context, fn func(q queryer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}
	return fn(s.conn)
}

// Query runs a read and materializes every row before returning. No match
// yields an empty slice.
func (s *Store) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	var rows []Row
	err := s.read(ctx, func(q queryer) error {
		var err error
		rows, err = queryRows(ctx, q, query, args)
		return err
	})
	return rows, err
}

// Get returns the first row of a read, or nil.
func (s *Store) Get(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Run executes one mutation and flushes it through the persister. A flush
// failure is returned even though the in-memory write stands.
func (s *Store) Run(ctx context.Context, query string, args ...any) (Result, error) {
	var res Result
	err := s.Batch(ctx, func(tx *Tx) error {
		var err error
		res, err = tx.Exec(query, args...)
		return err
	})
	return res, err
}

// Batch runs fn in one transaction and flushes its mutations once.
func (s *Store) Batch(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}

	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{ctx: ctx, tx: sqlTx, now: s.tick()}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.raiseTick(tx.high)

	if len(tx.stmts) == 0 {
		return nil
	}
	if err := s.persister.Flush(ctx, &liveImage{conn: s.conn}, tx.stmts); err != nil {
		s.logger.Error("persist local store", "error", err)
		return fmt.Errorf("persist local store: %w", err)
	}
	return nil
}

// Checkpoint writes the full image through the persister.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}
	return s.persister.Checkpoint(ctx, &liveImage{conn: s.conn})
}

// Tx is a write transaction inside Batch.
type Tx struct {
	ctx   context.Context
	tx    *sql.Tx
	now   domain.Timestamp
	high  domain.Timestamp
	stmts []Statement
}

// Now is the timestamp every write in this batch stamps with.
func (t *Tx) Now() domain.Timestamp { return t.now }

// syncStamp is the last_synced_at for a row arriving from the server with
// stamp ts. It also records ts so the store's tick stays ahead of it.
func (t *Tx) syncStamp(ts domain.Timestamp) domain.Timestamp {
	at := domain.MaxTimestamp(t.now, ts)
	t.high = domain.MaxTimestamp(t.high, at)
	return at
}

// Exec runs a mutation and records it for the persister.
func (t *Tx) Exec(query string, args ...any) (Result, error) {
	st, err := newStatement(query, args)
	if err != nil {
		return Result{}, err
	}
	r, err := t.tx.ExecContext(t.ctx, query, st.values()...)
	if err != nil {
		return Result{}, err
	}
	t.stmts = append(t.stmts, st)

	id, _ := r.LastInsertId()
	n, _ := r.RowsAffected()
	return Result{LastInsertID: id, RowsAffected: n}, nil
}

// Query reads inside the transaction.
func (t *Tx) Query(query string, args ...any) ([]Row, error) {
	return queryRows(t.ctx, t.tx, query, args)
}

func queryRows(ctx context.Context, q queryer, query string, args []any) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// serializer and restorer are implemented by modernc.org/sqlite
// connections.
type serializer interface {
	Serialize() ([]byte, error)
}

type restorer interface {
	NewRestore(srcURI string) (*sqlite.Backup, error)
}

type liveImage struct {
	conn *sql.Conn
}

func (img *liveImage) Serialize(ctx context.Context) ([]byte, error) {
	var data []byte
	err := img.conn.Raw(func(dc any) error {
		s, ok := dc.(serializer)
		if !ok {
			return fmt.Errorf("driver connection %T cannot serialize", dc)
		}
		var err error
		data, err = s.Serialize()
		return err
	})
	return data, err
}

// Deserialize loads data into the live connection through the online
// backup API. The driver's Deserialize passes FREEONCLOSE on a Go-owned
// buffer and crashes on Close, so it is not used.
func (img *liveImage) Deserialize(ctx context.Context, data []byte) error {
	f, err := os.CreateTemp("", "gymtrack-restore-*.db")
	if err != nil {
		return fmt.Errorf("stage image: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("stage image: %w", err)
	}

	return img.conn.Raw(func(dc any) error {
		r, ok := dc.(restorer)
		if !ok {
			return fmt.Errorf("driver connection %T cannot restore", dc)
		}
		bk, err := r.NewRestore(path)
		if err != nil {
			return fmt.Errorf("start restore: %w", err)
		}
		for more := true; more; {
			if more, err = bk.Step(-1); err != nil {
				bk.Finish()
				return fmt.Errorf("restore image: %w", err)
			}
		}
		return bk.Finish()
	})
}

func (img *liveImage) Replay(ctx context.Context, stmts []Statement) error {
	tx, err := img.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.SQL, st.values()...); err != nil {
			return err
		}
	}
	return tx.Commit()
}
