package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/msomdec/gymtrack/internal/config"
	"github.com/msomdec/gymtrack/internal/connectivity"
	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/localstore"
	"github.com/msomdec/gymtrack/internal/logging"
	"github.com/msomdec/gymtrack/internal/remote"
	"github.com/msomdec/gymtrack/internal/syncengine"
	"github.com/msomdec/gymtrack/internal/workout"
)

// flushTimeout bounds the best-effort push after a local edit.
const flushTimeout = 5 * time.Second

// app is one command's wiring of the client components.
type app struct {
	opts   *options
	out    io.Writer
	logger *slog.Logger

	slots   *localstore.SQLiteSlots
	tokens  *remote.SlotTokens
	client  *remote.Client
	store   *localstore.Store
	monitor *connectivity.Monitor
	engine  *syncengine.Engine
	workout *workout.Service

	closers []io.Closer
}

func openApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg := opts.cfg
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	consoleLevel := max(level, slog.LevelWarn)
	if opts.verbose {
		consoleLevel = level
	}
	logger, logCloser, err := logging.New(logging.Options{
		File:         cfg.LogPath(),
		Level:        level,
		Console:      cmd.ErrOrStderr(),
		ConsoleLevel: &consoleLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	a := &app{opts: opts, out: cmd.OutOrStdout(), logger: logger, closers: []io.Closer{logCloser}}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		a.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	a.slots, err = localstore.OpenSlots(cfg.SlotsPath())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.slots)
	a.tokens = remote.NewSlotTokens(a.slots)

	a.client, err = remote.New(remote.Config{
		BaseURL: cfg.ServerURL,
		Timeout: cfg.RequestTimeout,
		Tokens:  a.tokens,
		Logger:  logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	var persister localstore.Persister
	switch cfg.Persistence {
	case config.PersistJournal:
		persister = localstore.NewJournalPersister(a.slots, cfg.SlotKey, cfg.CompactEvery)
	default:
		persister = localstore.NewSnapshotPersister(a.slots, cfg.SlotKey)
	}
	a.store = localstore.New(a.slots, persister, localstore.WithLogger(logger))
	a.monitor = connectivity.New(a.client, connectivity.Config{Interval: cfg.ProbeInterval, Logger: logger})
	a.engine = syncengine.New(a.store, a.client, a.monitor, syncengine.Config{PullInterval: cfg.PullInterval, Logger: logger})
	a.workout = workout.NewService(a.engine, a.client, logger)
	return a, nil
}

// withApp opens the components, starts the engine when start is set, and
// runs fn.
func withApp(cmd *cobra.Command, opts *options, start bool, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if start {
		if err := a.engine.Start(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

// Close releases the store before the slots it persists into.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// flush tries to push a local edit right away. The edit is already durable,
// so failure only means it waits for the next sync.
func (a *app) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	res, err := a.engine.Push(ctx)
	switch {
	case a.opts.json:
		if err != nil {
			a.logger.Info("push after local edit failed", "error", err)
		}
	case err != nil:
		fmt.Fprintln(a.out, muted.Render("saved locally; will sync when the server is reachable"))
		a.logger.Info("push after local edit failed", "error", err)
	case res.Failed > 0:
		fmt.Fprintln(a.out, warn.Render(fmt.Sprintf("%d change(s) rejected by the server", res.Failed)))
	}
}

// print writes v as JSON with --json, or the rendered text otherwise.
func (a *app) print(v any, render func() string) error {
	if a.opts.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(a.out, render())
	return err
}

// requireReady fails commands that need reference data on a mirror that
// has never been seeded.
func (a *app) requireReady() error {
	if a.engine.State() != syncengine.StateReady {
		return fmt.Errorf("%w: reference data missing; run `gymtrack init` while online", localstore.ErrNotReady)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}
