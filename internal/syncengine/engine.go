// Package syncengine keeps the local mirror and the server converged: it
// pulls server changes into the Local Store and pushes dirty local rows.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/msomdec/gymtrack/internal/connectivity"
	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/localstore"
	"github.com/msomdec/gymtrack/internal/remote"
)

// DefaultPullInterval is the period of scheduled pulls.
const DefaultPullInterval = 30 * time.Second

// Remote is the server surface the engine needs.
type Remote interface {
	localstore.Seeder
	CycleStart(ctx context.Context) (*remote.CycleStart, error)
	Pull(ctx context.Context, since domain.Timestamp) (*domain.Changes, error)
	Push(ctx context.Context, batch *domain.PushBatch) (*domain.PushResult, error)
	SetClientID(id string)
}

// State is the engine lifecycle position.
type State int32

const (
	StateUninitialized State = iota
	// StateInitializing covers an open store still missing reference data.
	StateInitializing
	StateReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Config configures an Engine.
type Config struct {
	PullInterval time.Duration
	Logger       *slog.Logger
}

// Engine owns the sync cycle for one Local Store.
type Engine struct {
	store   *localstore.Store
	remote  Remote
	monitor *connectivity.Monitor
	logger  *slog.Logger

	state    atomic.Int32
	interval atomic.Int64
	syncing  atomic.Bool

	// cycle serializes every pull and push.
	cycle sync.Mutex
	pulls singleflight.Group

	pushTrigger     chan struct{}
	intervalChanged chan struct{}

	mu        sync.Mutex
	lastError string
}

func New(store *localstore.Store, rem Remote, monitor *connectivity.Monitor, cfg Config) *Engine {
	if cfg.PullInterval <= 0 {
		cfg.PullInterval = DefaultPullInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		store:           store,
		remote:          rem,
		monitor:         monitor,
		logger:          cfg.Logger,
		pushTrigger:     make(chan struct{}, 1),
		intervalChanged: make(chan struct{}, 1),
	}
	e.interval.Store(int64(cfg.PullInterval))
	return e
}

// State returns the lifecycle state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Store returns the Local Store the engine syncs.
func (e *Engine) Store() *localstore.Store { return e.store }

// Start initializes the Local Store. Missing reference data leaves the
// engine initializing; it retries seeding on the next pull or online
// transition.
func (e *Engine) Start(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateUninitialized), int32(StateInitializing)) {
		return fmt.Errorf("sync engine already started")
	}

	res, err := e.store.Initialize(ctx, e.remote)
	if err != nil {
		e.state.Store(int32(StateUninitialized))
		return fmt.Errorf("initialize local store: %w", err)
	}
	id, err := e.store.DeviceID(ctx)
	if err != nil {
		e.state.Store(int32(StateUninitialized))
		return err
	}
	e.remote.SetClientID(id)

	if res.SeedErr != nil {
		e.Observe(res.SeedErr)
	}
	if res.Seeded {
		e.becomeReady(ctx)
	}
	e.logger.Info("sync engine started",
		"state", e.State().String(), "restored", res.Restored, "seeded", res.Seeded)
	return nil
}

// ensureReady retries seeding for a store that opened without reference
// data. It reports whether the engine is ready.
func (e *Engine) ensureReady(ctx context.Context) bool {
	switch e.State() {
	case StateReady:
		return true
	case StateUninitialized:
		return false
	}
	seeded, err := e.store.Reseed(ctx, e.remote)
	if err != nil {
		e.Observe(err)
		return false
	}
	if seeded {
		e.becomeReady(ctx)
	}
	return seeded
}

func (e *Engine) becomeReady(ctx context.Context) {
	if !e.state.CompareAndSwap(int32(StateInitializing), int32(StateReady)) {
		return
	}
	if err := e.refreshCycleStart(ctx); err != nil {
		e.logger.Debug("cycle start not refreshed", "error", err)
	}
}

// refreshCycleStart copies the server's rotation anchor into the mirror.
func (e *Engine) refreshCycleStart(ctx context.Context) error {
	cs, err := e.remote.CycleStart(ctx)
	if err != nil {
		e.Observe(err)
		return err
	}
	if cs.StartDate == "" {
		return nil
	}
	return e.store.SetConfig(ctx, domain.ConfigCycleStartDate, cs.StartDate)
}

// PullResult summarizes one merge.
type PullResult struct {
	Received  int              `json:"received"`
	Applied   int              `json:"applied"`
	Deleted   int              `json:"deleted"`
	Watermark domain.Timestamp `json:"watermark"`
}

// Pull fetches server changes since the watermark and merges them.
func (e *Engine) Pull(ctx context.Context) (*PullResult, error) {
	var res *PullResult
	err := e.run(ctx, func() error {
		var err error
		res, err = e.pull(ctx)
		return err
	})
	return res, err
}

// scheduledPull joins an in-flight scheduled pull instead of queueing
// another one.
func (e *Engine) scheduledPull(ctx context.Context) {
	_, err, shared := e.pulls.Do("pull", func() (any, error) {
		return e.Pull(ctx)
	})
	if shared {
		e.logger.Debug("scheduled pull joined in-flight pull")
	}
	e.quiet("scheduled pull", err)
}

func (e *Engine) pull(ctx context.Context) (*PullResult, error) {
	since, err := e.store.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	changes, err := e.remote.Pull(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("pull: %w", err)
	}

	res := &PullResult{Received: changes.Len(), Watermark: domain.MaxTimestamp(since, changes.Timestamp)}
	err = e.store.Batch(ctx, func(tx *localstore.Tx) error {
		count := func(applied bool, err error) error {
			if applied {
				res.Applied++
			}
			return err
		}
		for _, s := range changes.Sessions {
			if err := count(tx.MergeSession(s)); err != nil {
				return err
			}
		}
		for _, d := range changes.SessionDays {
			if err := count(tx.MergeSessionDay(d)); err != nil {
				return err
			}
		}
		for _, x := range changes.SessionExercises {
			if err := count(tx.MergeSessionExercise(x)); err != nil {
				return err
			}
		}
		for _, s := range changes.Sets {
			if err := count(tx.MergeSet(s)); err != nil {
				return err
			}
		}
		for _, ts := range changes.Deletions {
			removed, err := tx.ApplyTombstone(ts)
			if err != nil {
				return err
			}
			if removed {
				res.Deleted++
			}
		}
		if err := tx.SetMeta(localstore.MetaWatermark, string(res.Watermark)); err != nil {
			return err
		}
		return tx.SetMeta(localstore.MetaLastSync, string(tx.Now()))
	})
	if err != nil {
		return nil, fmt.Errorf("merge pulled changes: %w", err)
	}

	if res.Received > 0 {
		e.logger.Info("pulled changes",
			"received", res.Received, "applied", res.Applied, "deleted", res.Deleted, "watermark", res.Watermark)
	}
	return res, nil
}

// Push sends every dirty row in one batch. With nothing dirty no request
// is made and the result is zero.
func (e *Engine) Push(ctx context.Context) (*domain.PushResult, error) {
	var res *domain.PushResult
	err := e.run(ctx, func() error {
		var err error
		res, err = e.push(ctx)
		return err
	})
	return res, err
}

func (e *Engine) push(ctx context.Context) (*domain.PushResult, error) {
	batch, err := e.store.Unsynced(ctx)
	if err != nil {
		return nil, err
	}
	if batch.Len() == 0 {
		return &domain.PushResult{}, nil
	}

	res, err := e.remote.Push(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	marked, err := e.store.MarkSynced(ctx, batch, res)
	if err != nil {
		return res, fmt.Errorf("mark pushed rows synced: %w", err)
	}
	for _, c := range res.Conflicts {
		e.logger.Warn("push rejected record", "type", c.Type, "id", c.ID, "error", c.Error)
	}
	e.logger.Info("pushed changes",
		"sent", batch.Len(), "synced", res.Synced, "failed", res.Failed, "marked", marked)
	if err := e.store.SetMeta(ctx, localstore.MetaLastSync, string(domain.Now())); err != nil {
		return res, err
	}
	return res, nil
}

// SyncResult is the outcome of SyncNow.
type SyncResult struct {
	Push *domain.PushResult `json:"push"`
	Pull *PullResult        `json:"pull"`
}

// SyncNow pushes pending work, then pulls, in one cycle.
func (e *Engine) SyncNow(ctx context.Context) (*SyncResult, error) {
	res := &SyncResult{}
	err := e.run(ctx, func() error {
		var err error
		if res.Push, err = e.push(ctx); err != nil {
			return err
		}
		if err := e.refreshCycleStart(ctx); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("refresh cycle start: %w", err)
		}
		res.Pull, err = e.pull(ctx)
		return err
	})
	return res, err
}

// run executes one cycle step under the cycle lock with the syncing flag
// raised. Outcomes feed the connectivity monitor and the status.
func (e *Engine) run(ctx context.Context, fn func() error) error {
	e.cycle.Lock()
	defer e.cycle.Unlock()

	if !e.ensureReady(ctx) {
		return localstore.ErrNotReady
	}

	e.syncing.Store(true)
	defer e.syncing.Store(false)

	err := fn()
	e.Observe(err)
	return err
}

// Observe routes the outcome of a server call to the monitor and records it
// for Status.
func (e *Engine) Observe(err error) {
	switch {
	case err == nil:
		e.monitor.ReportSuccess()
	case errors.Is(err, domain.ErrOffline):
		e.monitor.ReportFailure(err)
	case errors.Is(err, context.Canceled):
		return
	default:
		var apiErr *remote.APIError
		if errors.As(err, &apiErr) {
			// The server answered, so it is reachable.
			e.monitor.ReportSuccess()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		e.lastError = ""
	} else {
		e.lastError = err.Error()
	}
}

// quiet logs background failures. Not-ready and offline are expected and
// stay at debug level.
func (e *Engine) quiet(op string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, localstore.ErrNotReady),
		errors.Is(err, localstore.ErrClosed),
		errors.Is(err, domain.ErrOffline),
		errors.Is(err, context.Canceled):
		e.logger.Debug(op+" skipped", "error", err)
	default:
		e.logger.Error(op+" failed", "error", err)
	}
}

// NotifyMutation requests an opportunistic push. Calls coalesce while a
// push is pending.
func (e *Engine) NotifyMutation() {
	select {
	case e.pushTrigger <- struct{}{}:
	default:
	}
}

// PullInterval returns the current scheduled pull period.
func (e *Engine) PullInterval() time.Duration { return time.Duration(e.interval.Load()) }

// SetPullInterval changes the scheduled pull period of a running engine.
func (e *Engine) SetPullInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	if time.Duration(e.interval.Swap(int64(d))) == d {
		return
	}
	e.logger.Info("pull interval changed", "interval", d)
	select {
	case e.intervalChanged <- struct{}{}:
	default:
	}
}

// Run drives the monitor, the scheduled pull loop and the push trigger
// loop until ctx is done. There is no periodic push.
func (e *Engine) Run(ctx context.Context) error {
	events := e.monitor.Subscribe()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.monitor.Run(ctx) })
	g.Go(func() error { return e.pullLoop(ctx) })
	g.Go(func() error { return e.pushLoop(ctx) })
	g.Go(func() error { return e.watch(ctx, events) })

	return g.Wait()
}

func (e *Engine) pullLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.PullInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-e.intervalChanged:
			ticker.Reset(e.PullInterval())

		case <-ticker.C:
			if e.monitor.Online() {
				e.scheduledPull(ctx)
			}
		}
	}
}

func (e *Engine) pushLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-e.pushTrigger:
			if !e.monitor.Online() {
				continue
			}
			_, err := e.Push(ctx)
			e.quiet("triggered push", err)
		}
	}
}

// watch reacts to connectivity transitions: coming online flushes pending
// work and pulls immediately.
func (e *Engine) watch(ctx context.Context, events <-chan connectivity.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			if !ev.Online {
				continue
			}
			e.logger.Info("back online, syncing")
			_, err := e.Push(ctx)
			e.quiet("reconnect push", err)
			e.scheduledPull(ctx)
		}
	}
}
