// Package connectivity tracks whether the server is reachable.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultInterval = 15 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// Prober checks the server once. Any error counts as unreachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Event is a connectivity transition.
type Event struct {
	Online bool
	At     time.Time
}

// Config holds monitor settings. Zero values take the defaults.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Monitor probes the server on an interval and publishes transitions.
// It starts offline until the first successful probe or report.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	online bool
	subs   []chan Event
}

func New(prober Prober, cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		prober:   prober,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe returns a channel of transitions. A slow subscriber only sees
// the latest transition it missed; sends never block the monitor.
func (m *Monitor) Subscribe() <-chan Event {
	ch := make(chan Event, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Check probes once and records the outcome.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Probe(ctx)
	if err != nil {
		m.logger.Debug("server probe failed", "error", err)
	}
	m.set(err == nil)
	return err == nil
}

// ReportFailure flips to offline after a transport error seen elsewhere.
func (m *Monitor) ReportFailure(err error) {
	m.logger.Debug("transport failure reported", "error", err)
	m.set(false)
}

// ReportSuccess flips to online after a request reached the server.
func (m *Monitor) ReportSuccess() { m.set(true) }

// Run probes immediately, then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) set(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.online == online {
		return
	}
	m.online = online

	if online {
		m.logger.Info("server reachable")
	} else {
		m.logger.Warn("server unreachable")
	}
	ev := Event{Online: online, At: time.Now()}
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
