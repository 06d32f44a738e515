// Package statusui serves a read-only sync status page for a running
// client. The page subscribes to a datastar SSE stream that patches the
// status panel and signals as the engine state changes.
package statusui

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"time"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/gymtrack/internal/syncengine"
)

// DefaultInterval is how often the stream samples the engine status.
const DefaultInterval = time.Second

// Both must match the markup in status.templ.
const (
	panelID   = "sync-status"
	streamURL = "/status/stream"
)

// Source reports engine status.
type Source interface {
	Status(ctx context.Context) syncengine.Status
}

type Handler struct {
	source   Source
	interval time.Duration
	logger   *slog.Logger
}

func NewHandler(source Source, interval time.Duration, logger *slog.Logger) *Handler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{source: source, interval: interval, logger: logger}
}

// RegisterRoutes mounts the page and the stream on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Page)
	mux.HandleFunc("GET "+streamURL, h.Stream)
}

func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Page(h.source.Status(r.Context())).Render(r.Context(), w); err != nil {
		h.logger.Error("render status page", "error", err)
	}
}

// Stream sends the current status immediately and then again whenever a
// sample differs from the last one sent.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sse := datastar.NewSSE(w, r)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last *syncengine.Status
	for {
		st := h.source.Status(ctx)
		if last == nil || !reflect.DeepEqual(*last, st) {
			if err := sse.MarshalAndPatchSignals(st); err != nil {
				return
			}
			if err := sse.PatchElementTempl(Panel(st), datastar.WithSelectorID(panelID)); err != nil {
				return
			}
			last = &st
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Serve listens on addr until ctx is done.
func Serve(ctx context.Context, addr string, source Source, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	NewHandler(source, DefaultInterval, logger).RegisterRoutes(mux)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("status page listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
