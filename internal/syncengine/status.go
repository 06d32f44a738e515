package syncengine

import (
	"context"

	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/localstore"
)

// Status is a snapshot of the engine for display.
type Status struct {
	State     string                 `json:"state"`
	DBReady   bool                   `json:"dbReady"`
	Online    bool                   `json:"online"`
	Syncing   bool                   `json:"syncing"`
	LastSync  domain.Timestamp       `json:"lastSync,omitempty"`
	Watermark domain.Timestamp       `json:"watermark,omitempty"`
	LastError string                 `json:"lastError,omitempty"`
	Dirty     localstore.DirtyCounts `json:"dirty"`
}

// Status reads the current status. Store fields stay zero while the store
// is not open.
func (e *Engine) Status(ctx context.Context) Status {
	st := Status{
		State:   e.State().String(),
		DBReady: e.store.State() == localstore.StateReady,
		Online:  e.monitor.Online(),
		Syncing: e.syncing.Load(),
	}
	e.mu.Lock()
	st.LastError = e.lastError
	e.mu.Unlock()

	if !st.DBReady {
		return st
	}
	if v, ok, err := e.store.Meta(ctx, localstore.MetaLastSync); err == nil && ok {
		st.LastSync = domain.Timestamp(v)
	}
	if wm, err := e.store.Watermark(ctx); err == nil && wm != domain.Epoch {
		st.Watermark = wm
	}
	if dirty, err := e.store.DirtyCounts(ctx); err == nil {
		st.Dirty = dirty
	}
	return st
}
