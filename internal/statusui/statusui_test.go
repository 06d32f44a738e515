package statusui

import (
	"bufio"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/msomdec/gymtrack/internal/localstore"
	"github.com/msomdec/gymtrack/internal/syncengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu sync.Mutex
	st syncengine.Status
}

func (f *fakeSource) Status(context.Context) syncengine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeSource) set(st syncengine.Status) {
	f.mu.Lock()
	f.st = st
	f.mu.Unlock()
}

func newServer(t *testing.T, src Source) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(src, 10*time.Millisecond, slog.New(slog.DiscardHandler)).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPageRendersPanel(t *testing.T) {
	src := &fakeSource{st: syncengine.Status{
		State:     "ready",
		Online:    true,
		LastSync:  "2024-01-01T10:00:00.000Z",
		LastError: "<script>",
		Dirty:     localstore.DirtyCounts{Sets: 2, Sessions: 1},
	}}
	srv := newServer(t, src)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body strings.Builder
	_, err = bufio.NewReader(resp.Body).WriteTo(&body)
	require.NoError(t, err)
	html := body.String()
	assert.Contains(t, html, `id="sync-status"`)
	assert.Contains(t, html, "@get('/status/stream')")
	assert.Contains(t, html, "2024-01-01T10:00:00.000Z")
	assert.Contains(t, html, "<dd>3</dd>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "<p class=\"error\"><script>")
}

func TestPanelRendersIdleOfflineState(t *testing.T) {
	var b strings.Builder
	err := Panel(syncengine.Status{State: "ready"}).Render(context.Background(), &b)
	require.NoError(t, err)

	html := b.String()
	assert.True(t, strings.HasPrefix(html, `<section id="`+panelID+`">`))
	assert.Contains(t, html, `<dd class="offline">offline</dd>`)
	assert.Contains(t, html, "<dd>idle</dd>")
	assert.Contains(t, html, "<dd>never</dd>")
	assert.Contains(t, html, "<dd>0</dd>")
	assert.NotContains(t, html, `class="error"`)
}

func TestUnknownPathIsNotFound(t *testing.T) {
	srv := newServer(t, &fakeSource{})
	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamPatchesOnChange(t *testing.T) {
	src := &fakeSource{st: syncengine.Status{State: "ready"}}
	srv := newServer(t, src)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/status/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(substr string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), substr) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", substr, lines.Err())
	}

	waitFor("datastar-patch-signals")
	waitFor(`"online":false`)
	waitFor("datastar-patch-elements")

	src.set(syncengine.Status{State: "ready", Online: true, Syncing: true})
	waitFor(`"online":true`)
	waitFor("syncing")
}
