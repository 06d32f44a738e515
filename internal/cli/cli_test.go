package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/msomdec/gymtrack/internal/apitest"
	"github.com/msomdec/gymtrack/internal/domain"
	"github.com/msomdec/gymtrack/internal/localstore"
	"github.com/msomdec/gymtrack/internal/syncengine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t       *testing.T
	srv     *apitest.Server
	dataDir string
}

func newClient(t *testing.T) *client {
	t.Helper()
	t.Chdir(t.TempDir())
	return &client{t: t, srv: apitest.New(t), dataDir: filepath.Join(t.TempDir(), "data")}
}

func (c *client) run(args ...string) (string, error) {
	c.t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--server", c.srv.URL, "--data-dir", c.dataDir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *client) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "gymtrack %s", strings.Join(args, " "))
	return out
}

func (c *client) runJSON(v any, args ...string) {
	c.t.Helper()
	out := c.mustRun(append([]string{"--json"}, args...)...)
	require.NoError(c.t, json.Unmarshal([]byte(out), v), out)
}

func (c *client) loggedIn() {
	c.t.Helper()
	assert.Contains(c.t, c.mustRun("login", "--password", apitest.Password), "logged in")
	assert.Contains(c.t, c.mustRun("init"), "ready")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	c := newClient(t)
	_, err := c.run("login", "--password", "nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestWorkoutFlow(t *testing.T) {
	c := newClient(t)
	c.loggedIn()

	var session domain.Session
	c.runJSON(&session, "session", "start", apitest.CycleStart)
	require.NotZero(t, session.ID)
	sid := session.ID
	id := func(n int64) string { return strconv.FormatInt(n, 10) }

	assert.Contains(t, c.mustRun("day", "toggle", id(sid), "1"), "day 1 active")
	assert.Contains(t, c.mustRun("select", id(sid), "1", "1", "4"), "Pull-up")

	var set domain.Set
	c.runJSON(&set, "set", "log", "--session", id(sid), "--exercise", "1", "--reps", "8", "--weight", "20")
	assert.Equal(t, 1, set.SetNumber)
	require.NotNil(t, set.LastSyncedAt, "pushed right after logging")

	var next domain.Set
	c.runJSON(&next, "set", "log", "--session", id(sid), "--exercise", "1", "--reps", "6")
	assert.Equal(t, 2, next.SetNumber)

	var today domain.Today
	c.runJSON(&today, "today", apitest.CycleStart)
	assert.Equal(t, 1, today.DayNumber)
	assert.Len(t, today.Sets, 2)
	assert.Len(t, today.SelectedExercises, 2)

	text := c.mustRun("today", apitest.CycleStart)
	assert.Contains(t, text, "day 1")
	assert.Contains(t, text, "8 reps")

	var done domain.Session
	c.runJSON(&done, "session", "complete", id(sid))
	assert.Equal(t, domain.SessionCompleted, done.Status)

	var history domain.History
	c.runJSON(&history, "history")
	assert.Equal(t, 1, history.Total)

	var st syncengine.Status
	c.runJSON(&st, "status")
	assert.True(t, st.Online)
	assert.Zero(t, st.Dirty.Total())
	assert.NotEmpty(t, st.LastSync)
}

func TestSetLogOfflineThenSync(t *testing.T) {
	c := newClient(t)
	c.loggedIn()

	var session domain.Session
	c.runJSON(&session, "session", "start", apitest.CycleStart)

	c.srv.SetDown(true)
	out := c.mustRun("set", "log", "--session", strconv.FormatInt(session.ID, 10), "--exercise", "1", "--reps", "5")
	assert.Contains(t, out, "saved locally")
	assert.Contains(t, out, "(unsynced)")

	var st syncengine.Status
	c.runJSON(&st, "status")
	assert.False(t, st.Online)
	assert.Equal(t, 1, st.Dirty.Sets)

	_, err := c.run("session", "start", "2024-01-02")
	assert.ErrorIs(t, err, domain.ErrOffline)

	c.srv.SetDown(false)
	assert.Contains(t, c.mustRun("sync"), "1 synced")

	c.runJSON(&st, "status")
	assert.Zero(t, st.Dirty.Total())
}

func TestCommandsNeedSeededMirror(t *testing.T) {
	c := newClient(t)
	c.srv.SetDown(true)
	_, err := c.run("today")
	assert.ErrorIs(t, err, localstore.ErrNotReady)
}

func TestReset(t *testing.T) {
	c := newClient(t)
	c.loggedIn()

	_, err := c.run("reset")
	assert.Error(t, err)

	assert.Contains(t, c.mustRun("reset", "--yes"), "reset")
	_, err = c.run("session", "start", "2024-01-05")
	assert.ErrorIs(t, err, domain.ErrUnauthorized, "the token went with the slots")
}

func TestInvalidArguments(t *testing.T) {
	c := newClient(t)
	_, err := c.run("session", "complete", "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = c.run("today", "whenever I feel like it")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = c.run("--persistence", "wal", "status")
	assert.Error(t, err)
}
