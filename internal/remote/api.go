package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/msomdec/gymtrack/internal/domain"
)

// Health is the server's liveness response.
type Health struct {
	Status    string           `json:"status"`
	Timestamp domain.Timestamp `json:"timestamp"`
}

// Health probes the server.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, &h, false); err != nil {
		return nil, err
	}
	return &h, nil
}

// Probe reports whether the health endpoint answered.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// Login exchanges the admin password for a bearer token and its lifetime.
func (c *Client) Login(ctx context.Context, password string) (string, time.Duration, error) {
	var out struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expiresIn"`
	}
	in := map[string]string{"password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, in, &out, false); err != nil {
		return "", 0, err
	}
	return out.Token, time.Duration(out.ExpiresIn) * time.Second, nil
}

// Verify checks the stored token against the server.
func (c *Client) Verify(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/auth/verify", nil, nil, nil, true)
}

// StaticData fetches the reference catalog. Client satisfies
// localstore.Seeder through it.
func (c *Client) StaticData(ctx context.Context) (*domain.Catalog, error) {
	var cat domain.Catalog
	if err := c.do(ctx, http.MethodGet, "/api/config/static-data", nil, nil, &cat, false); err != nil {
		return nil, err
	}
	return &cat, nil
}

// CycleStart is the rotation anchor and the server's current day number.
type CycleStart struct {
	StartDate  string `json:"startDate"`
	CurrentDay int    `json:"currentDay"`
}

func (c *Client) CycleStart(ctx context.Context) (*CycleStart, error) {
	var cs CycleStart
	if err := c.do(ctx, http.MethodGet, "/api/config/cycle-start", nil, nil, &cs, false); err != nil {
		return nil, err
	}
	return &cs, nil
}

func (c *Client) SetCycleStart(ctx context.Context, date string) (*CycleStart, error) {
	var cs CycleStart
	in := map[string]string{"startDate": date}
	if err := c.do(ctx, http.MethodPut, "/api/config/cycle-start", nil, in, &cs, true); err != nil {
		return nil, err
	}
	return &cs, nil
}

// Pull fetches every change after since.
func (c *Client) Pull(ctx context.Context, since domain.Timestamp) (*domain.Changes, error) {
	q := url.Values{}
	if since != "" {
		q.Set("since", string(since))
	}
	var ch domain.Changes
	if err := c.do(ctx, http.MethodGet, "/api/sync/pull", q, nil, &ch, false); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Push uploads locally modified records.
func (c *Client) Push(ctx context.Context, batch *domain.PushBatch) (*domain.PushResult, error) {
	var res domain.PushResult
	if err := c.do(ctx, http.MethodPost, "/api/sync/push", nil, batch, &res, true); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateSession opens the session for date. A session that already exists
// yields an error matching domain.ErrConflict.
func (c *Client) CreateSession(ctx context.Context, date string) (*domain.Session, error) {
	var out struct {
		Session *domain.Session `json:"session"`
	}
	in := map[string]string{"date": date}
	if err := c.do(ctx, http.MethodPost, "/api/workouts/session", nil, in, &out, true); err != nil {
		return nil, err
	}
	if out.Session == nil {
		return nil, fmt.Errorf("create session: empty response")
	}
	return out.Session, nil
}

// ToggleDay flips a rotation day on or off and reports whether it is now
// active.
func (c *Client) ToggleDay(ctx context.Context, sessionID int64, dayNumber int, groupID int64) (bool, error) {
	var out struct {
		Active bool `json:"active"`
	}
	in := map[string]any{"dayNumber": dayNumber, "exerciseGroupId": groupID}
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "days"), nil, in, &out, true); err != nil {
		return false, err
	}
	return out.Active, nil
}

// SelectExercises replaces the two exercises chosen for a day.
func (c *Client) SelectExercises(ctx context.Context, sessionID int64, dayNumber int, exercise1, exercise2 int64) ([]domain.SessionExercise, error) {
	var out struct {
		Selected []domain.SessionExercise `json:"selectedExercises"`
	}
	in := map[string]any{"dayNumber": dayNumber, "exercise1Id": exercise1, "exercise2Id": exercise2}
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "select-exercises"), nil, in, &out, true); err != nil {
		return nil, err
	}
	return out.Selected, nil
}

// DeleteSet removes a set on the server.
func (c *Client) DeleteSet(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/workouts/set/"+strconv.FormatInt(id, 10), nil, nil, nil, true)
}

func sessionPath(id int64, action string) string {
	return "/api/workouts/session/" + strconv.FormatInt(id, 10) + "/" + action
}
