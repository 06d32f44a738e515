// Package remote is the HTTP client for the gymtrack server API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/msomdec/gymtrack/internal/domain"
)

// ClientIDHeader carries the device id on every request.
const ClientIDHeader = "X-Client-ID"

// DefaultTimeout bounds each request when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// TokenSource returns the bearer token for authenticated calls. An empty
// token means none is stored.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Tokens  TokenSource
	Logger  *slog.Logger
	// HTTP overrides the underlying client; Timeout is ignored when set.
	HTTP *http.Client
}

// Client talks to the server. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	tokens   TokenSource
	logger   *slog.Logger
	clientID atomic.Pointer[string]
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: server url %q", domain.ErrInvalidInput, cfg.BaseURL)
	}
	hc := cfg.HTTP
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{base: base, http: hc, tokens: cfg.Tokens, logger: logger}, nil
}

// SetClientID sets the device id sent in ClientIDHeader.
func (c *Client) SetClientID(id string) { c.clientID.Store(&id) }

// BaseURL returns the server root the client was configured with.
func (c *Client) BaseURL() string { return c.base.String() }

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Unwrap maps the status onto the domain sentinel it represents, so callers
// can test with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.ErrInvalidInput
	}
	return nil
}

// do sends a request and decodes a JSON response into out when non-nil.
// Transport failures are wrapped with domain.ErrOffline.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, auth bool) error {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := c.clientID.Load(); id != nil {
		req.Header.Set(ClientIDHeader, *id)
	}
	if auth {
		if err := c.authorize(ctx, req); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrOffline, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return fmt.Errorf("%w: not logged in", domain.ErrUnauthorized)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return fmt.Errorf("%w: not logged in", domain.ErrUnauthorized)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Message = body.Error
	}
	return apiErr
}

// IsOffline reports whether err means the server could not be reached.
func IsOffline(err error) bool {
	return errors.Is(err, domain.ErrOffline)
}
