// Package client is the Go client for the Oficaz workforce API. It owns
// the session lifecycle: login persists a token pair, every authenticated
// request carries the current access token, and expired tokens are
// refreshed transparently behind a single coordinated round-trip.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/elencerrado/oficaz-sub004/client/session"
	"github.com/elencerrado/oficaz-sub004/client/transport"
	"github.com/elencerrado/oficaz-sub004/shared/apierror"
)

// Options wires optional collaborators into a Client.
type Options struct {
	// Store overrides the default file+memory session store (tests inject
	// memory-only tiers here).
	Store *session.Store

	// BaseTransport is the transport underneath the auth interceptor.
	BaseTransport http.RoundTripper

	// OnSessionChange observes every session mutation (login, refresh,
	// sign-out with a nil record). Useful for mirroring state into a UI.
	OnSessionChange func(*session.Record)

	// OnForcedSignOut fires when repeated auth failures cross the debounce
	// threshold and the session has been cleared.
	OnForcedSignOut func()

	Logger zerolog.Logger
}

// Client is a stateful API client bound to one session.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	raw      *http.Client
	sessions *session.Manager
	logger   zerolog.Logger
}

// New creates a Client from configuration.
func New(cfg Config, opts Options) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	store := opts.Store
	if store == nil {
		store = session.NewStore(session.NewFileStorage(cfg.StateDir), session.NewMemoryStorage())
	}

	base := opts.BaseTransport
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		baseURL: baseURL,
		raw:     &http.Client{Transport: base, Timeout: cfg.RequestTimeout},
		logger:  opts.Logger,
	}

	c.sessions = session.NewManager(store, c.refreshSession, session.ManagerOptions{
		RefreshTimeout: cfg.RefreshTimeout,
		OnChange:       opts.OnSessionChange,
		Logger:         opts.Logger,
	})

	rt := transport.New(c.sessions, transport.Options{
		Base:             base,
		FailureThreshold: cfg.AuthFailureThreshold,
		FailureWindow:    cfg.AuthFailureWindow,
		OnForcedSignOut:  opts.OnForcedSignOut,
		Logger:           opts.Logger,
	})
	c.http = &http.Client{Transport: rt, Timeout: cfg.RequestTimeout}

	return c, nil
}

// Sessions exposes the session manager, e.g. to read the current record.
func (c *Client) Sessions() *session.Manager {
	return c.sessions
}

// authResponse mirrors the auth service's response shape.
type authResponse struct {
	AccessToken  string                `json:"access_token"`
	RefreshToken string                `json:"refresh_token"`
	User         *session.User         `json:"user"`
	Company      *session.Company      `json:"company"`
	Subscription *session.Subscription `json:"subscription"`
}

// Login authenticates with credentials and installs the resulting session.
// With remember set, the session survives client restarts.
func (c *Client) Login(ctx context.Context, email, password string, remember bool) (*session.Record, error) {
	payload := map[string]string{"email": email, "password": password}

	var resp authResponse
	if err := c.postJSON(ctx, "/auth/login", payload, &resp); err != nil {
		return nil, err
	}

	return c.installSession(resp, remember)
}

// RegisterParams describes a new account signup.
type RegisterParams struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
}

// Register creates an account and installs the resulting session.
func (c *Client) Register(ctx context.Context, params RegisterParams, remember bool) (*session.Record, error) {
	var resp authResponse
	if err := c.postJSON(ctx, "/auth/register", params, &resp); err != nil {
		return nil, err
	}

	return c.installSession(resp, remember)
}

// Logout revokes the session server-side (best effort) and destroys it
// locally regardless.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.NewRequest(ctx, http.MethodPost, "/auth/logout", nil)
	if err == nil {
		if resp, doErr := c.Do(req); doErr == nil {
			_ = resp.Body.Close()
		} else {
			c.logger.Warn().Err(doErr).Msg("server-side logout failed")
		}
	}

	return c.sessions.Clear()
}

// Me fetches fresh account snapshots over the authenticated transport and
// updates the cached ones.
func (c *Client) Me(ctx context.Context) (*session.Record, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	if err := c.sessions.UpdateSnapshots(body.User, body.Company, body.Subscription); err != nil {
		return nil, err
	}

	return c.sessions.Current(), nil
}

// Bootstrap restores a persisted session and verifies it against the
// server, refreshing transparently if the access token has gone stale.
// It returns ErrNotAuthenticated when nothing is persisted and
// ErrSessionExpired when verification failed terminally (the session is
// cleared in that case).
func (c *Client) Bootstrap(ctx context.Context) (*session.Record, error) {
	if rec := c.sessions.Restore(); rec == nil {
		return nil, session.ErrNotAuthenticated
	}

	rec, err := c.Me(ctx)
	if err != nil {
		if terminalAuthError(err) {
			_ = c.sessions.Clear()
			return nil, session.ErrSessionExpired
		}
		return nil, err
	}

	return rec, nil
}

// NewRequest builds a request against the API base URL. The transport
// attaches credentials when the request is sent through Do.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
}

// Do executes an authenticated request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// refreshSession is the RefreshFunc handed to the session manager. It runs
// over the raw transport so a refresh is never intercepted.
func (c *Client) refreshSession(ctx context.Context, refreshToken string) (*session.RefreshResult, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+"/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.raw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if apiErr := apierror.Decode(resp.Body); apiErr != nil {
			return nil, fmt.Errorf("%w: %v", session.ErrRefreshRejected, apiErr)
		}
		return nil, fmt.Errorf("%w: status %d", session.ErrRefreshRejected, resp.StatusCode)
	}

	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	return &session.RefreshResult{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		User:         body.User,
		Company:      body.Company,
		Subscription: body.Subscription,
	}, nil
}

func (c *Client) installSession(resp authResponse, remember bool) (*session.Record, error) {
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, errors.New("auth response missing token pair")
	}

	rec := &session.Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
		Company:      resp.Company,
		Subscription: resp.Subscription,
	}

	if err := c.sessions.SetSession(rec, remember); err != nil {
		return nil, err
	}

	return rec, nil
}

// postJSON sends an unauthenticated JSON request over the raw transport.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.raw.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// responseError turns a non-2xx response into an error, preferring the
// envelope's machine-readable code when present.
func responseError(resp *http.Response) error {
	if apiErr := apierror.Decode(resp.Body); apiErr != nil {
		return apiErr
	}
	return fmt.Errorf("unexpected status %d", resp.StatusCode)
}

// terminalAuthError reports whether err means the session is beyond repair
// and the user must log in again.
func terminalAuthError(err error) bool {
	if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrNotAuthenticated) {
		return true
	}
	return apierror.IsAuthTokenFailure(err)
}
