// Package transport provides the http.RoundTripper that authenticates
// outgoing requests and coordinates token refresh with the session manager.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/elencerrado/oficaz-sub004/client/session"
	"github.com/elencerrado/oficaz-sub004/shared/apierror"
)

const (
	defaultFailureThreshold = 3
	defaultFailureWindow    = 30 * time.Second
)

// Options tunes a RoundTripper.
type Options struct {
	// Base is the underlying transport. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// SkipPaths are request paths handled without authentication. Defaults
	// to the auth endpoints themselves so a refresh never intercepts
	// another refresh.
	SkipPaths []string

	// FailureThreshold and FailureWindow control the sign-out debounce:
	// only this many consecutive refresh failures inside the window force a
	// sign-out, so transient network blips are not misread as session
	// expiry. Zero values mean the defaults (3 within 30s).
	FailureThreshold int
	FailureWindow    time.Duration

	// OnForcedSignOut is invoked after the debounce threshold is crossed
	// and the session has been cleared.
	OnForcedSignOut func()

	Logger zerolog.Logger
}

// RoundTripper attaches the current access token as a bearer credential,
// refreshes proactively when the token looks expired, and on a
// server-reported token failure asks the session manager for one
// coordinated refresh before retrying the original request once.
type RoundTripper struct {
	base      http.RoundTripper
	sessions  *session.Manager
	skipPaths []string
	threshold int
	window    time.Duration
	onSignOut func()
	logger    zerolog.Logger

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
}

// New creates a RoundTripper bound to the given session manager.
func New(sessions *session.Manager, opts Options) *RoundTripper {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	skip := opts.SkipPaths
	if skip == nil {
		skip = []string{"/auth/login", "/auth/register", "/auth/refresh"}
	}

	threshold := opts.FailureThreshold
	if threshold <= 0 {
		threshold = defaultFailureThreshold
	}

	window := opts.FailureWindow
	if window <= 0 {
		window = defaultFailureWindow
	}

	return &RoundTripper{
		base:      base,
		sessions:  sessions,
		skipPaths: skip,
		threshold: threshold,
		window:    window,
		onSignOut: opts.OnForcedSignOut,
		logger:    opts.Logger,
	}
}

func (t *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.skips(req.URL.Path) {
		return t.base.RoundTrip(req)
	}

	token := t.sessions.AccessToken()
	if token == "" {
		return nil, session.ErrNotAuthenticated
	}

	// Proactive refresh: do not send a token that is already past its
	// expiry by the client-side heuristic.
	if session.IsExpired(token) {
		refreshed, err := t.refresh(req.Context())
		if err != nil {
			return nil, err
		}
		token = refreshed
	}

	resp, err := t.send(req, token)
	if err != nil {
		// Unrelated transport failure, propagated as-is.
		return nil, err
	}

	apiErr, restoreErr := t.authFailure(resp)
	if restoreErr != nil {
		_ = resp.Body.Close()
		return nil, restoreErr
	}
	if apiErr == nil {
		if resp.StatusCode < http.StatusBadRequest {
			t.resetFailures()
		}
		return resp, nil
	}

	// The server rejected our token specifically. Retry once with a
	// refreshed token, but only when the body can be replayed.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	_ = resp.Body.Close()

	refreshed, err := t.refresh(req.Context())
	if err != nil {
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	resp, err = t.send(retry, refreshed)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		t.resetFailures()
	}

	return resp, nil
}

func (t *RoundTripper) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(out)
}

// refresh asks the manager for one coordinated refresh and feeds the
// debounce on failure.
func (t *RoundTripper) refresh(ctx context.Context) (string, error) {
	token, err := t.sessions.Refresh(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			t.recordFailure()
		}
		return "", err
	}

	return token, nil
}

// authFailure inspects a response and returns the envelope error when the
// server specifically rejected the access token. For every other response,
// including 401/403s with unrelated causes, the body is restored and nil is
// returned.
func (t *RoundTripper) authFailure(resp *http.Response) (*apierror.Error, error) {
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	apiErr := apierror.Decode(bytes.NewReader(body))
	if apiErr == nil || !apierror.IsAuthTokenFailure(apiErr) {
		return nil, nil
	}

	return apiErr, nil
}

func (t *RoundTripper) skips(path string) bool {
	for _, p := range t.skipPaths {
		if path == p || strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

func (t *RoundTripper) resetFailures() {
	t.mu.Lock()
	t.failures = 0
	t.mu.Unlock()
}

// recordFailure advances the debounce. Sparse failures separated by more
// than the window do not accumulate; crossing the threshold clears the
// session and fires the sign-out callback.
func (t *RoundTripper) recordFailure() {
	t.mu.Lock()
	now := time.Now()
	if !t.lastFailure.IsZero() && now.Sub(t.lastFailure) > t.window {
		t.failures = 0
	}
	t.failures++
	t.lastFailure = now
	trip := t.failures >= t.threshold
	if trip {
		t.failures = 0
	}
	t.mu.Unlock()

	if trip {
		t.logger.Warn().Msg("auth failure threshold crossed, signing out")
		_ = t.sessions.Clear()
		if t.onSignOut != nil {
			t.onSignOut()
		}
	}
}
