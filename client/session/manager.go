package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RefreshResult is what a RefreshFunc produces on success. AccessToken and
// RefreshToken are mandatory; snapshots are optional and replace the cached
// ones when present.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	User         *User
	Company      *Company
	Subscription *Subscription
}

// RefreshFunc performs the actual refresh round-trip. Implementations must
// wrap server rejections with ErrRefreshRejected and return transport
// failures as-is.
type RefreshFunc func(ctx context.Context, refreshToken string) (*RefreshResult, error)

const defaultRefreshTimeout = 10 * time.Second

// ManagerOptions tunes a Manager.
type ManagerOptions struct {
	// RefreshTimeout bounds the refresh round-trip so a hung server cannot
	// strand every waiter. Zero means the default of 10s.
	RefreshTimeout time.Duration

	// OnChange, when set, is invoked with a copy of the record after every
	// session change: login, refresh, and sign-out (nil record).
	OnChange func(*Record)

	Logger zerolog.Logger
}

// Manager owns the session record for one application instance. All state
// lives on the struct, so independent managers never share refresh
// outcomes, while callers of one manager always do.
type Manager struct {
	store          *Store
	refreshFn      RefreshFunc
	refreshTimeout time.Duration
	onChange       func(*Record)
	logger         zerolog.Logger

	group singleflight.Group

	mu         sync.RWMutex
	current    *Record
	persistent bool
}

// NewManager creates a Manager over the given store and refresh function.
func NewManager(store *Store, refreshFn RefreshFunc, opts ManagerOptions) *Manager {
	timeout := opts.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}

	return &Manager{
		store:          store,
		refreshFn:      refreshFn,
		refreshTimeout: timeout,
		onChange:       opts.OnChange,
		logger:         opts.Logger,
	}
}

// Restore loads the persisted record into the in-memory mirror. It returns
// a copy of the record, or nil when no usable session is stored.
func (m *Manager) Restore() *Record {
	rec, persistent := m.store.Load()

	m.mu.Lock()
	m.current = rec
	m.persistent = persistent
	m.mu.Unlock()

	return rec.clone()
}

// SetSession installs a freshly authenticated record, persisting it into
// the tier selected by persistent.
func (m *Manager) SetSession(rec *Record, persistent bool) error {
	if err := m.store.Save(rec, persistent); err != nil {
		return err
	}

	m.mu.Lock()
	m.current = rec.clone()
	m.persistent = persistent
	m.mu.Unlock()

	m.notify(rec)
	return nil
}

// Clear destroys the session in both tiers and the mirror.
func (m *Manager) Clear() error {
	err := m.store.Clear()

	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	m.notify(nil)
	return err
}

// Current returns a copy of the in-memory record, or nil when signed out.
func (m *Manager) Current() *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current.clone()
}

// AccessToken returns the current access token, or "" when signed out.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return ""
	}
	return m.current.AccessToken
}

// UpdateSnapshots replaces the cached display snapshots without touching
// the tokens, e.g. after a boot-time verification call.
func (m *Manager) UpdateSnapshots(user *User, company *Company, sub *Subscription) error {
	m.mu.Lock()
	if m.current == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	m.current.User = user
	m.current.Company = company
	m.current.Subscription = sub
	rec := m.current.clone()
	persistent := m.persistent
	m.mu.Unlock()

	if err := m.store.Save(rec, persistent); err != nil {
		return err
	}

	m.notify(rec)
	return nil
}

// Refresh exchanges the current refresh token for a new pair. Overlapping
// calls collapse onto a single round-trip and every waiter observes the
// same outcome; a waiter whose context ends stops waiting without
// cancelling the shared attempt.
//
// On success the rotated pair is persisted and the new access token is
// returned. If the server rejects the refresh, or answers without a
// rotated refresh token, the session is cleared and ErrSessionExpired is
// returned. Transport failures leave the session in place.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.RLock()
	rec := m.current
	var refreshToken string
	if rec != nil {
		refreshToken = rec.RefreshToken
	}
	m.mu.RUnlock()

	if refreshToken == "" {
		return "", ErrNotAuthenticated
	}

	ch := m.group.DoChan(storageKey, func() (any, error) {
		return m.doRefresh(refreshToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// doRefresh runs the shared refresh attempt under its own bounded timeout,
// detached from any single caller's context.
func (m *Manager) doRefresh(refreshToken string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	result, err := m.refreshFn(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshRejected) {
			m.logger.Warn().Err(err).Msg("refresh rejected, clearing session")
			_ = m.Clear()
			return "", fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}

		m.logger.Warn().Err(err).Msg("refresh attempt failed")
		return "", err
	}

	// A response without a rotated refresh token would leave us reusing a
	// consumed single-use credential. Treat it as a protocol violation and
	// kill the session rather than continue degraded.
	if result == nil || result.AccessToken == "" || result.RefreshToken == "" {
		m.logger.Warn().Msg("refresh response missing rotated tokens, clearing session")
		_ = m.Clear()
		return "", fmt.Errorf("%w: refresh response missing rotated tokens", ErrSessionExpired)
	}

	m.mu.Lock()
	base := m.current
	if base == nil {
		base = &Record{}
	}
	updated := base.clone()
	updated.AccessToken = result.AccessToken
	updated.RefreshToken = result.RefreshToken
	if result.User != nil {
		updated.User = result.User
	}
	if result.Company != nil {
		updated.Company = result.Company
	}
	if result.Subscription != nil {
		updated.Subscription = result.Subscription
	}
	m.current = updated
	persistent := m.persistent
	rec := updated.clone()
	m.mu.Unlock()

	if err := m.store.Save(rec, persistent); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist refreshed session")
	}

	m.notify(rec)
	m.logger.Debug().Msg("session refreshed")

	return result.AccessToken, nil
}

func (m *Manager) notify(rec *Record) {
	if m.onChange != nil {
		m.onChange(rec.clone())
	}
}
