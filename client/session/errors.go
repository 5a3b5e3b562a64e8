package session

import "errors"

var (
	// ErrNotAuthenticated is returned when no session record exists.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is the terminal outcome of a failed refresh: the
	// session has been cleared and the caller must re-authenticate.
	ErrSessionExpired = errors.New("session expired, could not refresh")

	// ErrRefreshRejected marks a refresh attempt the server answered and
	// refused. Refresh functions wrap their non-2xx outcomes with it so the
	// manager can tell a rejection (clear the session) from a transient
	// transport failure (keep the session, let the caller retry later).
	ErrRefreshRejected = errors.New("refresh rejected by server")
)
