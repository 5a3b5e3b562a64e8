package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryLeeway makes the client treat a token as expired slightly before
// its exp claim so a request does not leave with a token that dies in
// flight.
const expiryLeeway = 10 * time.Second

// IsExpired reports whether the access token's embedded expiry has passed.
// The payload is decoded without signature verification: this is a
// client-side heuristic to refresh proactively, not a security boundary.
// Anything undecodable is treated as expired, which forces a refresh or
// re-login instead of risking a malformed token on the wire.
func IsExpired(token string) bool {
	return expiredAt(token, time.Now())
}

func expiredAt(token string, now time.Time) bool {
	if token == "" {
		return true
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return true
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return !exp.Time.After(now.Add(expiryLeeway))
}
