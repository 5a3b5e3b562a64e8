package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func tokenExpiringAt(t *testing.T, exp time.Time) string {
	return signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
}

func TestExpiredAt(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		token   string
		expired bool
	}{
		{"empty", "", true},
		{"garbage", "not-a-token", true},
		{"truncated jwt", "abc.def", true},
		{"no exp claim", signedToken(t, jwt.RegisteredClaims{}), true},
		{"already expired", tokenExpiringAt(t, now.Add(-time.Hour)), true},
		{"inside leeway", tokenExpiringAt(t, now.Add(5*time.Second)), true},
		{"still valid", tokenExpiringAt(t, now.Add(time.Hour)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expiredAt(tt.token, now); got != tt.expired {
				t.Errorf("expiredAt() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestIsExpiredUnverifiedPayload(t *testing.T) {
	// The check must not depend on the signing secret: it reads the
	// payload without verification.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("a-secret-the-client-never-knows"))
	if err != nil {
		t.Fatal(err)
	}

	if IsExpired(token) {
		t.Error("valid token signed with an unknown secret should not read as expired")
	}
}
