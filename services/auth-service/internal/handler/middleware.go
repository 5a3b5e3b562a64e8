package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/usecase"
	authtypes "github.com/elencerrado/oficaz-sub004/services/auth-service/pkg/types"
	"github.com/elencerrado/oficaz-sub004/shared/apierror"
)

type contextKey struct{}

var userClaimsKey = contextKey{}

// ClaimsFromContext returns the validated token claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*authtypes.JWTClaims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*authtypes.JWTClaims)
	return claims, ok
}

// Authenticate verifies the bearer token and checks session liveness before
// letting the request through. Failures carry distinct envelope codes so
// clients can tell an expired token apart from other causes.
func (h *AuthHTTPHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeTokenInvalid, err.Error()))
			return
		}

		claims, err := h.authUsecase.ValidateAccess(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrTokenExpired):
				apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeTokenExpired, "access token has expired"))
			case errors.Is(err, usecase.ErrSessionRevoked):
				apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeSessionRevoked, "session has been revoked"))
			default:
				apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeTokenInvalid, "access token is not valid"))
			}
			return
		}

		ctx := context.WithValue(r.Context(), userClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}

	return parts[1], nil
}
