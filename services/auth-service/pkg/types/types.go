// Package types holds the token types shared between the auth service and
// its consumers.
package types

import "github.com/golang-jwt/jwt/v5"

// Tokens is an access/refresh token pair.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// JWTClaims are the claims carried by both access and refresh tokens.
type JWTClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
