// Package apierror defines the JSON error envelope shared by the Oficaz API
// and its Go client. Clients branch on the machine-readable code, never on
// the HTTP status alone.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Code identifies a failure class on the wire.
type Code string

const (
	CodeValidationFailed   Code = "validation_failed"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeEmailTaken         Code = "email_taken"
	CodeTokenExpired       Code = "token_expired"
	CodeTokenInvalid       Code = "token_invalid"
	CodeSessionRevoked     Code = "session_revoked"
	CodeNotFound           Code = "not_found"
	CodeInternal           Code = "internal"
)

// Error is the body of the envelope. It doubles as a Go error so handlers
// and the client can pass it through errors.As.
type Error struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// envelope is the top-level JSON shape: {"error": {...}}.
type envelope struct {
	Error *Error `json:"error"`
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Write serializes the envelope onto an HTTP response.
func Write(w http.ResponseWriter, status int, apiErr *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: apiErr})
}

// Decode parses an error envelope from a response body. It returns nil when
// the body is not a well-formed envelope, so callers fall back to treating
// the response by status code alone.
func Decode(r io.Reader) *Error {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil
	}
	if env.Error == nil || env.Error.Code == "" {
		return nil
	}
	return env.Error
}

// IsAuthTokenFailure reports whether err carries a code that means the
// presented access token was rejected (expired or invalid), as opposed to a
// 401/403 caused by anything else.
func IsAuthTokenFailure(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case CodeTokenExpired, CodeTokenInvalid, CodeSessionRevoked:
		return true
	}
	return false
}
