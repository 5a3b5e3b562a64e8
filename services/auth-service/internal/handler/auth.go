// Package handler exposes the auth service over HTTP. Error responses use
// the shared envelope so clients can branch on machine-readable codes.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/usecase"
	"github.com/elencerrado/oficaz-sub004/shared/apierror"
	"github.com/elencerrado/oficaz-sub004/shared/validate"
)

type AuthHTTPHandler struct {
	authUsecase usecase.AuthUsecase
	validator   *validate.Validator
	logger      *zerolog.Logger
}

func NewAuthHTTPHandler(
	authUsecase usecase.AuthUsecase,
	validator *validate.Validator,
	logger *zerolog.Logger,
) *AuthHTTPHandler {
	return &AuthHTTPHandler{
		authUsecase: authUsecase,
		validator:   validator,
		logger:      logger,
	}
}

// RegisterRoutes mounts the auth endpoints on the router.
func (h *AuthHTTPHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/refresh", h.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(h.Authenticate)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/me", h.handleMe)
	})
}

func (h *AuthHTTPHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Login(r.Context(), usecase.LoginParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeUsecaseError(w, err, "login failed")
		return
	}

	h.writeJSON(w, http.StatusOK, newAuthResponse(result))
}

func (h *AuthHTTPHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Register(r.Context(), usecase.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		h.writeUsecaseError(w, err, "register failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, newAuthResponse(result))
}

func (h *AuthHTTPHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.authUsecase.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeUsecaseError(w, err, "refresh failed")
		return
	}

	h.writeJSON(w, http.StatusOK, newAuthResponse(result))
}

func (h *AuthHTTPHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeTokenInvalid, "missing token claims"))
		return
	}

	if err := h.authUsecase.Logout(r.Context(), claims.SessionID); err != nil {
		h.writeUsecaseError(w, err, "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHTTPHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeTokenInvalid, "missing token claims"))
		return
	}

	result, err := h.authUsecase.Me(r.Context(), claims.UserID)
	if err != nil {
		h.writeUsecaseError(w, err, "me failed")
		return
	}

	h.writeJSON(w, http.StatusOK, newAuthResponse(result))
}

func (h *AuthHTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		apierror.Write(w, http.StatusBadRequest, apierror.New(apierror.CodeValidationFailed, "malformed JSON body"))
		return false
	}

	if fields := h.validator.Struct(req); fields != nil {
		apiErr := apierror.New(apierror.CodeValidationFailed, "invalid request payload")
		apiErr.Details = fields
		apierror.Write(w, http.StatusBadRequest, apiErr)
		return false
	}

	return true
}

func (h *AuthHTTPHandler) writeUsecaseError(w http.ResponseWriter, err error, msg string) {
	h.logger.Error().Err(err).Msg(msg)

	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeInvalidCredentials, "invalid email or password"))
	case errors.Is(err, usecase.ErrUserAlreadyExists):
		apierror.Write(w, http.StatusConflict, apierror.New(apierror.CodeEmailTaken, "email is already registered"))
	case errors.Is(err, usecase.ErrTokenExpired):
		apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeTokenExpired, "token has expired"))
	case errors.Is(err, usecase.ErrSessionRevoked):
		apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeSessionRevoked, "session has been revoked"))
	case errors.Is(err, usecase.ErrInvalidToken),
		errors.Is(err, usecase.ErrSessionNotFound),
		errors.Is(err, usecase.ErrRefreshReuseDetected):
		apierror.Write(w, http.StatusUnauthorized, apierror.New(apierror.CodeTokenInvalid, "token is not valid"))
	default:
		apierror.Write(w, http.StatusInternalServerError, apierror.New(apierror.CodeInternal, "something went wrong"))
	}
}

func (h *AuthHTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}
