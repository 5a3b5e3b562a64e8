package handler

import (
	"time"

	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/usecase"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email       string `json:"email"        validate:"required,email"`
	Password    string `json:"password"     validate:"required,min=8"`
	FirstName   string `json:"first_name"   validate:"required"`
	LastName    string `json:"last_name"    validate:"required"`
	CompanyName string `json:"company_name" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UserPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type CompanyPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

type SubscriptionPayload struct {
	Plan             string    `json:"plan"`
	Status           string    `json:"status"`
	CurrentPeriodEnd time.Time `json:"current_period_end"`
}

// AuthResponse is returned by login, register and refresh. Me returns the
// same shape without the token fields.
type AuthResponse struct {
	AccessToken  string               `json:"access_token,omitempty"`
	RefreshToken string               `json:"refresh_token,omitempty"`
	User         *UserPayload         `json:"user,omitempty"`
	Company      *CompanyPayload      `json:"company,omitempty"`
	Subscription *SubscriptionPayload `json:"subscription,omitempty"`
}

func newAuthResponse(result *usecase.AuthResult) AuthResponse {
	resp := AuthResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}

	if result.User != nil {
		resp.User = &UserPayload{
			ID:        result.User.ID.Hex(),
			Email:     result.User.Email,
			FirstName: result.User.FirstName,
			LastName:  result.User.LastName,
			Role:      result.User.Role,
		}
	}
	if result.Company != nil {
		resp.Company = &CompanyPayload{
			ID:       result.Company.ID.Hex(),
			Name:     result.Company.Name,
			Timezone: result.Company.Timezone,
		}
	}
	if result.Subscription != nil {
		resp.Subscription = &SubscriptionPayload{
			Plan:             result.Subscription.Plan,
			Status:           result.Subscription.Status,
			CurrentPeriodEnd: result.Subscription.CurrentPeriodEnd,
		}
	}

	return resp
}
