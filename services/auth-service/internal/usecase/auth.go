package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/config"
	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/model"
	"github.com/elencerrado/oficaz-sub004/services/auth-service/internal/repository"
	authtypes "github.com/elencerrado/oficaz-sub004/services/auth-service/pkg/types"
	"github.com/elencerrado/oficaz-sub004/shared/auth"
	"github.com/elencerrado/oficaz-sub004/shared/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	Login(ctx context.Context, params LoginParams) (*AuthResult, error)
	Register(ctx context.Context, params RegisterParams) (*AuthResult, error)
	// Refresh exchanges a refresh token for a rotated token pair. The
	// presented token must be the one currently stored for its session;
	// anything older is treated as reuse and revokes every session of the
	// user.
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, sessionID string) error
	Me(ctx context.Context, userID string) (*AuthResult, error)
	// ValidateAccess verifies an access token and checks that its backing
	// session is still live, so revocation takes effect before token expiry.
	ValidateAccess(ctx context.Context, accessToken string) (*authtypes.JWTClaims, error)
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

// RegisterParams defines the parameters for account registration. A new
// company and a trial subscription are created alongside the first user.
type RegisterParams struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
}

// AuthResult bundles the token pair with the denormalized snapshots clients
// cache for display. Me responses carry snapshots only.
type AuthResult struct {
	Tokens       authtypes.Tokens
	User         *model.User
	Company      *model.Company
	Subscription *model.Subscription
}

var (
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrTokenExpired         = errors.New("token expired")
	ErrInvalidToken         = errors.New("invalid token")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionRevoked       = errors.New("session revoked")
	ErrRefreshReuseDetected = errors.New("refresh token reuse detected")
)

type authUsecase struct {
	userRepo       repository.UserRepository
	companyRepo    repository.CompanyRepository
	subRepo        repository.SubscriptionRepository
	sessionRepo    repository.SessionRepository
	jwtAuth        auth.JWTAuthenticator
	authServiceCfg *config.AuthServiceConfig
}

func NewAuthUsecase(
	userRepo repository.UserRepository,
	companyRepo repository.CompanyRepository,
	subRepo repository.SubscriptionRepository,
	sessionRepo repository.SessionRepository,
	jwtAuth auth.JWTAuthenticator,
	authServiceCfg *config.AuthServiceConfig,
) AuthUsecase {
	return &authUsecase{
		userRepo:       userRepo,
		companyRepo:    companyRepo,
		subRepo:        subRepo,
		sessionRepo:    sessionRepo,
		jwtAuth:        jwtAuth,
		authServiceCfg: authServiceCfg,
	}
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	if ok, err := security.VerifyPassword(params.Password, user.PasswordHash); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrInvalidCredentials
	}

	tokens, err := u.createAuthSession(ctx, user.ID.Hex())
	if err != nil {
		return nil, err
	}

	return u.buildResult(ctx, user, tokens)
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	company, err := u.companyRepo.CreateCompany(ctx, &model.Company{
		Name:     params.CompanyName,
		Timezone: "UTC",
	})
	if err != nil {
		return nil, err
	}

	if _, err := u.subRepo.CreateSubscription(ctx, &model.Subscription{
		CompanyID:        company.ID,
		Plan:             "trial",
		Status:           model.SubscriptionStatusTrial,
		CurrentPeriodEnd: time.Now().Add(14 * 24 * time.Hour),
	}); err != nil {
		return nil, err
	}

	user, err := u.userRepo.CreateUser(ctx, &model.User{
		CompanyID:    company.ID,
		Email:        params.Email,
		PasswordHash: passwordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Role:         "owner",
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserAlreadyExists
		}

		return nil, err
	}

	tokens, err := u.createAuthSession(ctx, user.ID.Hex())
	if err != nil {
		return nil, err
	}

	return u.buildResult(ctx, user, tokens)
}

func (u *authUsecase) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims := &authtypes.JWTClaims{}
	_, err := u.jwtAuth.ValidateTokenWithClaims(refreshToken, u.authServiceCfg.Token.RefreshTokenSecret, claims)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	session, err := u.sessionRepo.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}

	// The token is valid and names a live session but is not the stored
	// one: it has already been redeemed. Revoke everything for the user.
	if session.RefreshToken != refreshToken {
		if err := u.sessionRepo.RevokeUserSessions(ctx, session.UserID); err != nil {
			return nil, err
		}
		return nil, ErrRefreshReuseDetected
	}

	if time.Now().After(session.RefreshTokenExpiresAt) {
		return nil, ErrTokenExpired
	}

	tokens, err := u.rotateSessionTokens(ctx, session.UserID, session.ID.Hex())
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	return u.buildResult(ctx, user, tokens)
}

func (u *authUsecase) Logout(ctx context.Context, sessionID string) error {
	return u.sessionRepo.RevokeSession(ctx, sessionID)
}

func (u *authUsecase) Me(ctx context.Context, userID string) (*AuthResult, error) {
	user, err := u.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return u.buildResult(ctx, user, nil)
}

func (u *authUsecase) ValidateAccess(ctx context.Context, accessToken string) (*authtypes.JWTClaims, error) {
	claims := &authtypes.JWTClaims{}
	_, err := u.jwtAuth.ValidateTokenWithClaims(accessToken, u.authServiceCfg.Token.AccessTokenSecret, claims)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	session, err := u.sessionRepo.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.UserID != claims.UserID {
		return nil, ErrInvalidToken
	}
	if session.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

func (u *authUsecase) buildResult(ctx context.Context, user *model.User, tokens *authtypes.Tokens) (*AuthResult, error) {
	company, err := u.companyRepo.GetCompany(ctx, user.CompanyID.Hex())
	if err != nil {
		return nil, err
	}

	sub, err := u.subRepo.GetSubscriptionByCompanyID(ctx, company.ID.Hex())
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	result := &AuthResult{
		User:         user,
		Company:      company,
		Subscription: sub,
	}
	if tokens != nil {
		result.Tokens = *tokens
	}

	return result, nil
}

func (u *authUsecase) createAuthSession(ctx context.Context, userID string) (*authtypes.Tokens, error) {
	session, err := u.sessionRepo.CreateSession(ctx, &model.Session{UserID: userID})
	if err != nil {
		return nil, err
	}

	return u.rotateSessionTokens(ctx, userID, session.ID.Hex())
}

// rotateSessionTokens issues a fresh token pair and stores it as the
// session's only valid pair.
func (u *authUsecase) rotateSessionTokens(ctx context.Context, userID, sessionID string) (*authtypes.Tokens, error) {
	accessToken, err := u.generateToken(
		userID,
		sessionID,
		u.authServiceCfg.Token.AccessTokenSecret,
		u.authServiceCfg.Token.AccessTokenExpiresIn,
	)
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.generateToken(
		userID,
		sessionID,
		u.authServiceCfg.Token.RefreshTokenSecret,
		u.authServiceCfg.Token.RefreshTokenExpiresIn,
	)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := u.sessionRepo.UpdateTokens(ctx, sessionID, repository.UpdateTokensParams{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  now.Add(u.authServiceCfg.Token.AccessTokenExpiresIn),
		RefreshTokenExpiresAt: now.Add(u.authServiceCfg.Token.RefreshTokenExpiresIn),
	}); err != nil {
		return nil, err
	}

	return &authtypes.Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (u *authUsecase) generateToken(userID, sessionID, secret string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := authtypes.JWTClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    u.authServiceCfg.Token.Issuer,
			Audience:  jwt.ClaimStrings{u.authServiceCfg.Token.Issuer},
		},
	}
	token, err := u.jwtAuth.GenerateToken(claims, secret)
	if err != nil {
		return "", err
	}

	return token, nil
}
