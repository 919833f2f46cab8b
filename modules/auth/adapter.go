package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	"github.com/AtharvaShastrakar/orangeChat/domain/chat"
	domain "github.com/AtharvaShastrakar/orangeChat/domain/user"
)

// AuthPort is the session oracle as seen by the API layer.
type AuthPort interface {
	Signup(ctx context.Context, email, password, fullName string) (*SignupResponse, error)
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	VerifyEmail(ctx context.Context, token string) (*domain.TokenPair, error)
}

var _ AuthPort = (*AuthAdapter)(nil)

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{container: container}
}

func (a *AuthAdapter) call(ctx context.Context, service string, req, resp any) error {
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return mapServiceError(service, err)
	}
	return nil
}

// Signup creates an account.
func (a *AuthAdapter) Signup(ctx context.Context, email, password, fullName string) (*SignupResponse, error) {
	req := SignupRequest{Email: email, Password: password, FullName: fullName}
	var resp SignupResponse
	if err := a.call(ctx, ServiceSignup, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login exchanges credentials for tokens.
func (a *AuthAdapter) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	req := LoginRequest{Email: email, Password: password}
	var resp TokenResponse
	if err := a.call(ctx, ServiceLogin, &req, &resp); err != nil {
		return nil, err
	}
	return resp.toPair(), nil
}

// Refresh exchanges a refresh token for a new pair.
func (a *AuthAdapter) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	var resp TokenResponse
	if err := a.call(ctx, ServiceRefreshToken, &req, &resp); err != nil {
		return nil, err
	}
	return resp.toPair(), nil
}

// ValidateToken validates an access token and returns claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse
	if err := a.call(ctx, ServiceValidateToken, &req, &resp); err != nil {
		return nil, err
	}

	if !resp.Valid {
		if sentinel := classify(resp.Error); sentinel != nil {
			return nil, sentinel
		}
		return nil, ErrInvalidToken
	}

	return &domain.Claims{
		UserID:    resp.UserID,
		Email:     resp.Email,
		Verified:  resp.Verified,
		ExpiresAt: resp.ExpiresAt,
	}, nil
}

// VerifyEmail confirms an email address.
func (a *AuthAdapter) VerifyEmail(ctx context.Context, token string) (*domain.TokenPair, error) {
	req := VerifyEmailRequest{Token: token}
	var resp TokenResponse
	if err := a.call(ctx, ServiceVerifyEmail, &req, &resp); err != nil {
		return nil, err
	}
	return resp.toPair(), nil
}

func (r TokenResponse) toPair() *domain.TokenPair {
	return &domain.TokenPair{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
		TokenType:    r.TokenType,
	}
}

// sentinels in match order. The expired message is checked before the
// generic invalid token one.
var sentinels = []error{
	ErrExpiredToken,
	ErrInvalidToken,
	ErrInvalidCredentials,
	ErrUserExists,
	ErrUserNotFound,
	ErrInvalidEmail,
	ErrWeakPassword,
	ErrPasswordTooLong,
	ErrFullNameTooLong,
}

func classify(msg string) error {
	for _, sentinel := range sentinels {
		if strings.Contains(msg, sentinel.Error()) {
			return sentinel
		}
	}
	return nil
}

// mapServiceError recovers an auth sentinel from an error that crossed the
// service bus. Anything else is a transport error.
func mapServiceError(service string, err error) error {
	if err == nil {
		return nil
	}
	if sentinel := classify(err.Error()); sentinel != nil {
		return sentinel
	}
	return fmt.Errorf("%w: %s: %v", chat.ErrTransport, service, err)
}

// IsClientError reports whether err is caused by the caller's input rather
// than the service.
func IsClientError(err error) bool {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
