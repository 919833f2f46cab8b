package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	domain "github.com/AtharvaShastrakar/orangeChat/domain/user"
	"github.com/AtharvaShastrakar/orangeChat/events"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
	// ErrFullNameTooLong is returned for an oversized display name.
	ErrFullNameTooLong = errors.New("full name must be at most 100 characters")
)

const maxFullNameLength = 100

// UserPublisher emits account events.
type UserPublisher interface {
	PublishUserRegistered(event events.UserRegisteredEvent) error
}

// AuthService is the session oracle: it owns accounts and issues the tokens
// the API layer turns into sessions.
type AuthService struct {
	repo      *UserRepository
	hasher    *PasswordHasher
	jwt       *JWTManager
	publisher UserPublisher
	mailer    Mailer
}

// NewAuthService creates a new AuthService. publisher may be nil.
func NewAuthService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager, publisher UserPublisher, mailer Mailer) *AuthService {
	return &AuthService{
		repo:      repo,
		hasher:    hasher,
		jwt:       jwt,
		publisher: publisher,
		mailer:    mailer,
	}
}

// Signup creates an unverified account and mails its verification link.
// The token is not returned: only the owner of the address can verify it.
func (s *AuthService) Signup(ctx context.Context, email, password, fullName string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	// bcrypt only looks at the first 72 bytes
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	fullName = strings.TrimSpace(fullName)
	if utf8.RuneCountInString(fullName) > maxFullNameLength {
		return nil, ErrFullNameTooLong
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.jwt.GenerateVerifyToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}
	// the account stays unverified until a later link reaches the owner
	if err := s.mailer.SendVerification(ctx, user.Email, token); err != nil {
		log.Printf("[auth] Failed to send verification mail to %s: %v", user.Email, err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishUserRegistered(events.UserRegisteredEvent{
			UserID:    user.ID,
			Email:     user.Email,
			FullName:  user.FullName,
			Timestamp: now,
		}); err != nil {
			log.Printf("[auth] Failed to publish UserRegistered for %s: %v", user.ID, err)
		}
	}

	return user, nil
}

// Login authenticates a user and returns tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.generateTokenPair(user)
}

// RefreshTokens exchanges a refresh token for a new pair. The verified flag
// is read again from the account, so a refresh after verification yields a
// verified session.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return s.generateTokenPair(user)
}

// ValidateToken validates an access token and returns the identity it
// names, with the verified flag taken from the account.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	out := &domain.Claims{
		UserID:   user.ID,
		Email:    user.Email,
		Verified: user.EmailVerified,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// VerifyEmail confirms the address named by a verification token and returns
// a fresh, verified token pair.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.TokenPair, error) {
	claims, err := s.jwt.ValidateVerifyToken(token)
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkVerified(ctx, claims.UserID, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	log.Printf("[auth] Email verified for user %s", user.ID)
	return s.generateTokenPair(user)
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *AuthService) generateTokenPair(user *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.EmailVerified)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwt.AccessTokenDuration(),
		TokenType:    "Bearer",
	}, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
