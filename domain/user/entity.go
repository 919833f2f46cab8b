package user

import (
	"time"
)

// User is an account known to the session oracle.
type User struct {
	ID            string `gorm:"primaryKey;type:text"`
	Email         string `gorm:"uniqueIndex;not null;type:text"`
	FullName      string `gorm:"type:text"`
	PasswordHash  string `gorm:"not null;type:text"`
	EmailVerified bool   `gorm:"not null;default:false"`
	VerifiedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Claims is the identity extracted from a valid access token.
type Claims struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"` // expiry of the access token
}
