package domain

import (
	"strings"
	"time"
)

// Account is the sole persisted entity: a registered user and their
// session and recovery state. Secret-bearing fields never serialize.
type Account struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Role                string     `json:"role"`
	IsVerified          bool       `json:"isVerified"`
	RefreshTokenHash    string     `json:"-"`
	ResetTokenHash      string     `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// HasSession reports whether a refresh token is currently stored.
func (a *Account) HasSession() bool {
	return a.RefreshTokenHash != ""
}

// Profile is the public view of an account returned at login.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Profile returns the public view of a.
func (a *Account) Profile() Profile {
	return Profile{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Role:     a.Role,
	}
}

// TokenPair is the result of a successful login or rotating refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// NormalizeEmail trims and lower-cases an email address. Every lookup and
// insert goes through it so "Alice@Example.com " and "alice@example.com"
// name the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
