package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
	"github.com/Ahmadraza4026/image-search-backend/pkg/middleware"
)

// Kind says what a token may be used for. A token of one kind is never
// accepted where another is expected.
type Kind string

const (
	KindAccess      Kind = "access"
	KindRefresh     Kind = "refresh"
	KindVerifyEmail Kind = "verify_email"
)

// Claims carried by every token this service issues.
type Claims struct {
	Role string `json:"role,omitempty"`
	Use  Kind   `json:"token_use"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewIssuer creates an issuer. The secret is fixed for the life of the process.
func NewIssuer(secret, issuer string) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Issue signs a token of the given kind for subjectID, valid for ttl. role
// is embedded when non-empty. Every call yields a distinct token.
func (i *Issuer) Issue(kind Kind, subjectID, role string, ttl time.Duration) (string, error) {
	now := i.now().UTC()
	claims := &Claims{
		Role: role,
		Use:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and kind. It returns a
// TokenExpired AppError for a token past its expiry and a TokenInvalid
// AppError for anything else wrong with it.
func (i *Issuer) Verify(kind Kind, token string) (*Claims, error) {
	if token == "" {
		return nil, apperrors.TokenInvalid("token is required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired("token has expired")
		}
		return nil, apperrors.TokenInvalid("token is invalid")
	}

	if claims.Use != kind || claims.Subject == "" {
		return nil, apperrors.TokenInvalid("token is invalid")
	}
	return claims, nil
}

// AccessVerifier adapts Verify for the auth gate.
func (i *Issuer) AccessVerifier() middleware.TokenVerifier {
	return func(_ context.Context, token string) (*middleware.Identity, error) {
		claims, err := i.Verify(KindAccess, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Identity{AccountID: claims.Subject, Role: claims.Role}, nil
	}
}
