package repository

import (
	"context"
	"time"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
)

// AccountRepository is the credential store. Emails are passed already
// normalized. Lookups that find nothing return apperrors.ErrNotFound.
type AccountRepository interface {
	// Create inserts a new account. A duplicate email or username returns
	// an AlreadyExists AppError naming the colliding field.
	Create(ctx context.Context, account *domain.Account) error

	GetByID(ctx context.Context, id string) (*domain.Account, error)

	GetByEmail(ctx context.Context, email string) (*domain.Account, error)

	// MarkVerified sets is_verified. It is idempotent.
	MarkVerified(ctx context.Context, id string) error

	// SetRefreshTokenHash stores the digest of the live refresh token,
	// replacing any previous one. An empty hash clears it.
	SetRefreshTokenHash(ctx context.Context, id, hash string) error

	// SwapRefreshTokenHash replaces oldHash with newHash only if oldHash is
	// still the stored value. It reports whether the swap happened.
	SwapRefreshTokenHash(ctx context.Context, id, oldHash, newHash string) (bool, error)

	// SetResetToken stores a pending reset digest and its expiry.
	SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error

	// ConsumeResetToken atomically finds the account whose reset digest is
	// hash and whose expiry is after now, sets its password hash, and
	// clears the reset token, its expiry and the refresh token. It returns
	// ErrNotFound when no live reset matches.
	ConsumeResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (*domain.Account, error)

	// UpdatePassword sets a new password hash and clears the refresh token.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}
