package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	"github.com/Ahmadraza4026/image-search-backend/pkg/database"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
)

const accountColumns = `id, username, email, password_hash, role, is_verified,
		COALESCE(refresh_token_hash, ''), COALESCE(reset_token_hash, ''), reset_token_expires_at,
		created_at, updated_at`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db database.DBTX
}

// NewAccountRepository creates a PostgreSQL-backed account repository.
func NewAccountRepository(db database.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (err error) {
	query := `
		INSERT INTO accounts (id, username, email, password_hash, role, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	ctx, end := database.TraceQuery(ctx, "CreateAccount", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		a.ID,
		a.Username,
		a.Email,
		a.PasswordHash,
		a.Role,
		a.IsVerified,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if violatedField(err) == "username" {
				return apperrors.AlreadyExists("account", "username", a.Username)
			}
			return apperrors.AlreadyExists("account", "email", a.Email)
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by id.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, "GetAccountByID", query, id)
}

// GetByEmail retrieves an account by normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanAccount(ctx, "GetAccountByEmail", query, email)
}

// MarkVerified flips is_verified. Verifying twice is not an error.
func (r *AccountRepository) MarkVerified(ctx context.Context, id string) error {
	query := `UPDATE accounts SET is_verified = true, updated_at = $1 WHERE id = $2`
	return r.execOne(ctx, "MarkAccountVerified", query, id, time.Now().UTC(), id)
}

// SetRefreshTokenHash stores or, for "", clears the refresh digest.
func (r *AccountRepository) SetRefreshTokenHash(ctx context.Context, id, hash string) error {
	query := `UPDATE accounts SET refresh_token_hash = NULLIF($1, ''), updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, "SetRefreshTokenHash", query, id, hash, time.Now().UTC(), id)
}

// SwapRefreshTokenHash is a compare-and-set on refresh_token_hash.
func (r *AccountRepository) SwapRefreshTokenHash(ctx context.Context, id, oldHash, newHash string) (swapped bool, err error) {
	query := `
		UPDATE accounts
		SET refresh_token_hash = $1, updated_at = $2
		WHERE id = $3 AND refresh_token_hash = $4`

	ctx, end := database.TraceQuery(ctx, "SwapRefreshTokenHash", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, newHash, time.Now().UTC(), id, oldHash)
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// SetResetToken stores a pending reset digest.
func (r *AccountRepository) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	query := `
		UPDATE accounts
		SET reset_token_hash = $1, reset_token_expires_at = $2, updated_at = $3
		WHERE id = $4`
	return r.execOne(ctx, "SetResetToken", query, id, hash, expiresAt, time.Now().UTC(), id)
}

// ConsumeResetToken matches and clears a live reset token in one statement,
// so a secret can succeed at most once even under concurrent use.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, hash, passwordHash string, now time.Time) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET password_hash = $1,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    refresh_token_hash = NULL,
		    updated_at = $2
		WHERE reset_token_hash = $3 AND reset_token_expires_at > $2
		RETURNING ` + accountColumns

	return r.scanAccount(ctx, "ConsumeResetToken", query, passwordHash, now, hash)
}

// UpdatePassword sets a new hash and ends the current session.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $1, refresh_token_hash = NULL, updated_at = $2
		WHERE id = $3`
	return r.execOne(ctx, "UpdatePassword", query, id, passwordHash, time.Now().UTC(), id)
}

// execOne runs an UPDATE that must touch exactly the account id.
func (r *AccountRepository) execOne(ctx context.Context, op, query, id string, args ...any) (err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec %s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("account", id)
	}
	return nil
}

func (r *AccountRepository) scanAccount(ctx context.Context, op, query string, args ...any) (_ *domain.Account, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var a domain.Account
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.IsVerified,
		&a.RefreshTokenHash,
		&a.ResetTokenHash,
		&a.ResetTokenExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return &a, nil
}

// isUniqueViolation checks for SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "23505")
}

// violatedField names the column behind a unique violation, from the
// constraint name when available.
func violatedField(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.Contains(pgErr.ConstraintName, "username") {
		return "username"
	}
	if strings.Contains(err.Error(), "accounts_username") {
		return "username"
	}
	return "email"
}
