package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
)

func newAccountTestFixture(t *testing.T) (*AccountRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewAccountRepository(mock), mock
}

func sampleAccount() *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		ID:           "0b6f1c1e-5f59-4a5e-9d0e-6f3b1b1d2c01",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$04$hash",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func accountRow(a *domain.Account) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "username", "email", "password_hash", "role", "is_verified",
		"refresh_token_hash", "reset_token_hash", "reset_token_expires_at",
		"created_at", "updated_at",
	}).AddRow(
		a.ID, a.Username, a.Email, a.PasswordHash, a.Role, a.IsVerified,
		a.RefreshTokenHash, a.ResetTokenHash, a.ResetTokenExpiresAt,
		a.CreatedAt, a.UpdatedAt,
	)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestAccountRepository_Create_Success(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	a := sampleAccount()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(a.ID, a.Username, a.Email, a.PasswordHash, a.Role, false, a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Create_DuplicateEmail(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	a := sampleAccount()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	err := repo.Create(context.Background(), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "email")
	assert.Contains(t, appErr.Message, "alice@example.com")
}

func TestAccountRepository_Create_DuplicateUsername(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	a := sampleAccount()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})

	err := repo.Create(context.Background(), a)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ALREADY_EXISTS", appErr.Code)
	assert.Contains(t, appErr.Message, "username")
}

func TestAccountRepository_Create_StringSQLState(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	a := sampleAccount()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf(`ERROR: duplicate key value violates unique constraint "accounts_username_key" (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), a)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "username")
}

func TestAccountRepository_Create_DBError(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := repo.Create(context.Background(), sampleAccount())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert account")
	assert.False(t, errors.Is(err, apperrors.ErrAlreadyExists))
}

// ---------------------------------------------------------------------------
// Lookups
// ---------------------------------------------------------------------------

func TestAccountRepository_GetByID_Success(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	a := sampleAccount()
	a.RefreshTokenHash = "digest"

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id =").
		WithArgs(a.ID).
		WillReturnRows(accountRow(a))

	got, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Username, got.Username)
	assert.Equal(t, "digest", got.RefreshTokenHash)
	assert.Nil(t, got.ResetTokenExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id =").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAccountRepository_GetByEmail_Success(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	a := sampleAccount()
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	a.ResetTokenHash = "reset-digest"
	a.ResetTokenExpiresAt = &exp

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE email =").
		WithArgs(a.Email).
		WillReturnRows(accountRow(a))

	got, err := repo.GetByEmail(context.Background(), a.Email)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	require.NotNil(t, got.ResetTokenExpiresAt)
	assert.True(t, exp.Equal(*got.ResetTokenExpiresAt))
}

func TestAccountRepository_GetByEmail_DBError(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE email =").
		WithArgs("alice@example.com").
		WillReturnError(errors.New("timeout"))

	_, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan account")
}

// ---------------------------------------------------------------------------
// Updates
// ---------------------------------------------------------------------------

func TestAccountRepository_MarkVerified(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectExec("UPDATE accounts SET is_verified = true").
		WithArgs(pgxmock.AnyArg(), "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkVerified(context.Background(), "acc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_MarkVerified_NotFound(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectExec("UPDATE accounts SET is_verified = true").
		WithArgs(pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkVerified(context.Background(), "gone")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAccountRepository_SetRefreshTokenHash(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectExec("UPDATE accounts SET refresh_token_hash = NULLIF").
		WithArgs("digest", pgxmock.AnyArg(), "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE accounts SET refresh_token_hash = NULLIF").
		WithArgs("", pgxmock.AnyArg(), "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetRefreshTokenHash(context.Background(), "acc-1", "digest"))
	require.NoError(t, repo.SetRefreshTokenHash(context.Background(), "acc-1", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SetRefreshTokenHash_DBError(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectExec("UPDATE accounts SET refresh_token_hash").
		WithArgs("digest", pgxmock.AnyArg(), "acc-1").
		WillReturnError(errors.New("boom"))

	err := repo.SetRefreshTokenHash(context.Background(), "acc-1", "digest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exec SetRefreshTokenHash")
}

func TestAccountRepository_SwapRefreshTokenHash(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectExec("UPDATE accounts SET refresh_token_hash = .+ WHERE id = .+ AND refresh_token_hash =").
		WithArgs("new", pgxmock.AnyArg(), "acc-1", "old").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE accounts SET refresh_token_hash = .+ WHERE id = .+ AND refresh_token_hash =").
		WithArgs("newer", pgxmock.AnyArg(), "acc-1", "old").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	swapped, err := repo.SwapRefreshTokenHash(context.Background(), "acc-1", "old", "new")
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = repo.SwapRefreshTokenHash(context.Background(), "acc-1", "old", "newer")
	require.NoError(t, err)
	assert.False(t, swapped, "second swap from a stale value must lose")
}

func TestAccountRepository_SetResetToken(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	exp := time.Now().Add(time.Hour).UTC()

	mock.ExpectExec("UPDATE accounts SET reset_token_hash = .+, reset_token_expires_at =").
		WithArgs("reset-digest", exp, pgxmock.AnyArg(), "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetResetToken(context.Background(), "acc-1", "reset-digest", exp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ConsumeResetToken_Success(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	now := time.Now().UTC()
	a := sampleAccount()
	a.PasswordHash = "new-hash"

	mock.ExpectQuery("UPDATE accounts SET password_hash = .+ WHERE reset_token_hash = .+ AND reset_token_expires_at > .+ RETURNING").
		WithArgs("new-hash", now, "reset-digest").
		WillReturnRows(accountRow(a))

	got, err := repo.ConsumeResetToken(context.Background(), "reset-digest", "new-hash", now)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Empty(t, got.RefreshTokenHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ConsumeResetToken_NoMatch(t *testing.T) {
	repo, mock := newAccountTestFixture(t)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE accounts SET password_hash").
		WithArgs("new-hash", now, "stale").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.ConsumeResetToken(context.Background(), "stale", "new-hash", now)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAccountRepository_UpdatePassword(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectExec("UPDATE accounts SET password_hash = .+, refresh_token_hash = NULL").
		WithArgs("new-hash", pgxmock.AnyArg(), "acc-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdatePassword(context.Background(), "acc-1", "new-hash"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_UpdatePassword_NotFound(t *testing.T) {
	repo, mock := newAccountTestFixture(t)

	mock.ExpectExec("UPDATE accounts SET password_hash").
		WithArgs("new-hash", pgxmock.AnyArg(), "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePassword(context.Background(), "gone", "new-hash")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
