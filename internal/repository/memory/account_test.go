package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	"github.com/Ahmadraza4026/image-search-backend/internal/repository"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
)

var _ repository.AccountRepository = (*AccountRepository)(nil)

func seed(t *testing.T, r *AccountRepository) *domain.Account {
	t.Helper()
	a := &domain.Account{ID: "acc-1", Username: "alice", Email: "alice@example.com", PasswordHash: "h", Role: domain.RoleUser}
	require.NoError(t, r.Create(context.Background(), a))
	return a
}

func TestCreate_Uniqueness(t *testing.T) {
	r := NewAccountRepository()
	seed(t, r)

	err := r.Create(context.Background(), &domain.Account{ID: "acc-2", Username: "bob", Email: "alice@example.com"})
	assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))

	err = r.Create(context.Background(), &domain.Account{ID: "acc-3", Username: "alice", Email: "other@example.com"})
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "username")
}

func TestCreate_ConcurrentDuplicates(t *testing.T) {
	r := NewAccountRepository()
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := &domain.Account{ID: string(rune('a' + i)), Username: "same", Email: "same@example.com"}
			if r.Create(context.Background(), a) == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
}

func TestGet_ReturnsCopies(t *testing.T) {
	r := NewAccountRepository()
	seed(t, r)

	a, err := r.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	a.Username = "mallory"

	b, err := r.GetByID(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", b.Username)

	_, err = r.GetByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestSwapRefreshTokenHash(t *testing.T) {
	r := NewAccountRepository()
	seed(t, r)
	ctx := context.Background()

	swapped, err := r.SwapRefreshTokenHash(ctx, "acc-1", "", "x")
	require.NoError(t, err)
	assert.False(t, swapped, "no session to swap")

	require.NoError(t, r.SetRefreshTokenHash(ctx, "acc-1", "old"))
	swapped, _ = r.SwapRefreshTokenHash(ctx, "acc-1", "old", "new")
	assert.True(t, swapped)
	swapped, _ = r.SwapRefreshTokenHash(ctx, "acc-1", "old", "newer")
	assert.False(t, swapped)
}

func TestConsumeResetToken(t *testing.T) {
	r := NewAccountRepository()
	seed(t, r)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.SetRefreshTokenHash(ctx, "acc-1", "session"))
	require.NoError(t, r.SetResetToken(ctx, "acc-1", "reset", now.Add(time.Hour)))

	_, err := r.ConsumeResetToken(ctx, "wrong", "h2", now)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = r.ConsumeResetToken(ctx, "reset", "h2", now.Add(2*time.Hour))
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "expired tokens never match")

	a, err := r.ConsumeResetToken(ctx, "reset", "h2", now)
	require.NoError(t, err)
	assert.Equal(t, "h2", a.PasswordHash)
	assert.Empty(t, a.RefreshTokenHash)
	assert.Empty(t, a.ResetTokenHash)
	assert.Nil(t, a.ResetTokenExpiresAt)

	_, err = r.ConsumeResetToken(ctx, "reset", "h3", now)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "single use")
}

func TestUpdatePassword_ClearsSession(t *testing.T) {
	r := NewAccountRepository()
	seed(t, r)
	ctx := context.Background()

	require.NoError(t, r.SetRefreshTokenHash(ctx, "acc-1", "session"))
	require.NoError(t, r.UpdatePassword(ctx, "acc-1", "h2"))

	a, _ := r.GetByID(ctx, "acc-1")
	assert.Equal(t, "h2", a.PasswordHash)
	assert.False(t, a.HasSession())

	assert.True(t, errors.Is(r.MarkVerified(ctx, "gone"), apperrors.ErrNotFound))
}
