package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ahmadraza4026/image-search-backend/internal/event"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
)

func newTestAccountService(repo *mockAccountRepository) *AccountService {
	logger := newTestLogger()
	return NewAccountService(repo, newTestHasher(), newTestPolicy(), event.NewNoopProducer(logger), logger)
}

func TestAccountGet(t *testing.T) {
	repo := new(mockAccountRepository)
	svc := newTestAccountService(repo)
	ctx := context.Background()

	repo.On("GetByID", ctx, "acc-1").Return(verifiedAccount(), nil)
	repo.On("GetByID", ctx, "ghost").Return(nil, apperrors.ErrNotFound)

	a, err := svc.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)

	_, err = svc.Get(ctx, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChangePassword_Success(t *testing.T) {
	repo := new(mockAccountRepository)
	svc := newTestAccountService(repo)
	ctx := context.Background()

	repo.On("GetByID", ctx, "acc-1").Return(verifiedAccount(), nil)
	repo.On("UpdatePassword", ctx, "acc-1", mock.AnythingOfType("string")).Return(nil)

	err := svc.ChangePassword(ctx, "acc-1", ChangePasswordInput{
		CurrentPassword: strongPass,
		NewPassword:     "another long passphrase",
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	repo := new(mockAccountRepository)
	svc := newTestAccountService(repo)
	ctx := context.Background()

	repo.On("GetByID", ctx, "acc-1").Return(verifiedAccount(), nil)

	err := svc.ChangePassword(ctx, "acc-1", ChangePasswordInput{
		CurrentPassword: "not my password",
		NewPassword:     "another long passphrase",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_WeakNew(t *testing.T) {
	repo := new(mockAccountRepository)
	svc := newTestAccountService(repo)
	ctx := context.Background()

	repo.On("GetByID", ctx, "acc-1").Return(verifiedAccount(), nil)

	err := svc.ChangePassword(ctx, "acc-1", ChangePasswordInput{
		CurrentPassword: strongPass,
		NewPassword:     "weak",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
}
