package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	"github.com/Ahmadraza4026/image-search-backend/internal/event"
	"github.com/Ahmadraza4026/image-search-backend/internal/password"
	"github.com/Ahmadraza4026/image-search-backend/internal/repository"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
)

// AccountService serves the authenticated account's own profile.
type AccountService struct {
	repo     repository.AccountRepository
	hasher   *password.Hasher
	policy   password.Policy
	producer *event.Producer
	logger   *slog.Logger
}

func NewAccountService(
	repo repository.AccountRepository,
	hasher *password.Hasher,
	policy password.Policy,
	producer *event.Producer,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		repo:     repo,
		hasher:   hasher,
		policy:   policy,
		producer: producer,
		logger:   logger,
	}
}

// ChangePasswordInput holds the parameters for a password change.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

// Get returns the account with the given id.
func (s *AccountService) Get(ctx context.Context, id string) (*domain.Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("account", "")
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// ChangePassword replaces the password after checking the current one.
// Every session of the account ends.
func (s *AccountService) ChangePassword(ctx context.Context, id string, input ChangePasswordInput) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Compare(a.PasswordHash, input.CurrentPassword)
	if err != nil {
		return apperrors.Internal(err)
	}
	if !ok {
		wrong := apperrors.InvalidCredentials()
		wrong.Message = "current password is incorrect"
		return wrong
	}

	if reason := s.policy.Check(input.NewPassword, a.Username, a.Email); reason != "" {
		return apperrors.InvalidInput(reason)
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := s.repo.UpdatePassword(ctx, a.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.producer.PasswordChanged(ctx, a)

	s.logger.InfoContext(ctx, "password changed",
		slog.String("account_id", a.ID),
	)
	return nil
}
