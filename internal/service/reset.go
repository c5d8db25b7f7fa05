package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ahmadraza4026/image-search-backend/internal/auth"
	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	"github.com/Ahmadraza4026/image-search-backend/internal/event"
	"github.com/Ahmadraza4026/image-search-backend/internal/mailer"
	"github.com/Ahmadraza4026/image-search-backend/internal/password"
	"github.com/Ahmadraza4026/image-search-backend/internal/repository"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
	"github.com/Ahmadraza4026/image-search-backend/pkg/logger"
	"github.com/Ahmadraza4026/image-search-backend/pkg/validator"
)

// PasswordResetService runs self-service password recovery with an opaque,
// single-use emailed secret.
type PasswordResetService struct {
	repo      repository.AccountRepository
	hasher    *password.Hasher
	policy    password.Policy
	sender    mailer.Sender
	producer  *event.Producer
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	newSecret func() (string, error)
}

func NewPasswordResetService(
	repo repository.AccountRepository,
	hasher *password.Hasher,
	policy password.Policy,
	sender mailer.Sender,
	producer *event.Producer,
	cfg Config,
	logger *slog.Logger,
) *PasswordResetService {
	return &PasswordResetService{
		repo:      repo,
		hasher:    hasher,
		policy:    policy,
		sender:    sender,
		producer:  producer,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newSecret: auth.NewResetSecret,
	}
}

// RequestReset stores the digest of a new reset secret and emails the
// secret to the account owner. Any earlier pending secret stops working.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if !validator.IsEmail(email) {
		return apperrors.InvalidInput("please provide a valid email address")
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("get account for reset: %w", err)
		}
		s.logger.InfoContext(ctx, "password reset requested for unknown email",
			slog.String("email", logger.MaskEmail(email)),
		)
		if s.cfg.ResetRevealsUnknown {
			return apperrors.NotFound("account", "")
		}
		return nil
	}

	secret, err := s.newSecret()
	if err != nil {
		return apperrors.Internal(err)
	}

	expiresAt := s.now().UTC().Add(s.cfg.ResetTokenTTL)
	if err := s.repo.SetResetToken(ctx, a.ID, auth.Digest(secret), expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	msg, err := mailer.PasswordResetEmail(a.Email, mailer.LinkData{
		Username: a.Username,
		Link:     strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/reset-password/" + secret,
		Expiry:   humanize(s.cfg.ResetTokenTTL),
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return apperrors.Internal(fmt.Errorf("send reset email: %w", err))
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("account_id", a.ID),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}

// ConfirmReset sets a new password for the holder of a live reset secret.
// The secret is consumed and any session is ended in the same store write,
// so a secret never succeeds twice.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return apperrors.InvalidInput("reset token is required")
	}
	if reason := s.policy.Check(newPassword); reason != "" {
		return apperrors.InvalidInput(reason)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperrors.Internal(err)
	}

	a, err := s.repo.ConsumeResetToken(ctx, auth.Digest(token), hash, s.now().UTC())
	if err != nil {
		if isNotFound(err) {
			return apperrors.TokenInvalid("reset token is invalid or has expired")
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	s.producer.PasswordReset(ctx, a)

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("account_id", a.ID),
	)
	return nil
}
