package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Ahmadraza4026/image-search-backend/internal/auth"
	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	"github.com/Ahmadraza4026/image-search-backend/internal/event"
	"github.com/Ahmadraza4026/image-search-backend/internal/mailer"
	"github.com/Ahmadraza4026/image-search-backend/internal/repository"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
	"github.com/Ahmadraza4026/image-search-backend/pkg/logger"
	"github.com/Ahmadraza4026/image-search-backend/pkg/validator"
)

// VerificationService proves ownership of an account's email address with
// an emailed, time-bound token.
type VerificationService struct {
	repo     repository.AccountRepository
	issuer   *auth.Issuer
	sender   mailer.Sender
	producer *event.Producer
	cfg      Config
	logger   *slog.Logger
}

func NewVerificationService(
	repo repository.AccountRepository,
	issuer *auth.Issuer,
	sender mailer.Sender,
	producer *event.Producer,
	cfg Config,
	logger *slog.Logger,
) *VerificationService {
	return &VerificationService{
		repo:     repo,
		issuer:   issuer,
		sender:   sender,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Send emails a fresh verification link to the account. A delivery
// failure is a ServerError; the account itself is left untouched.
func (s *VerificationService) Send(ctx context.Context, a *domain.Account) error {
	token, err := s.issuer.Issue(auth.KindVerifyEmail, a.ID, "", s.cfg.VerificationTokenTTL)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("issue verification token: %w", err))
	}

	msg, err := mailer.VerificationEmail(a.Email, mailer.LinkData{
		Username: a.Username,
		Link:     s.verificationLink(token),
		Expiry:   humanize(s.cfg.VerificationTokenTTL),
	})
	if err != nil {
		return apperrors.Internal(err)
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return apperrors.Internal(fmt.Errorf("send verification email: %w", err))
	}

	s.logger.InfoContext(ctx, "verification email sent",
		slog.String("account_id", a.ID),
		slog.String("email", logger.MaskEmail(a.Email)),
	)
	return nil
}

func (s *VerificationService) verificationLink(token string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/verify-email?token=" + url.QueryEscape(token)
}

// Verify marks the token's subject as verified. It reports
// alreadyVerified=true, without writing, when the account was verified
// before.
func (s *VerificationService) Verify(ctx context.Context, token string) (alreadyVerified bool, err error) {
	if token == "" {
		return false, apperrors.InvalidInput("verification token is required")
	}

	claims, err := s.issuer.Verify(auth.KindVerifyEmail, token)
	if err != nil {
		return false, err
	}

	a, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			return false, apperrors.NotFound("account", "")
		}
		return false, fmt.Errorf("get account for verification: %w", err)
	}

	if a.IsVerified {
		return true, nil
	}

	if err := s.repo.MarkVerified(ctx, a.ID); err != nil {
		if isNotFound(err) {
			return false, apperrors.NotFound("account", "")
		}
		return false, fmt.Errorf("mark account verified: %w", err)
	}
	a.IsVerified = true

	s.producer.AccountVerified(ctx, a)

	s.logger.InfoContext(ctx, "email verified",
		slog.String("account_id", a.ID),
	)
	return false, nil
}

// Resend re-sends the verification email to an unverified account. It
// succeeds whether or not the address is registered.
func (s *VerificationService) Resend(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if !validator.IsEmail(email) {
		return apperrors.InvalidInput("please provide a valid email address")
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			s.logger.ErrorContext(ctx, "resend verification lookup failed",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	if a.IsVerified {
		return nil
	}

	if err := s.Send(ctx, a); err != nil {
		s.logger.ErrorContext(ctx, "resend verification failed",
			slog.String("account_id", a.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}
