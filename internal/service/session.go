package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ahmadraza4026/image-search-backend/internal/auth"
	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	"github.com/Ahmadraza4026/image-search-backend/internal/event"
	"github.com/Ahmadraza4026/image-search-backend/internal/password"
	"github.com/Ahmadraza4026/image-search-backend/internal/repository"
	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
	"github.com/Ahmadraza4026/image-search-backend/pkg/logger"
	"github.com/Ahmadraza4026/image-search-backend/pkg/validator"
)

// SessionService registers accounts and manages the access/refresh token
// pair of a logged-in account.
type SessionService struct {
	repo         repository.AccountRepository
	hasher       passwordHasher
	policy       password.Policy
	issuer       *auth.Issuer
	verification *VerificationService
	producer     *event.Producer
	cfg          Config
	logger       *slog.Logger
	now          func() time.Time
}

func NewSessionService(
	repo repository.AccountRepository,
	hasher *password.Hasher,
	policy password.Policy,
	issuer *auth.Issuer,
	verification *VerificationService,
	producer *event.Producer,
	cfg Config,
	logger *slog.Logger,
) *SessionService {
	// Built up front so the first unknown-email login costs one compare.
	hasher.DummyHash()
	return &SessionService{
		repo:         repo,
		hasher:       hasher,
		policy:       policy,
		issuer:       issuer,
		verification: verification,
		producer:     producer,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput holds the parameters for a login.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult is the session handed out by Login.
type LoginResult struct {
	Tokens  domain.TokenPair
	Account *domain.Account
}

// Register creates an unverified account and emails it a verification
// link. No session is issued.
func (s *SessionService) Register(ctx context.Context, input RegisterInput) (*domain.Account, error) {
	username := strings.TrimSpace(input.Username)
	email := domain.NormalizeEmail(input.Email)

	if username == "" {
		return nil, apperrors.InvalidInput("username is required")
	}
	if !validator.IsEmail(email) {
		return nil, apperrors.InvalidInput("please provide a valid email address")
	}
	if reason := s.policy.Check(input.Password, username, email); reason != "" {
		return nil, apperrors.InvalidInput(reason)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now().UTC()
	a := &domain.Account{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", a.ID),
		slog.String("email", logger.MaskEmail(a.Email)),
	)

	s.producer.AccountRegistered(ctx, a)

	if err := s.verification.Send(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Login checks the credentials of a verified account and starts a new
// session, replacing any previous one.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			// Pay for a bcrypt compare so unknown emails answer as slowly
			// as wrong passwords.
			_, _ = s.hasher.Compare(s.hasher.DummyHash(), input.Password)
			recordOutcome("login", "invalid_credentials")
			return nil, apperrors.InvalidCredentials()
		}
		return nil, fmt.Errorf("get account for login: %w", err)
	}

	ok, err := s.hasher.Compare(a.PasswordHash, input.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "login rejected",
			slog.String("account_id", a.ID),
			slog.String("reason", "password"),
		)
		recordOutcome("login", "invalid_credentials")
		return nil, apperrors.InvalidCredentials()
	}

	// Checked after the password so the verified state only leaks to
	// someone who already knows it.
	if !a.IsVerified {
		recordOutcome("login", "not_verified")
		return nil, apperrors.NotVerified()
	}

	access, err := s.issuer.Issue(auth.KindAccess, a.ID, a.Role, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	refresh, err := s.issuer.Issue(auth.KindRefresh, a.ID, "", s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.repo.SetRefreshTokenHash(ctx, a.ID, auth.Digest(refresh)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	recordOutcome("login", "success")
	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", a.ID),
	)

	return &LoginResult{
		Tokens:  domain.TokenPair{AccessToken: access, RefreshToken: refresh},
		Account: a,
	}, nil
}

// Refresh mints a new access token for a live refresh token. With
// rotation enabled it also replaces the refresh token.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, apperrors.Unauthorized("refresh token is required")
	}

	claims, err := s.issuer.Verify(auth.KindRefresh, refreshToken)
	if err != nil {
		reason := rejectReason(err)
		recordOutcome("refresh", reason)
		s.logger.InfoContext(ctx, "refresh rejected",
			slog.String("reason", reason),
		)
		return nil, apperrors.Forbidden("invalid or expired refresh token")
	}

	a, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if isNotFound(err) {
			recordOutcome("refresh", "invalid")
			return nil, apperrors.Forbidden("invalid or expired refresh token")
		}
		return nil, fmt.Errorf("get account for refresh: %w", err)
	}

	digest := auth.Digest(refreshToken)
	if !a.HasSession() || subtle.ConstantTimeCompare([]byte(a.RefreshTokenHash), []byte(digest)) != 1 {
		s.logger.InfoContext(ctx, "refresh rejected",
			slog.String("account_id", a.ID),
			slog.String("reason", "revoked"),
		)
		recordOutcome("refresh", "revoked")
		return nil, apperrors.Forbidden("refresh token has been revoked")
	}

	access, err := s.issuer.Issue(auth.KindAccess, a.ID, a.Role, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	pair := &domain.TokenPair{AccessToken: access}

	if s.cfg.RefreshTokenRotation {
		next, err := s.issuer.Issue(auth.KindRefresh, a.ID, "", s.cfg.RefreshTokenTTL)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		swapped, err := s.repo.SwapRefreshTokenHash(ctx, a.ID, digest, auth.Digest(next))
		if err != nil {
			return nil, fmt.Errorf("rotate refresh token: %w", err)
		}
		if !swapped {
			// A concurrent refresh or logout won the race.
			recordOutcome("refresh", "revoked")
			return nil, apperrors.Forbidden("refresh token has been revoked")
		}
		pair.RefreshToken = next
	}

	recordOutcome("refresh", "success")
	s.logger.InfoContext(ctx, "tokens refreshed",
		slog.String("account_id", a.ID),
		slog.Bool("rotated", pair.RefreshToken != ""),
	)
	return pair, nil
}

// Logout ends the session of the account with the given email. It
// always succeeds.
func (s *SessionService) Logout(ctx context.Context, email string) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			s.logger.ErrorContext(ctx, "logout lookup failed",
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if err := s.repo.SetRefreshTokenHash(ctx, a.ID, ""); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear refresh token",
			slog.String("account_id", a.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.InfoContext(ctx, "account logged out",
		slog.String("account_id", a.ID),
	)
}

func rejectReason(err error) string {
	if errors.Is(err, apperrors.ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}
