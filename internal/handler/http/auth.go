package http

import (
	"log/slog"
	"net/http"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	"github.com/Ahmadraza4026/image-search-backend/internal/service"
	"github.com/Ahmadraza4026/image-search-backend/pkg/httputil"
	"github.com/Ahmadraza4026/image-search-backend/pkg/validator"
)

// AuthHandler handles the public /api/auth endpoints.
type AuthHandler struct {
	sessions     *service.SessionService
	verification *service.VerificationService
	resets       *service.PasswordResetService
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(
	sessions *service.SessionService,
	verification *service.VerificationService,
	resets *service.PasswordResetService,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		sessions:     sessions,
		verification: verification,
		resets:       resets,
		logger:       logger,
	}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for registration. Password
// strength is judged by the service; 72 bytes is the bcrypt input limit.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Email    string `json:"email" validate:"required,emailaddr"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,emailaddr"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest is the JSON request body for a token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailRequest is the body of forgot-password, logout and
// resend-verification.
type EmailRequest struct {
	Email string `json:"email" validate:"required,emailaddr"`
}

// ResetPasswordRequest is the JSON request body for completing a reset.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

// --- Response types ---

// MessageResponse carries a human-readable confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// RegisterResponse is returned by a successful registration.
type RegisterResponse struct {
	Message string         `json:"message"`
	User    domain.Profile `json:"user"`
}

// VerifyEmailResponse is returned by verify-email.
type VerifyEmailResponse struct {
	Message         string `json:"message"`
	AlreadyVerified bool   `json:"alreadyVerified"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         domain.Profile `json:"user"`
}

// --- Handlers ---

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	a, err := h.sessions.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Check your email to verify.",
		User:    a.Profile(),
	})
}

// VerifyEmail handles GET /api/auth/verify-email?token=
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	already, err := h.verification.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	msg := "Email verified successfully."
	if already {
		msg = "Email already verified."
	}
	httputil.WriteData(w, http.StatusOK, VerifyEmailResponse{Message: msg, AlreadyVerified: already})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	res, err := h.sessions.Login(r.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, LoginResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.Account.Profile(),
	})
}

// RefreshToken handles POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	// An unreadable body is treated as a missing token, which the service
	// rejects with 401.
	var req RefreshTokenRequest
	_ = validator.DecodeAndValidate(w, r, &req)

	pair, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, pair)
}

// ForgotPassword handles POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.resets.RequestReset(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "Password reset email sent."})
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.resets.ConfirmReset(r.Context(), req.Token, req.NewPassword); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "Password reset successful."})
}

// Logout handles POST /api/auth/logout. It succeeds for any body.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	_ = validator.DecodeAndValidate(w, r, &req)

	h.sessions.Logout(r.Context(), req.Email)

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// ResendVerification handles POST /api/auth/resend-verification
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	if err := h.verification.Resend(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{
		Message: "If the account exists and is not yet verified, a new verification email has been sent.",
	})
}
