package http

import (
	"log/slog"
	"net/http"

	"github.com/Ahmadraza4026/image-search-backend/internal/service"
	"github.com/Ahmadraza4026/image-search-backend/pkg/httputil"
	"github.com/Ahmadraza4026/image-search-backend/pkg/middleware"
	"github.com/Ahmadraza4026/image-search-backend/pkg/validator"
)

// AccountHandler serves the authenticated account's own resources.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// UpdatePasswordRequest is the JSON request body for a password change.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72,nefield=CurrentPassword"`
}

// MeResponse is the short identity view returned by /me.
type MeResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ProtectedResponse is returned by the sample guarded route.
type ProtectedResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// Me handles GET /api/users/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.Get(r.Context(), middleware.AccountIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MeResponse{ID: a.ID, Username: a.Username, Email: a.Email})
}

// Account handles GET /api/users/account
func (h *AccountHandler) Account(w http.ResponseWriter, r *http.Request) {
	a, err := h.accounts.Get(r.Context(), middleware.AccountIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, a)
}

// UpdatePassword handles PUT /api/users/update-password
func (h *AccountHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if err := validator.DecodeAndValidate(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	err := h.accounts.ChangePassword(r.Context(), middleware.AccountIDFromContext(r.Context()), service.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}

// Protected handles GET /api/protected
func (h *AccountHandler) Protected(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, ProtectedResponse{
		Message: "You have access to this protected route",
		UserID:  middleware.AccountIDFromContext(r.Context()),
	})
}
