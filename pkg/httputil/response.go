package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
	"github.com/Ahmadraza4026/image-search-backend/pkg/logger"
	"github.com/Ahmadraza4026/image-search-backend/pkg/validator"
)

// Response is the JSON envelope for every API response.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// sentinelCodes maps bare sentinel errors to their public code and message
// when they reach the transport without an AppError wrapper.
var sentinelCodes = []struct {
	err     error
	code    string
	message string
}{
	{apperrors.ErrNotFound, "NOT_FOUND", "resource not found"},
	{apperrors.ErrAlreadyExists, "ALREADY_EXISTS", "resource already exists"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT", "invalid input"},
	{apperrors.ErrInvalidCredentials, "INVALID_CREDENTIALS", "invalid email or password"},
	{apperrors.ErrNotVerified, "NOT_VERIFIED", "account not verified"},
	{apperrors.ErrUnauthorized, "UNAUTHORIZED", "unauthorized"},
	{apperrors.ErrForbidden, "FORBIDDEN", "forbidden"},
	{apperrors.ErrTokenExpired, "TOKEN_EXPIRED", "token expired"},
	{apperrors.ErrTokenInvalid, "TOKEN_INVALID", "token invalid"},
	{apperrors.ErrRateLimited, "RATE_LIMITED", "too many requests"},
}

// WriteError writes the error envelope for err. AppErrors keep their code
// and message; bare sentinels are mapped; anything else becomes a logged
// 500 whose details never reach the client. The request-scoped logger from
// context is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logInternal(l, r, err)
		}
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
		return
	}

	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			WriteJSON(w, apperrors.HTTPStatus(s.err), Response{
				Error: &ErrorResponse{Code: s.code, Message: s.message, RequestID: requestID},
			})
			return
		}
	}

	logInternal(l, r, err)
	WriteJSON(w, http.StatusInternalServerError, Response{
		Error: &ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred", RequestID: requestID},
	})
}

func logInternal(l *slog.Logger, r *http.Request, err error) {
	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
}

// WriteValidationError writes a 400 with per-field messages for
// validator.ValidationError, or INVALID_INPUT for decode failures.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:      "VALIDATION_ERROR",
				Message:   "request validation failed",
				Fields:    valErr.Fields(),
				RequestID: requestID,
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error(), RequestID: requestID},
	})
}
