package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
	"github.com/Ahmadraza4026/image-search-backend/pkg/httputil"
	"github.com/Ahmadraza4026/image-search-backend/pkg/logger"
)

type contextKeyType string

const (
	accountIDKey contextKeyType = "account_id"
	roleKey      contextKeyType = "role"
)

// Identity is what the auth gate attaches to an authenticated request.
type Identity struct {
	AccountID string
	Role      string
}

// TokenVerifier checks a bearer access token. Implementations return an
// error wrapping apperrors.ErrTokenExpired when the token is past its
// expiry, and any other error when it is invalid.
type TokenVerifier func(ctx context.Context, token string) (*Identity, error)

// Auth rejects requests without a valid bearer access token with 401 and
// attaches the token's identity to the request context. It never touches
// the account store; the token alone is trusted.
func Auth(verify TokenVerifier, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reason := "missing"
				if r.Header.Get("Authorization") != "" {
					reason = "malformed"
				}
				l.DebugContext(r.Context(), "auth rejected", slog.String("reason", reason))
				httputil.WriteError(w, r, apperrors.Unauthorized("missing or malformed authorization header"), l)
				return
			}

			id, err := verify(r.Context(), token)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, apperrors.ErrTokenExpired) {
					reason = "expired"
				}
				l.InfoContext(r.Context(), "auth rejected",
					slog.String("reason", reason),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired token"), l)
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, id.AccountID)
			ctx = context.WithValue(ctx, roleKey, id.Role)
			ctx = logger.WithAccountID(ctx, id.AccountID)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("account_id", id.AccountID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole must run after Auth. Requests whose role is not listed get 403.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := roleSet[RoleFromContext(r.Context())]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountIDFromContext returns the authenticated account ID, or "".
func AccountIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(accountIDKey).(string); ok {
		return id
	}
	return ""
}

// RoleFromContext returns the authenticated role, or "".
func RoleFromContext(ctx context.Context) string {
	if role, ok := ctx.Value(roleKey).(string); ok {
		return role
	}
	return ""
}

// WithIdentity stores id in ctx the same way Auth does. Used by handler tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, id.AccountID)
	return context.WithValue(ctx, roleKey, id.Role)
}
