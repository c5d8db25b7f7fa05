package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
	"github.com/Ahmadraza4026/image-search-backend/pkg/logger"
)

func stubVerifier(t *testing.T) TokenVerifier {
	t.Helper()
	return func(_ context.Context, token string) (*Identity, error) {
		switch token {
		case "good":
			return &Identity{AccountID: "acct-1", Role: "user"}, nil
		case "admin":
			return &Identity{AccountID: "acct-2", Role: "admin"}, nil
		case "old":
			return nil, fmt.Errorf("verify: %w", apperrors.ErrTokenExpired)
		default:
			return nil, errors.New("signature mismatch")
		}
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func TestAuth_AttachesIdentity(t *testing.T) {
	var gotID, gotRole, gotLogID string
	h := Auth(stubVerifier(t), slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = AccountIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotLogID = logger.AccountIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acct-1", gotID)
	assert.Equal(t, "user", gotRole)
	assert.Equal(t, "acct-1", gotLogID)
}

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"expired", "Bearer old"},
		{"invalid", "Bearer forged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := Auth(stubVerifier(t), slog.Default())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
		})
	}
}

func TestAuth_LogsExpiredAndInvalidDistinctly(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("test", "info", &buf)
	h := Auth(stubVerifier(t), l)(http.NotFoundHandler())

	for _, token := range []string{"old", "forged"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Contains(t, buf.String(), `"reason":"expired"`)
	assert.Contains(t, buf.String(), `"reason":"invalid"`)
}

func TestAuth_CaseInsensitiveScheme(t *testing.T) {
	h := Auth(stubVerifier(t), slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireRole(t *testing.T) {
	chain := func() http.Handler {
		return Auth(stubVerifier(t), slog.Default())(RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	chain().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin")
	rec = httptest.NewRecorder()
	chain().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWithIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{AccountID: "a", Role: "admin"})
	assert.Equal(t, "a", AccountIDFromContext(ctx))
	assert.Equal(t, "admin", RoleFromContext(ctx))
	assert.Empty(t, AccountIDFromContext(context.Background()))
}
