package middleware

import (
	"log/slog"
	"net/http"

	"github.com/Ahmadraza4026/image-search-backend/pkg/logger"
)

// RequestLogger stores a request-scoped logger (correlation_id, trace_id,
// span_id) in context for logger.FromContext. Mount it after
// RequestLogging and Tracing. Auth adds account_id on guarded routes.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
