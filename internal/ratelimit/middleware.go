package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/Ahmadraza4026/image-search-backend/pkg/errors"
	"github.com/Ahmadraza4026/image-search-backend/pkg/httputil"
	"github.com/Ahmadraza4026/image-search-backend/pkg/middleware"
)

var rejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_rate_limited_total",
		Help: "Requests rejected by the auth rate limiter",
	},
	[]string{"path"},
)

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. Requests are keyed by the client IP ips resolves; forwarding
// headers count only from trusted proxies. Limiter errors fail open.
func Middleware(l Limiter, ips *middleware.ClientIPResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ips.ClientIP(r)

			d, err := l.Allow(r.Context(), ip)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !d.Allowed {
				rejected.WithLabelValues(r.URL.Path).Inc()
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httputil.WriteError(w, r, apperrors.RateLimited("too many requests, please try again later"), logger)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
