package middleware

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chatshare/internal/ratelimit"
	"github.com/capitalize-ai/chatshare/pkg/logger"
	"github.com/capitalize-ai/chatshare/pkg/metrics"
)

// RateLimit admits requests through limiter, keyed by the client identity
// set by Identity.
func RateLimit(limiter *ratelimit.Limiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetClientIdentity(r.Context())
			if identity == "" {
				identity = "ip:" + r.RemoteAddr
			}

			err := limiter.Admit(r.Context(), identity)
			var limitErr *ratelimit.LimitError
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.As(err, &limitErr):
				metrics.RateLimitedTotal.Inc()
				retryAfter := int(math.Ceil(limitErr.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprint(retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)
			default:
				log.Error("rate limiter unavailable", zap.String("client_identity", identity), zap.Error(err))
				http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
			}
		})
	}
}
