package middleware

import (
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/internal/observability"
	"github.com/upb/genai-gateway/services/ratelimit"
	"github.com/upb/genai-gateway/utils"
)

// RateLimitChecker defines the interface for rate limit checking
type RateLimitChecker interface {
	CheckLimit(preset ratelimit.Preset, client string) ratelimit.RateLimitResult
}

// RateLimitMiddleware rejects clients that exceed their per-IP budget
type RateLimitMiddleware struct {
	limiter RateLimitChecker
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. A nil limiter disables limiting.
func NewRateLimitMiddleware(limiter RateLimitChecker, logger *zap.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns a middleware enforcing preset for each client IP
func (m *RateLimitMiddleware) Limit(preset ratelimit.Preset) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := ClientIP(r)
			result := m.limiter.CheckLimit(preset, client)
			if result.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			}

			if !result.Allowed {
				retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				observability.FromContext(r.Context(), m.logger).Warn("request blocked by rate limit",
					zap.String("preset", string(preset)),
					zap.String("client", client))

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				_ = utils.WriteTooManyRequests(w, "rate_limited", result.ViolationReason, map[string]interface{}{
					"preset":              string(preset),
					"retry_after_seconds": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
