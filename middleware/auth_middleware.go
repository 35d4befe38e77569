package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/generation"
)

// AuthMiddleware turns the Authorization header into upstream credentials.
// The gateway has no identities of its own: a caller either brings provider
// tokens or relies on the channel's configured pool.
type AuthMiddleware struct {
	logger *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{logger: logger}
}

// ExtractCredentials parses `Bearer [gitee:|ms:|hf:|deepseek:]tok1,tok2` and
// stores the result in the request context. It never rejects a request.
func (m *AuthMiddleware) ExtractCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		creds := generation.ParseAuthorization(header)
		m.logger.Debug("caller credentials parsed",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("channel_hint", creds.ChannelHint),
			zap.Int("tokens", len(creds.Tokens)))

		next.ServeHTTP(w, r.WithContext(WithCredentials(ctx, creds)))
	})
}
