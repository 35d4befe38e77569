package middleware

import (
	"context"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/upb/genai-gateway/services/generation"
)

// Context key type to avoid collisions
type contextKey string

const (
	// CredentialsKey is the context key for caller-supplied upstream tokens
	CredentialsKey contextKey = "credentials"
)

// GetRequestIDFromContext retrieves the chi request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetCredentialsFromContext retrieves the parsed Authorization credentials.
// A request without credentials yields the zero value.
func GetCredentialsFromContext(ctx context.Context) generation.Credentials {
	if val := ctx.Value(CredentialsKey); val != nil {
		if creds, ok := val.(generation.Credentials); ok {
			return creds
		}
	}
	return generation.Credentials{}
}

// WithCredentials adds parsed credentials to the context
func WithCredentials(ctx context.Context, creds generation.Credentials) context.Context {
	return context.WithValue(ctx, CredentialsKey, creds)
}

// ClientIP returns the host part of RemoteAddr. chi's RealIP middleware
// has already rewritten RemoteAddr from X-Forwarded-For / X-Real-IP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
