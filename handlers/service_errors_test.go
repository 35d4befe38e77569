package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/upb/genai-gateway/services/providers"
	"github.com/upb/genai-gateway/services/tokens"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid params", providers.ErrInvalidParams("n", "n must be 1"), http.StatusBadRequest, "invalid_params"},
		{"invalid prompt", providers.ErrInvalidPrompt("prompt is required"), http.StatusBadRequest, "invalid_prompt"},
		{"invalid dimensions", providers.ErrInvalidDimensions("too big"), http.StatusBadRequest, "invalid_dimensions"},
		{"invalid provider", providers.ErrInvalidProvider("nope"), http.StatusBadRequest, "invalid_provider"},
		{"auth required", providers.ErrAuthRequired("Gitee"), http.StatusUnauthorized, "auth_required"},
		{"auth invalid", providers.ErrAuthInvalid("Gitee", "bad key"), http.StatusUnauthorized, "auth_invalid"},
		{"auth expired", providers.ErrAuthExpired("Gitee"), http.StatusUnauthorized, "auth_expired"},
		{"rate limited", providers.ErrRateLimited("Gitee"), http.StatusTooManyRequests, "rate_limited"},
		{"quota", providers.ErrQuotaExceeded("Gitee"), http.StatusTooManyRequests, "quota_exceeded"},
		{"provider error", providers.ErrProvider("Gitee", "boom"), http.StatusBadGateway, "provider_error"},
		{"timeout", providers.ErrTimeout("ModelScope", "task timed out"), http.StatusGatewayTimeout, "timeout"},
		{"no tokens", fmt.Errorf("gitee: %w", tokens.ErrNoTokens), http.StatusUnauthorized, "auth_required"},
		{"all exhausted", fmt.Errorf("gitee: %w", tokens.ErrAllTokensExhausted), http.StatusTooManyRequests, "quota_exceeded"},
		{"max retries", fmt.Errorf("gitee: %w", tokens.ErrMaxRetries), http.StatusTooManyRequests, "quota_exceeded"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"unknown", errors.New("kaboom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestHandleServiceError_Details(t *testing.T) {
	err := &providers.Error{
		Kind:       providers.KindRateLimited,
		Provider:   "Gitee",
		Message:    "rate limited",
		Upstream:   "slow down",
		RetryAfter: 30 * time.Second,
	}

	w := httptest.NewRecorder()
	HandleServiceError(w, err, zap.NewNop())

	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	resp := decodeError(t, w)
	assert.Equal(t, "Gitee: rate limited", resp.Message)
	assert.Equal(t, "Gitee", resp.Details["provider"])
	assert.Equal(t, "slow down", resp.Details["upstream"])
}

func TestHandleServiceError_HidesInternalMessage(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, errors.New("secret stack detail"), zap.NewNop())

	resp := decodeError(t, w)
	assert.Equal(t, "An unexpected error occurred", resp.Message)
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, 0, w.Body.Len())
}
