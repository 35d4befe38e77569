package providers

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{"429 rate limit wording", 429, `{"error":{"message":"Rate limit exceeded"}}`, KindRateLimited},
		{"429 quota wording wins", 429, `{"error":{"message":"Quota exceeded"}}`, KindQuotaExceeded},
		{"401 any message", 401, `{"message":"whatever"}`, KindAuthInvalid},
		{"401 empty body", 401, ``, KindAuthInvalid},
		{"invalid api key on 400", 400, `{"message":"Invalid API key provided"}`, KindAuthInvalid},
		{"invalid token text", 403, `{"error":"invalid token"}`, KindAuthInvalid},
		{"too many requests on 400", 400, `{"message":"Too many requests"}`, KindRateLimited},
		{"insufficient balance", 402, `{"error":{"message":"Insufficient balance"}}`, KindQuotaExceeded},
		{"daily limit exceeded", 400, `{"message":"Daily limit exceeded"}`, KindQuotaExceeded},
		{"expired", 400, `{"errors":{"message":"token expired"}}`, KindAuthExpired},
		{"opaque 500", 500, `{"error":{"message":"internal failure"}}`, KindProviderError},
		{"plain text body", 502, `Bad Gateway`, KindProviderError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("Test", tt.status, []byte(tt.body))
			assert.Equal(t, tt.want, err.Kind)
			assert.Equal(t, tt.status, err.StatusCode)
			assert.Equal(t, "Test", err.Provider)
		})
	}
}

func TestClassify_OnlyRateLimitAndQuotaRotate(t *testing.T) {
	assert.True(t, Classify("p", 429, nil).Quota())
	assert.True(t, Classify("p", 400, []byte(`{"message":"quota"}`)).Quota())
	assert.False(t, Classify("p", 401, nil).Quota())
	assert.False(t, Classify("p", 500, []byte(`boom`)).Quota())
}

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"errors.message wins", `{"errors":{"message":"a"},"error":"b","message":"c"}`, "a"},
		{"error object", `{"error":{"message":"b","code":"x"}}`, "b"},
		{"error string", `{"error":"b","message":"c"}`, "b"},
		{"message", `{"message":"c"}`, "c"},
		{"detail", `{"detail":"d"}`, "d"},
		{"raw", `not json`, "not json"},
		{"empty", ``, "HTTP 418"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMessage(418, []byte(tt.body)))
		})
	}
}

func TestClassifyResponse_RetryAfter(t *testing.T) {
	resp := &http.Response{StatusCode: 429, Header: http.Header{}}
	resp.Header.Set("Retry-After", "30")

	err := ClassifyResponse("p", resp, []byte(`{"message":"slow down"}`))
	assert.Equal(t, KindRateLimited, err.Kind)
	assert.Equal(t, 30*time.Second, err.RetryAfter)
	assert.Equal(t, 30, err.Details()["retry_after_seconds"])
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ErrTransport("Gitee AI", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrKindProviderError)
	assert.NotErrorIs(t, err, ErrKindRateLimited)
	assert.Equal(t, KindProviderError, KindOf(err))
	assert.Contains(t, err.Error(), "Gitee AI")

	wrapped := errors.Join(errors.New("outer"), ErrQuotaExceeded("x"))
	assert.True(t, IsQuotaError(wrapped))
	assert.False(t, IsQuotaError(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(ErrInvalidParams("n", "n must be 1")))
	assert.True(t, IsInputError(ErrInvalidPrompt("empty")))
	assert.True(t, IsInputError(ErrInvalidDimensions("too big")))
	assert.False(t, IsInputError(ErrRateLimited("x")))
}

func TestExtractMessage_TruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("x", 499) + "错误"

	msg := ExtractMessage(http.StatusBadGateway, []byte(body))
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, strings.Repeat("x", 499), msg)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab", truncate("ab猫", 4))
	assert.Equal(t, "ab猫", truncate("ab猫d", 5))
	assert.Equal(t, "", truncate("猫", 2))
}
