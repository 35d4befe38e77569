package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	authInvalidPattern = regexp.MustCompile(`(?i)unauthorized|invalid api key|invalid token`)
	rateLimitPattern   = regexp.MustCompile(`(?i)rate limit|too many`)
	quotaWordPattern   = regexp.MustCompile(`(?i)quota`)
	exhaustedPattern   = regexp.MustCompile(`(?i)exceeded|insufficient|quota`)
	expiredPattern     = regexp.MustCompile(`(?i)expired`)
)

// Classify maps an upstream HTTP status and payload to an *Error.
// Missing tokens are never produced here; capabilities reject them before I/O.
func Classify(provider string, status int, body []byte) *Error {
	msg := ExtractMessage(status, body)
	err := classifyMessage(provider, status, msg)
	err.StatusCode = status
	return err
}

// ClassifyResponse is Classify plus the Retry-After hint from the response headers
func ClassifyResponse(provider string, resp *http.Response, body []byte) *Error {
	err := Classify(provider, resp.StatusCode, body)
	if hint := parseRetryAfter(resp.Header.Get("Retry-After")); hint > 0 {
		err.RetryAfter = hint
	}
	return err
}

func classifyMessage(provider string, status int, msg string) *Error {
	switch {
	case status == http.StatusUnauthorized || authInvalidPattern.MatchString(msg):
		return ErrAuthInvalid(provider, msg)
	case status == http.StatusTooManyRequests || rateLimitPattern.MatchString(msg):
		if quotaWordPattern.MatchString(msg) {
			e := ErrQuotaExceeded(provider)
			e.Upstream = msg
			return e
		}
		e := ErrRateLimited(provider)
		e.Upstream = msg
		return e
	case exhaustedPattern.MatchString(msg):
		e := ErrQuotaExceeded(provider)
		e.Upstream = msg
		return e
	case expiredPattern.MatchString(msg):
		e := ErrAuthExpired(provider)
		e.Upstream = msg
		return e
	default:
		return ErrProvider(provider, msg)
	}
}

// ExtractMessage pulls the most specific error text out of the known payload
// shapes: {errors:{message}}, {error:{message}}, {error:"..."}, {message}.
// Falls back to the raw body, then to "HTTP <status>".
func ExtractMessage(status int, body []byte) string {
	var payload struct {
		Errors  json.RawMessage `json:"errors"`
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if m := nestedMessage(payload.Errors); m != "" {
			return m
		}
		if m := nestedMessage(payload.Error); m != "" {
			return m
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return truncate(text, 500)
	}
	return fmt.Sprintf("HTTP %d", status)
}

// nestedMessage reads either {"message": "..."} or a bare string
func nestedMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
