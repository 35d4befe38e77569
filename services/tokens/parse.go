package tokens

import (
	"regexp"
	"strings"
)

const minTokenLength = 8

var tokenPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-:.]+$`)

// ValidFormat reports whether a credential looks like a usable token
func ValidFormat(token string) bool {
	return len(token) >= minTokenLength && tokenPattern.MatchString(token)
}

// Parse splits a comma separated token list, trimming entries and
// dropping those with an invalid format
func Parse(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" && ValidFormat(p) {
			out = append(out, p)
		}
	}
	return out
}

// Mask renders a token safe for logs
func Mask(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
