package providers

const (
	defaultBearerHeader = "Authorization"
	defaultAPIKeyHeader = "X-API-Key"
	defaultBearerPrefix = "Bearer "
)

// BuildAuthHeaders renders the static headers of a channel plus the auth
// header for token. An empty token adds no auth header for any auth type.
func BuildAuthHeaders(auth AuthConfig, static map[string]string, token string) map[string]string {
	headers := make(map[string]string, len(static)+1)
	for k, v := range static {
		headers[k] = v
	}

	if token == "" {
		return headers
	}

	switch auth.Type {
	case AuthNone:
	case AuthAPIKey:
		name := auth.HeaderName
		if name == "" {
			name = defaultAPIKeyHeader
		}
		headers[name] = token
	default:
		name := auth.HeaderName
		if name == "" {
			name = defaultBearerHeader
		}
		prefix := defaultBearerPrefix
		if auth.Prefix != nil {
			prefix = *auth.Prefix
		}
		headers[name] = prefix + token
	}

	return headers
}

// StringPtr returns a pointer to s, for optional config fields such as AuthConfig.Prefix
func StringPtr(s string) *string {
	return &s
}
