package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultHTTPTimeout bounds a single upstream exchange
const DefaultHTTPTimeout = 120 * time.Second

// maxResponseBytes caps how much of an upstream body is read
const maxResponseBytes = 10 << 20

// Doer is the HTTP transport consumed by capabilities
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the default transport for capabilities
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = DefaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Client performs one upstream exchange and classifies non-2xx responses
type Client struct {
	// Provider is the display name used in classified errors
	Provider string
	HTTP     Doer

	// Classifier overrides Classify for upstreams with extra status rules
	Classifier func(provider string, status int, body []byte) *Error
}

// Response is a fully read upstream response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v
func (r *Response) Decode(provider string, v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{
			Kind:       KindProviderError,
			Provider:   provider,
			Message:    "invalid response payload",
			Upstream:   truncate(string(r.Body), 200),
			StatusCode: r.StatusCode,
			Cause:      err,
		}
	}
	return nil
}

// PostJSON marshals body and POSTs it to url
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindProviderError, Provider: c.Provider, Message: "failed to marshal request", Cause: err}
	}
	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	h["Content-Type"] = "application/json"
	return c.Do(ctx, http.MethodPost, url, h, bytes.NewReader(payload))
}

// Get issues a GET to url
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, headers, nil)
}

// Do sends the request and reads the whole response. Non-2xx statuses are
// returned as classified *Error values.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (*Response, error) {
	resp, err := c.Stream(ctx, method, url, headers, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindProviderError, Provider: c.Provider, Message: "failed to read response", StatusCode: resp.StatusCode, Cause: err}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Stream sends the request and returns the open response for 2xx statuses.
// The caller must close the body.
func (c *Client) Stream(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &Error{Kind: KindProviderError, Provider: c.Provider, Message: "failed to create request", Cause: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	doer := c.HTTP
	if doer == nil {
		doer = http.DefaultClient
	}

	resp, err := doer.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Kind: KindTimeout, Provider: c.Provider, Message: "request cancelled", Cause: ctxErr}
		}
		return nil, ErrTransport(c.Provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if c.Classifier == nil {
			return nil, ClassifyResponse(c.Provider, resp, data)
		}
		classified := c.Classifier(c.Provider, resp.StatusCode, data)
		if hint := parseRetryAfter(resp.Header.Get("Retry-After")); hint > 0 {
			classified.RetryAfter = hint
		}
		return nil, classified
	}

	return resp, nil
}

// JoinURL resolves path against base. Absolute paths (with a scheme) are returned as-is.
func JoinURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base = strings.TrimRight(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// ResolveEndpoint picks the configured endpoint or falls back to def
func ResolveEndpoint(base, configured, def string) string {
	if configured != "" {
		return JoinURL(base, configured)
	}
	return JoinURL(base, def)
}

// FormatSize renders dimensions as "WxH"
func FormatSize(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
