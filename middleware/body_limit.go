package middleware

import (
	"fmt"
	"net/http"

	"github.com/upb/genai-gateway/utils"
)

// BodyLimit caps request bodies at maxBytes. Requests that declare a larger
// Content-Length are rejected up front; the rest are read through
// http.MaxBytesReader so handlers see an error past the limit.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large",
					fmt.Sprintf("request body exceeds %d bytes", maxBytes), nil)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
