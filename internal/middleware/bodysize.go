package middleware

import (
	"net/http"
)

// LimitRequestBody creates a middleware that enforces request body size limits.
//
// Requests announcing a larger Content-Length are rejected with 413 before the
// handler runs; everything else gets its body wrapped in http.MaxBytesReader.
//
// Parameters:
//   - maxBytes: maximum allowed request body size in bytes
//
// Returns a middleware function that wraps an http.Handler.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				WriteJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
