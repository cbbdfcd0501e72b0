package middleware

import (
	"net/http"
	"strconv"

	"github.com/rampantspark/gridwatch/internal/ratelimit"
)

// RateLimit creates a middleware that enforces rate limiting per client address.
//
// Parameters:
//   - limiter: the rate limiter instance
//   - clientAddress: function to extract the client address from a request
//
// Returns a middleware function that wraps an http.Handler.
func RateLimit(limiter *ratelimit.Limiter, clientAddress func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientAddress(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfterSeconds()))
				WriteJSONError(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
