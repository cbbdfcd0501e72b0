package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// WriteJSONError writes {"error": message} with the given status. API errors
// are readable cross-origin so external status widgets can show them.
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RecoverPanic creates a middleware that recovers from panics in HTTP handlers.
//
// When a panic occurs, it logs the error and returns a JSON 500 response to the
// client instead of crashing the entire server.
//
// Parameters:
//   - logger: structured logger instance for logging panic details
//
// Returns a middleware function that wraps an http.Handler.
func RecoverPanic(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						"error", err,
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
						"request_id", RequestIDFromContext(r.Context()),
					)
					WriteJSONError(w, http.StatusInternalServerError, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
