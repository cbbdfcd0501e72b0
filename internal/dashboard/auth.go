package dashboard

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strings"

	"github.com/rampantspark/gridwatch/internal/middleware"
)

// Authentication constants
const (
	cookieName   = "gridwatch_token"
	cookieMaxAge = 86400 // 24 hours in seconds
)

// Authenticator guards the dashboard with an optional shared token.
//
// With an empty token every request is allowed, which matches how the
// dashboard has always been deployed behind a secret home prefix.
type Authenticator struct {
	token    string
	useHTTPS bool
}

// NewAuthenticator creates an authenticator for token.
//
// Parameters:
//   - token: shared dashboard token, empty disables authentication
//   - useHTTPS: whether the cookie should carry the Secure flag
func NewAuthenticator(token string, useHTTPS bool) *Authenticator {
	return &Authenticator{
		token:    token,
		useHTTPS: useHTTPS,
	}
}

// Enabled reports whether a token is required.
func (a *Authenticator) Enabled() bool {
	return a.token != ""
}

// ValidateToken checks token using constant-time comparison.
func (a *Authenticator) ValidateToken(token string) bool {
	if !a.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) == 1
}

// TokenFromRequest extracts the token from the cookie, falling back to the
// "token" query parameter.
func (a *Authenticator) TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// IsAuthenticated reports whether r carries a valid token.
func (a *Authenticator) IsAuthenticated(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}
	if cookie, err := r.Cookie(cookieName); err == nil && a.ValidateToken(cookie.Value) {
		return true
	}
	return a.ValidateToken(r.URL.Query().Get("token"))
}

// SetCookie sets the authentication cookie.
func (a *Authenticator) SetCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    a.token,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   a.useHTTPS,
	})
}

// Middleware rejects unauthenticated requests with 403.
//
// A valid token passed as a query parameter is promoted to a cookie so the
// page's own API calls and websocket authenticate without it.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.IsAuthenticated(r) {
			if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
				middleware.WriteJSONError(w, http.StatusForbidden, "Invalid or missing authentication token")
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, "<!DOCTYPE html>\n<html>\n<head><title>Access Denied</title></head>\n<body>\n<h1>403 Forbidden</h1>\n<p>Invalid or missing authentication token.</p>\n</body>\n</html>")
			return
		}

		if cookie, err := r.Cookie(cookieName); err != nil || !a.ValidateToken(cookie.Value) {
			a.SetCookie(w)
		}
		next.ServeHTTP(w, r)
	})
}
