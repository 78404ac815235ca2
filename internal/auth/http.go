// ABOUTME: HTTP middleware for JWT authentication on agent endpoints
// ABOUTME: Accepts Authorization headers or a token query parameter for browser WebSockets

package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// requestToken resolves the token for a request. The browser WebSocket
// API cannot set request headers, so a "token" query parameter is
// accepted as a fallback.
func requestToken(r *http.Request) (string, string) {
	if r.Header.Get("Authorization") != "" {
		return extractBearerToken(r.Header.Get("Authorization"))
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, ""
	}
	return "", "missing authorization header"
}

// Middleware creates an HTTP middleware that extracts and validates JWT
// tokens before letting a request through. The verified subject is only
// used for logging; the agent core has no principal model.
func Middleware(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := requestToken(r)
			if errMsg != "" {
				http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			logger.Debug("authenticated request", "subject", subject, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}
