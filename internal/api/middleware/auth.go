package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// publicEndpoints defines public endpoints that bypass authentication and
// rate limiting. These endpoints are accessible without credentials
// (e.g., K8s health probes, monitoring tools).
//
// Security note: Only health check endpoints should be in this map.
// Never add business logic endpoints to this bypass list.
var publicEndpoints = map[string]bool{} //nolint: gochecknoglobals

// RegisterPublicEndpoint registers an endpoint that bypasses authentication
// and rate limiting. This should only be called during route setup for health
// check endpoints.
//
// Example:
//
//	middleware.RegisterPublicEndpoint("/ping")
//	middleware.RegisterPublicEndpoint("/health")
func RegisterPublicEndpoint(endpoint string) {
	publicEndpoints[endpoint] = true
}

// extractToken extracts the ingestion secret from request headers.
// It checks the Authorization: Bearer header first (primary), then falls back
// to X-Api-Key.
//
// Security considerations:
// - Rejects tokens containing newlines (header injection prevention)
// - Trims whitespace
// - Case-sensitive "Bearer " prefix check.
func extractToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return validateToken(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if token := r.Header.Get("X-Api-Key"); token != "" {
		return validateToken(token)
	}

	return "", false
}

// validateToken validates and cleans a token value.
func validateToken(token string) (string, bool) {
	// Security: reject tokens containing newlines (header injection prevention)
	if strings.ContainsAny(token, "\r\n") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

// performDummyBcryptComparison keeps the rejection path constant time so a
// missing token cannot be distinguished from a wrong one by latency.
func performDummyBcryptComparison() {
	_ = bcrypt.CompareHashAndPassword([]byte("dummy"), []byte("dummy"))
}

// SharedSecretAuth creates an authentication middleware that validates the
// shared ingestion secret on every request.
//
// The middleware:
// - Extracts the token from Authorization: Bearer (primary) or X-Api-Key headers
// - Compares it against the configured secret in constant time
// - Returns 401 with the standard error envelope on failure
//
// Callers must only install it when a secret is configured; the chain option
// handles the unconfigured no-op case.
func SharedSecretAuth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health probes bypass authentication entirely
			if publicEndpoints[r.URL.Path] {
				next.ServeHTTP(w, r)

				return
			}

			authStart := time.Now()

			token, found := extractToken(r)
			if !found {
				performDummyBcryptComparison()
				writeAuthFailure(w, r, logger, "missing credentials")

				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				performDummyBcryptComparison()
				writeAuthFailure(w, r, logger, "invalid credentials")

				return
			}

			logger.Debug("request authenticated",
				slog.Duration("auth_latency", time.Since(authStart)),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
				slog.String("endpoint", r.URL.Path),
			)

			next.ServeHTTP(w, r)
		})
	}
}

// writeAuthFailure logs and writes a 401 response. The response message is
// generic on purpose; the specific reason only goes to the log.
func writeAuthFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	correlationID := GetCorrelationID(r.Context())

	logger.Warn("Authentication failed",
		slog.String("reason", reason),
		slog.String("correlation_id", correlationID),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
	)

	if err := writeErrorEnvelope(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required"); err != nil {
		logger.Error("Failed to encode authentication error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.Any("encode_error", err),
		)
	}
}
