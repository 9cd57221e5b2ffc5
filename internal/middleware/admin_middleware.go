package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/qcom/callflow/internal/service"
	"github.com/sirupsen/logrus"
)

type contextKey string

const claimsKey contextKey = "admin_claims"

// ClaimsFromContext returns the admin claims stored by RequireAdmin.
func ClaimsFromContext(ctx context.Context) (*service.AdminClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*service.AdminClaims)
	return claims, ok
}

type AdminMiddleware struct {
	tokens *service.TokenService
	logger *logrus.Logger
}

// NewAdminMiddleware guards operator routes. A nil token service disables the
// guard and every request passes through.
func NewAdminMiddleware(tokens *service.TokenService, logger *logrus.Logger) *AdminMiddleware {
	return &AdminMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

func (m *AdminMiddleware) Enabled() bool {
	return m.tokens != nil
}

func (m *AdminMiddleware) RequireAdmin(next http.Handler) http.Handler {
	if m.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondUnauthorized(w, "Missing authorization header")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondUnauthorized(w, "Invalid authorization header format")
			return
		}

		claims, err := m.tokens.Verify(r.Context(), parts[1])
		if err != nil {
			m.logger.WithError(err).Debug("Admin token verification failed")
			m.respondUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AdminMiddleware) respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}
