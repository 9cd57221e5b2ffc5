package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/qcom/callflow/internal/middleware"
	"github.com/qcom/callflow/internal/service"
	"github.com/sirupsen/logrus"
)

type AdminHandlers struct {
	tokens *service.TokenService
	logger *logrus.Logger
}

func NewAdminHandlers(tokens *service.TokenService, logger *logrus.Logger) *AdminHandlers {
	return &AdminHandlers{
		tokens: tokens,
		logger: logger,
	}
}

func (h *AdminHandlers) Register(router *mux.Router, admin mux.MiddlewareFunc) {
	r := router.PathPrefix("/api/admin").Subrouter()
	r.Use(admin)
	r.HandleFunc("/me", h.Me).Methods("GET")
	r.HandleFunc("/token", h.RevokeToken).Methods("DELETE")
}

func (h *AdminHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"subject":    claims.Subject,
		"expires_at": claims.ExpiresAt.Time,
	})
}

// RevokeToken revokes the token the request was made with.
func (h *AdminHandlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
		return
	}
	if err := h.tokens.Revoke(r.Context(), claims); err != nil {
		h.logger.WithError(err).Error("Failed to revoke admin token")
		respondWithError(w, http.StatusInternalServerError, "REVOKE_FAILED", "Failed to revoke token")
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: "Token revoked",
	})
}
