package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/qcom/callflow/internal/service"
	"github.com/sirupsen/logrus"
)

type VerificationHandlers struct {
	ledger *service.VerificationService
	expiry time.Duration
	debug  bool
	logger *logrus.Logger
}

// NewVerificationHandlers serves the ledger over HTTP. With debug set the
// issued code is echoed in the send-code response.
func NewVerificationHandlers(ledger *service.VerificationService, expiry time.Duration, debug bool, logger *logrus.Logger) *VerificationHandlers {
	return &VerificationHandlers{
		ledger: ledger,
		expiry: expiry,
		debug:  debug,
		logger: logger,
	}
}

// Register mounts the routes on router. admin wraps the operator routes.
func (h *VerificationHandlers) Register(router *mux.Router, admin mux.MiddlewareFunc) {
	r := router.PathPrefix("/api/verification").Subrouter()
	r.HandleFunc("/send-code", h.SendCode).Methods("POST", "OPTIONS")
	r.HandleFunc("/verify-code", h.VerifyCode).Methods("POST", "OPTIONS")
	r.HandleFunc("/check/{phone}", h.Check).Methods("GET", "OPTIONS")

	ops := r.NewRoute().Subrouter()
	ops.Use(admin)
	ops.HandleFunc("/verified-numbers", h.ListVerified).Methods("GET", "OPTIONS")
	ops.HandleFunc("/reset/{phone}", h.Reset).Methods("DELETE", "OPTIONS")
}

type SendCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type SendCodeResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
	DebugCode        string `json:"debug_code,omitempty"`
}

type VerifyCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

type VerifyCodeResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	PhoneNumber string    `json:"phone_number"`
	VerifiedAt  time.Time `json:"verified_at"`
}

type CheckResponse struct {
	Success     bool   `json:"success"`
	PhoneNumber string `json:"phone_number"`
	IsVerified  bool   `json:"is_verified"`
	Message     string `json:"message"`
}

type VerifiedNumbersResponse struct {
	Success         bool     `json:"success"`
	VerifiedNumbers []string `json:"verified_numbers"`
	Count           int      `json:"count"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *VerificationHandlers) SendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	code, _, err := h.ledger.IssueCode(r.Context(), req.PhoneNumber)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	resp := SendCodeResponse{
		Success:          true,
		Message:          fmt.Sprintf("Verification code sent to %s", strings.TrimSpace(req.PhoneNumber)),
		ExpiresInMinutes: int(h.expiry.Minutes()),
	}
	if h.debug {
		resp.DebugCode = code
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *VerificationHandlers) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		respondWithError(w, http.StatusBadRequest, "INVALID_CODE", "Verification code is required")
		return
	}

	verifiedAt, err := h.ledger.VerifyCode(r.Context(), req.PhoneNumber, code)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, VerifyCodeResponse{
		Success:     true,
		Message:     "Phone number verified successfully",
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		VerifiedAt:  verifiedAt,
	})
}

func (h *VerificationHandlers) Check(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]
	verified, err := h.ledger.IsVerified(r.Context(), phone)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	message := "Phone number is not verified"
	if verified {
		message = "Phone number is verified"
	}
	respondWithJSON(w, http.StatusOK, CheckResponse{
		Success:     true,
		PhoneNumber: strings.TrimSpace(phone),
		IsVerified:  verified,
		Message:     message,
	})
}

func (h *VerificationHandlers) ListVerified(w http.ResponseWriter, r *http.Request) {
	numbers, err := h.ledger.ListVerified(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	if numbers == nil {
		numbers = []string{}
	}
	respondWithJSON(w, http.StatusOK, VerifiedNumbersResponse{
		Success:         true,
		VerifiedNumbers: numbers,
		Count:           len(numbers),
	})
}

func (h *VerificationHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]
	if err := h.ledger.Reset(r.Context(), phone); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Verification status reset for %s", strings.TrimSpace(phone)),
	})
}
