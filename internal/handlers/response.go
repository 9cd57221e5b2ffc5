package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/qcom/callflow/internal/service"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// respondWithServiceError maps a service error onto the HTTP error shape.
func respondWithServiceError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	var mismatch *service.CodeMismatchError
	switch {
	case errors.Is(err, service.ErrInvalidPhoneFormat):
		respondWithError(w, http.StatusBadRequest, "INVALID_PHONE", "Invalid phone number format. Use E.164, e.g. +911234567890")
	case errors.As(err, &mismatch):
		respondWithError(w, http.StatusBadRequest, "INVALID_CODE", mismatch.Error())
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "CODE_NOT_FOUND", "No verification code found for this number")
	case errors.Is(err, service.ErrExpired):
		respondWithError(w, http.StatusBadRequest, "CODE_EXPIRED", "Verification code has expired")
	case errors.Is(err, service.ErrAttemptsExhausted):
		respondWithError(w, http.StatusBadRequest, "TOO_MANY_ATTEMPTS", "Too many failed attempts. Request a new code")
	case errors.Is(err, service.ErrInvalidOutcome):
		respondWithError(w, http.StatusBadRequest, "INVALID_OUTCOME", "Outcome must be one of completed, no_answer, busy, failed")
	case errors.Is(err, service.ErrSessionNotFound):
		respondWithError(w, http.StatusNotFound, "CALL_NOT_FOUND", "Call session not found")
	case errors.Is(err, service.ErrAudioNotAvailable):
		respondWithError(w, http.StatusNotFound, "AUDIO_NOT_FOUND", "Audio not found")
	case errors.Is(err, service.ErrDeliveryFailed):
		logger.WithError(err).Error("Verification code delivery failed")
		respondWithError(w, http.StatusBadGateway, "DELIVERY_FAILED", "Failed to send verification code")
	case errors.Is(err, service.ErrCallInitiationFailed):
		logger.WithError(err).Error("Call initiation failed")
		respondWithError(w, http.StatusBadGateway, "CALL_INITIATION_FAILED", "Failed to initiate call")
	default:
		logger.WithError(err).Error("Request failed")
		respondWithError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
