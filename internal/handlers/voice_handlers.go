package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/qcom/callflow/internal/models"
	"github.com/qcom/callflow/internal/service"
	"github.com/qcom/callflow/internal/speech"
	"github.com/sirupsen/logrus"
)

const maxUploadBytes = 10 << 20

// SpeechGateway is the part of the speech client exposed over HTTP.
type SpeechGateway interface {
	Synthesize(ctx context.Context, text, language, speaker string) speech.Synthesis
	Transcribe(ctx context.Context, audio []byte, language string) (*speech.Transcript, error)
	Voices(ctx context.Context, language string) []speech.Voice
}

type ConsentRecorder interface {
	Record(ctx context.Context, phoneNumber, consentType string, granted bool) error
}

type VoiceHandlers struct {
	calls   *service.CallService
	speech  SpeechGateway
	consent ConsentRecorder
	logger  *logrus.Logger
}

func NewVoiceHandlers(calls *service.CallService, gateway SpeechGateway, consent ConsentRecorder, logger *logrus.Logger) *VoiceHandlers {
	return &VoiceHandlers{
		calls:   calls,
		speech:  gateway,
		consent: consent,
		logger:  logger,
	}
}

// Register mounts the routes on router. admin wraps the operator routes.
func (h *VoiceHandlers) Register(router *mux.Router, admin mux.MiddlewareFunc) {
	r := router.PathPrefix("/api/voice").Subrouter()
	r.HandleFunc("/outbound", h.Outbound).Methods("POST", "OPTIONS")
	r.HandleFunc("/call/{id}", h.GetCall).Methods("GET", "OPTIONS")
	r.HandleFunc("/call/{id}/complete", h.Complete).Methods("POST", "OPTIONS")
	r.HandleFunc("/script/{id}", h.Script).Methods("GET", "POST")
	r.HandleFunc("/status/{id}", h.Status).Methods("POST")
	r.HandleFunc("/audio/{id}.wav", h.Audio).Methods("GET")
	r.HandleFunc("/tts", h.TextToSpeech).Methods("POST", "OPTIONS")
	r.HandleFunc("/stt", h.SpeechToText).Methods("POST", "OPTIONS")
	r.HandleFunc("/voices", h.Voices).Methods("GET", "OPTIONS")

	ops := r.NewRoute().Subrouter()
	ops.Use(admin)
	ops.HandleFunc("/consent/{phone}", h.RecordConsent).Methods("POST", "OPTIONS")
}

type OutboundCallResponse struct {
	Success        bool              `json:"success"`
	CallID         string            `json:"call_id"`
	ProviderCallID string            `json:"provider_call_id"`
	Status         models.CallStatus `json:"status"`
	Greeting       string            `json:"greeting"`
	PhoneNumber    string            `json:"phone_number"`
	RealCall       bool              `json:"real_call"`
	AudioDegraded  bool              `json:"audio_degraded"`
}

// CallInitiationErrorResponse names the session that was kept when the
// provider refused the call.
type CallInitiationErrorResponse struct {
	ErrorResponse
	CallID string `json:"call_id"`
}

// CallSnapshot reports a session with its audio summarized by size.
type CallSnapshot struct {
	CallID           string            `json:"call_id"`
	PhoneNumber      string            `json:"phone_number"`
	Purpose          models.Purpose    `json:"purpose"`
	Sector           string            `json:"sector"`
	Language         string            `json:"language"`
	CustomerData     map[string]any    `json:"customer_data,omitempty"`
	Status           models.CallStatus `json:"status"`
	Greeting         string            `json:"greeting"`
	AudioSize        int               `json:"audio_size"`
	AudioDegraded    bool              `json:"audio_degraded"`
	ProviderCallID   string            `json:"provider_call_id,omitempty"`
	Outcome          models.Outcome    `json:"outcome,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	LastStatusUpdate *time.Time        `json:"last_status_update,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

func snapshot(s *models.CallSession) CallSnapshot {
	return CallSnapshot{
		CallID:           s.ID,
		PhoneNumber:      s.PhoneNumber,
		Purpose:          s.Purpose,
		Sector:           s.Sector,
		Language:         s.Language,
		CustomerData:     s.CustomerData,
		Status:           s.Status,
		Greeting:         s.Greeting,
		AudioSize:        len(s.Audio),
		AudioDegraded:    s.AudioDegraded,
		ProviderCallID:   s.ProviderCallID,
		Outcome:          s.Outcome,
		CreatedAt:        s.CreatedAt,
		LastStatusUpdate: s.LastStatusUpdate,
		CompletedAt:      s.CompletedAt,
	}
}

type CompleteCallRequest struct {
	Outcome models.Outcome `json:"outcome"`
}

type TTSRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Speaker  string `json:"speaker"`
}

type TTSResponse struct {
	Success  bool   `json:"success"`
	Audio    string `json:"audio"`
	Language string `json:"language"`
	Speaker  string `json:"speaker"`
	Degraded bool   `json:"degraded"`
}

type STTResponse struct {
	Success    bool    `json:"success"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

type VoicesResponse struct {
	Success bool           `json:"success"`
	Voices  []speech.Voice `json:"voices"`
}

type ConsentRequest struct {
	Granted bool `json:"granted"`
}

type ConsentResponse struct {
	Success     bool   `json:"success"`
	PhoneNumber string `json:"phone_number"`
	ConsentType string `json:"consent_type"`
	Granted     bool   `json:"granted"`
}

type StatusCallbackResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (h *VoiceHandlers) Outbound(w http.ResponseWriter, r *http.Request) {
	var req service.OutboundCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	session, err := h.calls.CreateSession(r.Context(), req)
	if err != nil && session != nil && errors.Is(err, service.ErrCallInitiationFailed) {
		h.logger.WithError(err).WithField("call_id", session.ID).Error("Call initiation failed, session kept")
		respondWithJSON(w, http.StatusBadGateway, CallInitiationErrorResponse{
			ErrorResponse: ErrorResponse{Error: ErrorDetail{
				Code:    "CALL_INITIATION_FAILED",
				Message: "Failed to initiate call",
			}},
			CallID: session.ID,
		})
		return
	}
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	respondWithJSON(w, http.StatusOK, OutboundCallResponse{
		Success:        true,
		CallID:         session.ID,
		ProviderCallID: session.ProviderCallID,
		Status:         session.Status,
		Greeting:       session.Greeting,
		PhoneNumber:    session.PhoneNumber,
		RealCall:       true,
		AudioDegraded:  session.AudioDegraded,
	})
}

func (h *VoiceHandlers) GetCall(w http.ResponseWriter, r *http.Request) {
	session, err := h.calls.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot(session))
}

func (h *VoiceHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	outcome := models.Outcome(r.URL.Query().Get("outcome"))
	if outcome == "" && r.ContentLength != 0 {
		var req CompleteCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
			return
		}
		outcome = req.Outcome
	}
	if outcome == "" {
		outcome = models.OutcomeCompleted
	}

	id := mux.Vars(r)["id"]
	if _, err := h.calls.CompleteSession(r.Context(), id, outcome); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Call %s marked as %s", id, outcome),
	})
}

// Script serves the TwiML Twilio executes once the call connects.
func (h *VoiceHandlers) Script(w http.ResponseWriter, r *http.Request) {
	doc := h.calls.Script(r.Context(), mux.Vars(r)["id"])
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, doc)
}

// Status ingests Twilio progress callbacks. Twilio retries on non-2xx, so
// failures are reported in the body with a 200.
func (h *VoiceHandlers) Status(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithJSON(w, http.StatusOK, StatusCallbackResponse{Error: "invalid form body"})
		return
	}

	err := h.calls.IngestStatus(r.Context(), service.StatusUpdate{
		CallID:         mux.Vars(r)["id"],
		ProviderCallID: r.PostForm.Get("CallSid"),
		Status:         r.PostForm.Get("CallStatus"),
		From:           r.PostForm.Get("From"),
		To:             r.PostForm.Get("To"),
	})
	if err != nil {
		respondWithJSON(w, http.StatusOK, StatusCallbackResponse{Error: err.Error()})
		return
	}
	respondWithJSON(w, http.StatusOK, StatusCallbackResponse{Success: true})
}

func (h *VoiceHandlers) Audio(w http.ResponseWriter, r *http.Request) {
	audio, err := h.calls.GetAudio(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

func (h *VoiceHandlers) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondWithError(w, http.StatusBadRequest, "INVALID_TEXT", "Text is required")
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}
	if req.Speaker == "" {
		req.Speaker = speech.Profile(req.Language).Speaker
	}

	result := h.speech.Synthesize(r.Context(), req.Text, req.Language, req.Speaker)
	if result.Degraded {
		h.logger.WithError(result.Cause).Warn("Text-to-speech degraded")
	}
	respondWithJSON(w, http.StatusOK, TTSResponse{
		Success:  true,
		Audio:    base64.StdEncoding.EncodeToString(result.Audio),
		Language: req.Language,
		Speaker:  req.Speaker,
		Degraded: result.Degraded,
	})
}

func (h *VoiceHandlers) SpeechToText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected multipart form with an audio file")
		return
	}
	file, _, err := r.FormFile("audio")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "MISSING_AUDIO", "Audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_AUDIO", "Failed to read audio file")
		return
	}

	language := r.FormValue("language")
	if language == "" {
		language = "en"
	}

	transcript, err := h.speech.Transcribe(r.Context(), audio, language)
	if err != nil {
		h.logger.WithError(err).Error("Speech-to-text failed")
		respondWithError(w, http.StatusBadGateway, "TRANSCRIPTION_FAILED", "Speech-to-text failed")
		return
	}
	respondWithJSON(w, http.StatusOK, STTResponse{
		Success:    true,
		Transcript: transcript.Text,
		Confidence: transcript.Confidence,
		Language:   transcript.Language,
	})
}

func (h *VoiceHandlers) Voices(w http.ResponseWriter, r *http.Request) {
	voices := h.speech.Voices(r.Context(), r.URL.Query().Get("language"))
	if voices == nil {
		voices = []speech.Voice{}
	}
	respondWithJSON(w, http.StatusOK, VoicesResponse{Success: true, Voices: voices})
}

func (h *VoiceHandlers) RecordConsent(w http.ResponseWriter, r *http.Request) {
	phone, err := service.NormalizePhone(mux.Vars(r)["phone"])
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	var req ConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	if err := h.consent.Record(r.Context(), phone, service.ConsentOutboundCall, req.Granted); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ConsentResponse{
		Success:     true,
		PhoneNumber: phone,
		ConsentType: service.ConsentOutboundCall,
		Granted:     req.Granted,
	})
}
