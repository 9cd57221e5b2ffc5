package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qcom/callflow/internal/config"
	"github.com/qcom/callflow/internal/models"
	"github.com/qcom/callflow/internal/notify"
	"github.com/qcom/callflow/internal/repository"
	"github.com/qcom/callflow/internal/script"
	"github.com/qcom/callflow/internal/speech"
	"github.com/qcom/callflow/internal/telephony"
	"github.com/sirupsen/logrus"
)

// ConsentOutboundCall is the consent type checked before dialing.
const ConsentOutboundCall = "outbound_call"

type Synthesizer interface {
	Synthesize(ctx context.Context, text, language, speaker string) speech.Synthesis
}

type CallPlacer interface {
	PlaceCall(ctx context.Context, req telephony.CallRequest) (*telephony.CallHandle, error)
}

type NoticeDispatcher interface {
	Dispatch(ctx context.Context, n notify.Notice) error
}

type ConsentChecker interface {
	HasConsent(ctx context.Context, phoneNumber, consentType string) (bool, error)
	Record(ctx context.Context, phoneNumber, consentType string, granted bool) error
}

type VerificationChecker interface {
	IsVerified(ctx context.Context, phoneNumber string) (bool, error)
}

type OutboundCallRequest struct {
	PhoneNumber  string         `json:"phone_number"`
	Purpose      models.Purpose `json:"purpose"`
	Sector       string         `json:"sector"`
	Language     string         `json:"language"`
	CustomerData map[string]any `json:"customer_data"`
	PublicURL    string         `json:"public_url"`
}

// StatusUpdate is a provider progress callback for one session.
type StatusUpdate struct {
	CallID         string
	ProviderCallID string
	Status         string
	From           string
	To             string
}

// CallDeps groups the collaborators of a CallService.
type CallDeps struct {
	Sessions     *repository.SessionRepository
	Synthesizer  Synthesizer
	Placer       CallPlacer
	Notifier     NoticeDispatcher
	Consent      ConsentChecker
	Verification VerificationChecker
	Renderer     *script.Renderer
}

type CallService struct {
	CallDeps
	cfg    *config.VoiceConfig
	logger *logrus.Logger
	now    func() time.Time
}

func NewCallService(deps CallDeps, cfg *config.VoiceConfig, logger *logrus.Logger) *CallService {
	return &CallService{
		CallDeps: deps,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *CallService) WithClock(now func() time.Time) *CallService {
	s.now = now
	return s
}

func (s *CallService) audit(event string, session *models.CallSession) *logrus.Entry {
	return s.logger.WithFields(logrus.Fields{
		"audit":   event,
		"call_id": session.ID,
		"phone":   session.PhoneNumber,
		"purpose": session.Purpose,
		"status":  session.Status,
	})
}

// CreateSession records a new session, synthesizes its greeting and hands the
// call to the telephony provider. If the hand-off fails the session is still
// returned, left in the initiated state, together with an error wrapping
// ErrCallInitiationFailed.
func (s *CallService) CreateSession(ctx context.Context, req OutboundCallRequest) (*models.CallSession, error) {
	// The number is passed to the provider as given; it rejects bad formats.
	phone := strings.TrimSpace(req.PhoneNumber)
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = fallbackLanguage
	}

	session := &models.CallSession{
		ID:           uuid.New().String(),
		PhoneNumber:  phone,
		Purpose:      req.Purpose,
		Sector:       req.Sector,
		Language:     language,
		CustomerData: req.CustomerData,
		PublicURL:    strings.TrimRight(req.PublicURL, "/"),
		Status:       models.CallStatusInitiated,
		Greeting:     Greeting(req.Purpose, language),
		CreatedAt:    s.now(),
	}
	if err := s.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.WithField("call_id", session.ID).WithFields(logrus.Fields{
		"phone":    phone,
		"purpose":  session.Purpose,
		"language": language,
	}).Info("Call session created")

	synthesis := s.synthesize(ctx, session)
	session, err := s.Sessions.Update(ctx, session.ID, func(stored *models.CallSession) error {
		stored.Audio = synthesis.Audio
		stored.AudioDegraded = synthesis.Degraded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store greeting audio: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	s.checkConsent(ctx, session)
	s.checkVerified(ctx, session)
	s.notify(ctx, session)

	base := s.baseURL(session)
	handle, err := s.Placer.PlaceCall(ctx, telephony.CallRequest{
		To:                phone,
		ScriptURL:         fmt.Sprintf("%s/api/voice/script/%s", base, session.ID),
		StatusCallbackURL: fmt.Sprintf("%s/api/voice/status/%s", base, session.ID),
	})
	if err != nil {
		s.audit("call_initiation_failed", session).WithError(err).Error("Audit event")
		return session, fmt.Errorf("%w: %v", ErrCallInitiationFailed, err)
	}

	updated, err := s.Sessions.Update(ctx, session.ID, func(stored *models.CallSession) error {
		stored.ProviderCallID = handle.SID
		if handle.Status != "" {
			stored.Status = models.CallStatus(handle.Status)
		}
		return nil
	})
	if err != nil {
		return session, fmt.Errorf("failed to record provider call: %w", err)
	}
	if updated != nil {
		session = updated
	}

	s.audit("call_initiated", session).WithField("provider_call_id", handle.SID).Info("Audit event")
	return session, nil
}

func (s *CallService) synthesize(ctx context.Context, session *models.CallSession) speech.Synthesis {
	timeout := s.cfg.SynthTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	synthCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := s.Synthesizer.Synthesize(synthCtx, session.Greeting, session.Language, "")
	if result.Degraded {
		s.logger.WithError(result.Cause).WithField("call_id", session.ID).Warn("Greeting synthesis degraded, using sentinel audio")
		if len(result.Audio) == 0 {
			result.Audio = append([]byte(nil), models.SentinelAudio...)
		}
	}
	return result
}

// checkConsent records a missing consent as refused. It never blocks the call.
func (s *CallService) checkConsent(ctx context.Context, session *models.CallSession) {
	if s.Consent == nil {
		return
	}
	ok, err := s.Consent.HasConsent(ctx, session.PhoneNumber, ConsentOutboundCall)
	if err != nil {
		s.logger.WithError(err).WithField("call_id", session.ID).Warn("Consent check failed")
		return
	}
	if ok {
		return
	}
	s.audit("consent_missing", session).Warn("Audit event")
	if err := s.Consent.Record(ctx, session.PhoneNumber, ConsentOutboundCall, false); err != nil {
		s.logger.WithError(err).WithField("call_id", session.ID).Warn("Failed to record missing consent")
	}
}

func (s *CallService) checkVerified(ctx context.Context, session *models.CallSession) {
	if s.Verification == nil {
		return
	}
	verified, err := s.Verification.IsVerified(ctx, session.PhoneNumber)
	if err != nil {
		s.logger.WithError(err).WithField("call_id", session.ID).Warn("Verification lookup failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"call_id":  session.ID,
		"verified": verified,
	}).Info("Phone verification status")
}

func (s *CallService) notify(ctx context.Context, session *models.CallSession) {
	if s.Notifier == nil {
		return
	}
	email, _ := session.CustomerData["email"].(string)
	if email == "" {
		return
	}
	err := s.Notifier.Dispatch(ctx, notify.Notice{
		To:      email,
		Subject: "Upcoming call from your bank",
		Body:    session.Greeting,
	})
	if err != nil {
		s.logger.WithError(err).WithField("call_id", session.ID).Warn("Failed to send call notification email")
	}
}

func (s *CallService) baseURL(session *models.CallSession) string {
	if session.PublicURL != "" {
		return session.PublicURL
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/")
}

func (s *CallService) GetSession(ctx context.Context, id string) (*models.CallSession, error) {
	session, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// IngestStatus applies a provider callback. Callbacks for unknown sessions
// are logged and ignored.
func (s *CallService) IngestStatus(ctx context.Context, update StatusUpdate) error {
	now := s.now()
	session, err := s.Sessions.Update(ctx, update.CallID, func(stored *models.CallSession) error {
		stored.Status = models.CallStatus(update.Status)
		stored.LastStatusUpdate = &now
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("call_id", update.CallID).Error("Failed to apply status callback")
		return err
	}
	if session == nil {
		s.logger.WithFields(logrus.Fields{
			"call_id":          update.CallID,
			"provider_call_id": update.ProviderCallID,
			"status":           update.Status,
		}).Warn("Status callback for unknown call session")
		return nil
	}

	s.audit("call_status", session).WithFields(logrus.Fields{
		"provider_call_id": update.ProviderCallID,
		"from":             update.From,
		"to":               update.To,
	}).Info("Audit event")
	return nil
}

// CompleteSession marks the session completed with outcome. Repeating it
// overwrites the previous outcome and completion time.
func (s *CallService) CompleteSession(ctx context.Context, id string, outcome models.Outcome) (*models.CallSession, error) {
	if !outcome.Valid() {
		return nil, ErrInvalidOutcome
	}

	now := s.now()
	session, err := s.Sessions.Update(ctx, id, func(stored *models.CallSession) error {
		stored.Status = models.CallStatusCompleted
		stored.Outcome = outcome
		stored.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	s.audit("call_completed", session).WithField("outcome", outcome).Info("Audit event")
	return session, nil
}

// GetAudio returns the stored greeting audio, sentinel bytes included.
func (s *CallService) GetAudio(ctx context.Context, id string) ([]byte, error) {
	session, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil || len(session.Audio) == 0 {
		return nil, ErrAudioNotAvailable
	}
	return session.Audio, nil
}

// Script returns the TwiML document for the session. It never fails.
func (s *CallService) Script(ctx context.Context, id string) string {
	session, err := s.Sessions.Get(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("call_id", id).Error("Failed to load call session for script")
		return s.Renderer.SystemError()
	}
	if session == nil {
		s.logger.WithField("call_id", id).Warn("Script requested for unknown call session")
	}
	return s.Renderer.Render(session)
}
