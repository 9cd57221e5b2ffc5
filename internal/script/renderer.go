// Package script renders the TwiML document Twilio fetches when an outbound
// call connects.
package script

import (
	"fmt"
	"strings"

	"github.com/qcom/callflow/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go/twiml"
)

const (
	ClosingLine     = "Thank you for your time. Goodbye."
	NotFoundLine    = "Call session not found."
	DefaultGreeting = "Hello, this is a call from your bank."

	// systemErrorDocument is served if the TwiML encoder itself fails.
	systemErrorDocument = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>System error.</Say></Response>`
)

type voiceLocale struct {
	voice  string
	locale string
}

var defaultVoice = voiceLocale{voice: "alice", locale: "en-IN"}

var voices = map[string]voiceLocale{
	"en": defaultVoice,
	"hi": {voice: "Polly.Aditi", locale: "hi-IN"},
	"ta": {voice: "Polly.Aditi", locale: "ta-IN"},
	"te": {voice: "Polly.Aditi", locale: "te-IN"},
	"mr": {voice: "Polly.Aditi", locale: "mr-IN"},
	"bn": {voice: "Polly.Aditi", locale: "bn-IN"},
}

// VoiceFor returns the Twilio voice and locale used to speak language.
func VoiceFor(language string) (voice, locale string) {
	v, ok := voices[language]
	if !ok {
		v = defaultVoice
	}
	return v.voice, v.locale
}

type Renderer struct {
	baseURL string
	logger  *logrus.Logger
}

// NewRenderer uses baseURL for audio links when a session has no public URL of its own.
func NewRenderer(baseURL string, logger *logrus.Logger) *Renderer {
	return &Renderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// AudioURL is where Twilio downloads the synthesized greeting.
func (r *Renderer) AudioURL(session *models.CallSession) string {
	base := r.baseURL
	if session.PublicURL != "" {
		base = strings.TrimRight(session.PublicURL, "/")
	}
	return fmt.Sprintf("%s/api/voice/audio/%s.wav", base, session.ID)
}

// Render returns the script for session. A nil session yields the not-found
// document. Render never fails.
func (r *Renderer) Render(session *models.CallSession) string {
	if session == nil {
		return r.encode([]twiml.Element{&twiml.VoiceSay{Message: NotFoundLine}})
	}

	if !session.HasPlayableAudio() {
		voice, locale := VoiceFor(session.Language)
		greeting := session.Greeting
		if greeting == "" {
			greeting = DefaultGreeting
		}
		r.logger.WithFields(logrus.Fields{
			"call_id":    session.ID,
			"audio_size": len(session.Audio),
			"voice":      voice,
		}).Warn("No playable audio, using provider TTS")

		return r.encode([]twiml.Element{
			&twiml.VoiceSay{Message: greeting, Voice: voice, Language: locale},
			&twiml.VoicePause{Length: "1"},
			&twiml.VoiceSay{Message: ClosingLine, Voice: voice, Language: locale},
		})
	}

	audioURL := r.AudioURL(session)
	r.logger.WithFields(logrus.Fields{
		"call_id":   session.ID,
		"audio_url": audioURL,
	}).Info("Serving playback script")

	return r.encode([]twiml.Element{
		&twiml.VoicePlay{Url: audioURL},
		&twiml.VoicePause{Length: "1"},
		&twiml.VoiceSay{Message: ClosingLine, Voice: defaultVoice.voice, Language: defaultVoice.locale},
	})
}

// SystemError is served when the session lookup itself fails.
func (r *Renderer) SystemError() string {
	return systemErrorDocument
}

func (r *Renderer) encode(verbs []twiml.Element) string {
	doc, err := twiml.Voice(verbs)
	if err != nil {
		r.logger.WithError(err).Error("TwiML generation failed")
		return systemErrorDocument
	}
	return doc
}
