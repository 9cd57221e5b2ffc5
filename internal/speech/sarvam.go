// Package speech talks to the Sarvam AI speech API for text-to-speech and
// speech-to-text.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/qcom/callflow/internal/config"
	"github.com/qcom/callflow/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrGatewayUnavailable marks a synthesis that fell back to the sentinel audio.
// It never leaves a degraded Synthesis.
var ErrGatewayUnavailable = errors.New("speech gateway unavailable")

// Synthesis is the outcome of a text-to-speech request. When Degraded is set,
// Audio holds models.SentinelAudio and Cause says why.
type Synthesis struct {
	Audio    []byte
	Degraded bool
	Cause    error
}

type Transcript struct {
	Text       string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language_code"`
	Gender   string `json:"gender,omitempty"`
}

// LanguageProfile is the default speaker setup for a language.
type LanguageProfile struct {
	Name    string
	Speaker string
	Speed   float64
}

var languageProfiles = map[string]LanguageProfile{
	"en": {Name: "English", Speaker: "meera", Speed: 1.0},
	"hi": {Name: "Hindi", Speaker: "arvind", Speed: 0.95},
	"ta": {Name: "Tamil", Speaker: "amudha", Speed: 0.95},
	"te": {Name: "Telugu", Speaker: "bhavani", Speed: 0.95},
	"mr": {Name: "Marathi", Speaker: "aarohi", Speed: 0.95},
	"bn": {Name: "Bengali", Speaker: "ananya", Speed: 0.95},
}

// Profile returns the speaker profile for language, falling back to English.
func Profile(language string) LanguageProfile {
	if p, ok := languageProfiles[language]; ok {
		return p
	}
	return languageProfiles["en"]
}

type Client struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	ttsModel   string
	sttModel   string
	logger     *logrus.Logger
}

func NewClient(cfg *config.SpeechConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		apiURL:     cfg.APIURL,
		ttsModel:   cfg.TTSModel,
		sttModel:   cfg.STTModel,
		logger:     logger,
	}
}

type ttsRequest struct {
	Text         string  `json:"text"`
	LanguageCode string  `json:"language_code"`
	Speaker      string  `json:"speaker"`
	Speed        float64 `json:"speed"`
	Model        string  `json:"model"`
}

type ttsResponse struct {
	Audio string `json:"audio"`
}

type sttRequest struct {
	Audio        string `json:"audio"`
	LanguageCode string `json:"language_code"`
	Model        string `json:"model"`
}

// Synthesize converts text to audio. It never fails: any gateway error yields
// a degraded Synthesis carrying the sentinel audio.
func (c *Client) Synthesize(ctx context.Context, text, language, speaker string) Synthesis {
	profile := Profile(language)
	if speaker == "" {
		speaker = profile.Speaker
	}

	var resp ttsResponse
	err := c.post(ctx, "/text-to-speech", ttsRequest{
		Text:         text,
		LanguageCode: language,
		Speaker:      speaker,
		Speed:        profile.Speed,
		Model:        c.ttsModel,
	}, &resp)
	if err != nil {
		return c.degraded(text, err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		return c.degraded(text, fmt.Errorf("failed to decode audio: %w", err))
	}

	c.logger.WithFields(logrus.Fields{
		"chars": len(text),
		"bytes": len(audio),
	}).Info("TTS generated")
	return Synthesis{Audio: audio}
}

func (c *Client) degraded(text string, cause error) Synthesis {
	c.logger.WithError(cause).WithField("chars", len(text)).Warn("TTS failed, using sentinel audio")
	return Synthesis{
		Audio:    append([]byte(nil), models.SentinelAudio...),
		Degraded: true,
		Cause:    fmt.Errorf("%w: %v", ErrGatewayUnavailable, cause),
	}
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) (*Transcript, error) {
	var resp struct {
		Transcript string  `json:"transcript"`
		Confidence float64 `json:"confidence"`
	}
	err := c.post(ctx, "/speech-to-text", sttRequest{
		Audio:        base64.StdEncoding.EncodeToString(audio),
		LanguageCode: language,
		Model:        c.sttModel,
	}, &resp)
	if err != nil {
		c.logger.WithError(err).Error("STT failed")
		return nil, fmt.Errorf("speech to text: %w", err)
	}

	return &Transcript{
		Text:       resp.Transcript,
		Confidence: resp.Confidence,
		Language:   language,
	}, nil
}

// Voices lists the speakers for a language. Gateway failures yield an empty list.
func (c *Client) Voices(ctx context.Context, language string) []Voice {
	endpoint := c.apiURL + "/voices?" + url.Values{"language_code": {language}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.WithError(err).Error("Failed to build voices request")
		return []Voice{}
	}
	c.authorize(req)

	var resp struct {
		Voices []Voice `json:"voices"`
	}
	if err := c.do(req, &resp); err != nil {
		c.logger.WithError(err).Error("Failed to get voices")
		return []Voice{}
	}
	if resp.Voices == nil {
		return []Voice{}
	}
	return resp.Voices
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.do(req, out)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("sarvam returned status %d: %s", resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
