package script

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/qcom/callflow/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestRenderer() *Renderer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRenderer("https://calls.example.com/", logger)
}

func TestRender_AudioSizeBoundary(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		playback bool
	}{
		{name: "absent audio", size: 0, playback: false},
		{name: "sentinel", size: len(models.SentinelAudio), playback: false},
		{name: "99 bytes", size: 99, playback: false},
		{name: "100 bytes", size: 100, playback: true},
		{name: "real audio", size: 48000, playback: true},
	}

	r := newTestRenderer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := r.Render(&models.CallSession{
				ID:       "call-1",
				Language: "en",
				Greeting: "Hello from the bank.",
				Audio:    bytes.Repeat([]byte{1}, tt.size),
			})

			assert.Contains(t, doc, "<Response>")
			if tt.playback {
				assert.Contains(t, doc, "<Play>https://calls.example.com/api/voice/audio/call-1.wav</Play>")
				assert.NotContains(t, doc, "Hello from the bank.")
			} else {
				assert.NotContains(t, doc, "<Play>")
				assert.Contains(t, doc, "Hello from the bank.")
			}
			assert.Contains(t, doc, ClosingLine)
		})
	}
}

func TestRender_FallbackUsesLanguageVoice(t *testing.T) {
	r := newTestRenderer()
	doc := r.Render(&models.CallSession{
		ID:       "call-hi",
		Language: "hi",
		Greeting: "नमस्ते",
		Audio:    models.SentinelAudio,
	})

	assert.Contains(t, doc, `voice="Polly.Aditi"`)
	assert.Contains(t, doc, `language="hi-IN"`)
	assert.Contains(t, doc, "नमस्ते")
	assert.Equal(t, 2, strings.Count(doc, "<Say"))
}

func TestRender_EscapesMarkup(t *testing.T) {
	r := newTestRenderer()
	doc := r.Render(&models.CallSession{
		ID:       "call-esc",
		Language: "en",
		Greeting: "Loans & offers <today> only",
	})

	assert.Contains(t, doc, "Loans &amp; offers &lt;today&gt; only")
	assert.NotContains(t, doc, "<today>")
}

func TestRender_PlaybackPrefersSessionPublicURL(t *testing.T) {
	r := newTestRenderer()
	doc := r.Render(&models.CallSession{
		ID:        "call-2",
		PublicURL: "https://tunnel.example.net/",
		Audio:     bytes.Repeat([]byte{1}, 500),
	})

	assert.Contains(t, doc, "<Play>https://tunnel.example.net/api/voice/audio/call-2.wav</Play>")
	assert.Contains(t, doc, `voice="alice"`)
}

func TestRender_NotFound(t *testing.T) {
	doc := newTestRenderer().Render(nil)
	assert.Contains(t, doc, "<Response>")
	assert.Contains(t, doc, NotFoundLine)
}

func TestVoiceFor(t *testing.T) {
	voice, locale := VoiceFor("ta")
	assert.Equal(t, "Polly.Aditi", voice)
	assert.Equal(t, "ta-IN", locale)

	voice, locale = VoiceFor("fr")
	assert.Equal(t, "alice", voice)
	assert.Equal(t, "en-IN", locale)
}

func TestRenderer_SystemError(t *testing.T) {
	doc := newTestRenderer().SystemError()
	assert.Contains(t, doc, "<Say>System error.</Say>")
}
