package telephony

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/qcom/callflow/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestNewTwilioClient_DryRunWithoutCredentials(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.TwilioConfig
		dryRun bool
	}{
		{name: "no credentials", cfg: config.TwilioConfig{}, dryRun: true},
		{name: "missing from number", cfg: config.TwilioConfig{AccountSID: "AC123", AuthToken: "tok"}, dryRun: true},
		{name: "configured", cfg: config.TwilioConfig{AccountSID: "AC123", AuthToken: "tok", PhoneNumber: "+15550001111"}, dryRun: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewTwilioClient(&tt.cfg, quietLogger())
			assert.Equal(t, tt.dryRun, c.DryRun())
		})
	}
}

func TestTwilioClient_DryRunCallAndSMS(t *testing.T) {
	c := NewTwilioClient(&config.TwilioConfig{}, quietLogger())

	handle, err := c.PlaceCall(context.Background(), CallRequest{
		To:                "+911234567890",
		ScriptURL:         "https://example.com/api/voice/script/abc",
		StatusCallbackURL: "https://example.com/api/voice/status/abc",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(handle.SID, "CA_dry_"))
	assert.Equal(t, "queued", handle.Status)

	sid, err := c.SendSMS(context.Background(), "+911234567890", "code 123456")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sid, "SM_dry_"))
}
