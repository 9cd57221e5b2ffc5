// Package telephony places outbound calls and sends SMS through Twilio.
package telephony

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/qcom/callflow/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// StatusCallbackEvents are the call progress events Twilio reports back.
var StatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

type CallRequest struct {
	To                string
	ScriptURL         string
	StatusCallbackURL string
}

// CallHandle is what the provider reports right after accepting a call.
type CallHandle struct {
	SID    string
	Status string
}

type TwilioClient struct {
	client     *twilio.RestClient
	fromNumber string
	dryRun     bool
	logger     *logrus.Logger
}

// NewTwilioClient builds the client. Without credentials it runs in dry-run
// mode: calls and messages are logged and given synthetic SIDs.
func NewTwilioClient(cfg *config.TwilioConfig, logger *logrus.Logger) *TwilioClient {
	dryRun := cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.PhoneNumber == ""

	var client *twilio.RestClient
	if !dryRun {
		client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		if cfg.Timeout > 0 {
			client.SetTimeout(cfg.Timeout)
		}
	}

	return &TwilioClient{
		client:     client,
		fromNumber: cfg.PhoneNumber,
		dryRun:     dryRun,
		logger:     logger,
	}
}

func (c *TwilioClient) DryRun() bool {
	return c.dryRun
}

// PlaceCall asks Twilio to dial req.To and fetch its script from req.ScriptURL.
func (c *TwilioClient) PlaceCall(ctx context.Context, req CallRequest) (*CallHandle, error) {
	if c.dryRun {
		handle := &CallHandle{SID: "CA_dry_" + uuid.NewString(), Status: "queued"}
		c.logger.WithFields(logrus.Fields{
			"to":         req.To,
			"script_url": req.ScriptURL,
			"sid":        handle.SID,
		}).Info("[dry-run] Twilio call not placed")
		return handle, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(c.fromNumber)
	params.SetUrl(req.ScriptURL)
	params.SetMethod(http.MethodPost)
	params.SetStatusCallback(req.StatusCallbackURL)
	params.SetStatusCallbackMethod(http.MethodPost)
	params.SetStatusCallbackEvent(StatusCallbackEvents)

	call, err := c.client.Api.CreateCall(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	handle := &CallHandle{}
	if call.Sid != nil {
		handle.SID = *call.Sid
	}
	if call.Status != nil {
		handle.Status = *call.Status
	}
	return handle, nil
}

// SendSMS delivers a text message and returns the message SID.
func (c *TwilioClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	if c.dryRun {
		sid := "SM_dry_" + uuid.NewString()
		c.logger.WithFields(logrus.Fields{
			"to":  to,
			"sid": sid,
		}).Info("[dry-run] Twilio SMS not sent")
		return sid, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetBody(body)

	msg, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}
	if msg.Sid == nil {
		return "", nil
	}
	return *msg.Sid, nil
}
