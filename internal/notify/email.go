// Package notify sends best-effort side notifications about outbound calls.
package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/qcom/callflow/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Notice is a message about a call session sent on a side channel.
type Notice struct {
	To      string
	Subject string
	Body    string
}

// Sender abstracts the SMTP dialer so tests can capture messages.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailDispatcher struct {
	sender Sender
	from   string
	logger *logrus.Logger
}

// NewEmailDispatcher returns a dispatcher that logs instead of sending when no
// SMTP host is configured.
func NewEmailDispatcher(cfg *config.EmailConfig, logger *logrus.Logger) *EmailDispatcher {
	var sender Sender
	if cfg.SMTPHost != "" {
		sender = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	}
	return NewEmailDispatcherWithSender(sender, cfg.FromEmail, logger)
}

func NewEmailDispatcherWithSender(sender Sender, from string, logger *logrus.Logger) *EmailDispatcher {
	return &EmailDispatcher{
		sender: sender,
		from:   from,
		logger: logger,
	}
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, n Notice) error {
	if d.sender == nil {
		d.logger.WithFields(logrus.Fields{
			"to":      n.To,
			"subject": n.Subject,
		}).Info("[dry-run] email not sent")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", n.To)
	m.SetHeader("Subject", n.Subject)
	m.SetBody("text/html", fmt.Sprintf("<p>%s</p>", html.EscapeString(n.Body)))

	if err := d.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
