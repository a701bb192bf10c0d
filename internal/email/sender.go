// Package email sends one-time verification and reset codes over SMTP.
package email

import (
	"context"
	"fmt"
	"time"

	"bhabo/internal/config"
	"bhabo/internal/observability"

	"gopkg.in/gomail.v2"
)

const maxAttempts = 3

// Sender delivers HTML mail through the configured SMTP relay, retrying
// transient failures with exponential backoff.
type Sender struct {
	cfg *config.Config
}

// NewSender creates a Sender for the given configuration.
func NewSender(cfg *config.Config) *Sender {
	return &Sender{cfg: cfg}
}

// SendCode mails a one-time code. The body embeds the code prominently so it
// survives plain-text rendering in strict clients.
func (s *Sender) SendCode(ctx context.Context, to, subject, intro, code string) error {
	body := fmt.Sprintf(
		"<p>%s</p><p>Your code is: <strong>%s</strong></p><p>If you did not request this, you can ignore this email.</p>",
		intro, code,
	)
	return s.send(ctx, to, subject, body)
}

func (s *Sender) send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	dialer := gomail.NewDialer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := dialer.DialAndSend(m); err != nil {
			lastErr = err
			delay := time.Duration(1<<attempt) * time.Second
			observability.GlobalLogger.Warn("email send failed, retrying",
				"to", to, "attempt", attempt+1, "delay", delay.String(), "error", err.Error())
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				observability.EmailsSent.WithLabelValues("cancelled").Inc()
				return fmt.Errorf("email send cancelled: %w", ctx.Err())
			}
			continue
		}
		observability.EmailsSent.WithLabelValues("success").Inc()
		return nil
	}

	observability.EmailsSent.WithLabelValues("failure").Inc()
	return fmt.Errorf("sending email to %s after %d attempts: %w", to, maxAttempts, lastErr)
}
