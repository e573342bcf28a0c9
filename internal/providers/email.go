package providers

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/config"
	"homepal-gateway/internal/models"
)

// Email delivers alerts to one or more caregiver addresses over SMTP.
// EMAIL_TO accepts a comma-separated list.
type Email struct {
	cfg    config.Config
	logger *logrus.Logger
	// send is swapped out in tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg config.Config, logger *logrus.Logger) *Email {
	return &Email{cfg: cfg, logger: logger, send: smtp.SendMail}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Available() bool {
	c := e.cfg.Email
	return c.SMTPServer != "" && c.SMTPPort != 0 && c.Username != "" && c.Password != "" && c.To != ""
}

func (e *Email) Send(ctx context.Context, payload models.NotificationPayload) error {
	if !e.Available() {
		return fmt.Errorf("email channel not configured")
	}

	var to []string
	for _, addr := range strings.Split(e.cfg.Email.To, ",") {
		addr = strings.TrimSpace(addr)
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid email address: %s", addr)
		}
		to = append(to, addr)
	}

	body := payload.Body
	if ev := payload.SourceEvent; ev != nil && ev.Description != "" {
		body += "\n\n" + ev.Description
	}
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		strings.Join(to, ", "), payload.Title, body))

	auth := smtp.PlainAuth("", e.cfg.Email.Username, e.cfg.Email.Password, e.cfg.Email.SMTPServer)
	addr := fmt.Sprintf("%s:%d", e.cfg.Email.SMTPServer, e.cfg.Email.SMTPPort)
	if err := e.send(addr, auth, e.cfg.Email.Username, to, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
