package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"homepal-gateway/internal/config"
	"homepal-gateway/internal/models"
)

// SMS delivers alerts through the Twilio REST API.
type SMS struct {
	cfg    config.Config
	logger *logrus.Logger
	client *http.Client
	// base is overridden in tests
	base string
}

func NewSMS(cfg config.Config, logger *logrus.Logger) *SMS {
	return &SMS{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{},
		base:   "https://api.twilio.com",
	}
}

func (s *SMS) Name() string { return "sms" }

func (s *SMS) Available() bool {
	c := s.cfg.SMS
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != "" && c.ToNumber != ""
}

func (s *SMS) Send(ctx context.Context, payload models.NotificationPayload) error {
	if !s.Available() {
		return fmt.Errorf("sms channel not configured")
	}
	if !strings.HasPrefix(s.cfg.SMS.ToNumber, "+") {
		return fmt.Errorf("invalid phone number: %s", s.cfg.SMS.ToNumber)
	}

	urlStr := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.base, s.cfg.SMS.AccountSID)
	form := url.Values{}
	form.Set("To", s.cfg.SMS.ToNumber)
	form.Set("From", s.cfg.SMS.FromNumber)
	form.Set("Body", fmt.Sprintf("%s\n%s", payload.Title, payload.Body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.SetBasicAuth(s.cfg.SMS.AccountSID, s.cfg.SMS.AuthToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", s.cfg.SMS.ToNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("Twilio API returned status %d for phone_number=%s", resp.StatusCode, s.cfg.SMS.ToNumber)
	}
	return nil
}
