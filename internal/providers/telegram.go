package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"homepal-gateway/internal/config"
	"homepal-gateway/internal/models"
	"homepal-gateway/internal/utils"
)

// Telegram delivers alerts to a caregiver chat via the Bot API.
type Telegram struct {
	cfg     config.Config
	logger  *logrus.Logger
	limiter *rate.Limiter
}

func NewTelegram(cfg config.Config, logger *logrus.Logger) *Telegram {
	per := cfg.Telegram.RatePerSecond
	if per <= 0 {
		per = 1
	}
	return &Telegram{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(per)), per),
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Available() bool {
	return t.cfg.Telegram.BotToken != "" && t.cfg.Telegram.ChatID != 0
}

func (t *Telegram) Send(ctx context.Context, payload models.NotificationPayload) error {
	if !t.Available() {
		return fmt.Errorf("telegram channel not configured")
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", payload.Title, payload.Body)
	if ev := payload.SourceEvent; ev != nil {
		text += fmt.Sprintf("\n\n*Patient:* %s\n*Device:* %s", ev.PatientID, ev.DeviceID)
		if ev.Description != "" {
			text += fmt.Sprintf("\n%s", ev.Description)
		}
	}

	return utils.Retry(t.logger, 3, time.Second, func() error {
		b, err := bot.New(t.cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID:    t.cfg.Telegram.ChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", t.cfg.Telegram.ChatID, err)
		}
		return nil
	})
}
