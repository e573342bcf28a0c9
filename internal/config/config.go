package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	Socket struct {
		URL string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Snapshot struct {
		Enabled      bool
		Limit        int
		PollInterval time.Duration
	}
	Freshness struct {
		Window time.Duration
	}
	Gateway struct {
		QueueSize  int
		MaxWorkers int
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir   string
		Level string
	}
	Notify struct {
		Icon string
	}
	Telegram struct {
		BotToken      string
		ChatID        int64
		RatePerSecond int
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		To         string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
		ToNumber   string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")
	cfg.Socket.URL = os.Getenv("SOCKET_URL")

	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.Snapshot.Enabled = os.Getenv("SNAPSHOT_ENABLED") != "false"
	if n, err := strconv.Atoi(os.Getenv("SNAPSHOT_LIMIT")); err == nil {
		cfg.Snapshot.Limit = n
	}
	if n, err := strconv.Atoi(os.Getenv("SNAPSHOT_POLL_INTERVAL_SECONDS")); err == nil {
		cfg.Snapshot.PollInterval = time.Duration(n) * time.Second
	}

	if n, err := strconv.Atoi(os.Getenv("FRESHNESS_WINDOW_SECONDS")); err == nil {
		cfg.Freshness.Window = time.Duration(n) * time.Second
	}

	if n, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Gateway.QueueSize = n
	}
	if n, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Gateway.MaxWorkers = n
	}

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	cfg.Notify.Icon = os.Getenv("NOTIFY_ICON")

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.ChatID = id
	}
	if n, err := strconv.Atoi(os.Getenv("TELEGRAM_RATE_PER_SECOND")); err == nil {
		cfg.Telegram.RatePerSecond = n
	}

	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.To = os.Getenv("EMAIL_TO")

	cfg.SMS.AccountSID = os.Getenv("SMS_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("SMS_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("SMS_FROM_NUMBER")
	cfg.SMS.ToNumber = os.Getenv("SMS_TO_NUMBER")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Snapshot.Limit == 0 {
		cfg.Snapshot.Limit = 20
	}
	if cfg.Snapshot.PollInterval == 0 {
		cfg.Snapshot.PollInterval = 5 * time.Second
	}
	if cfg.Freshness.Window == 0 {
		cfg.Freshness.Window = 60 * time.Second
	}
	if cfg.Gateway.QueueSize == 0 {
		cfg.Gateway.QueueSize = 500
	}
	if cfg.Gateway.MaxWorkers == 0 {
		cfg.Gateway.MaxWorkers = 4
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v0"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Notify.Icon == "" {
		cfg.Notify.Icon = "/logo192.png"
	}
	if cfg.Telegram.RatePerSecond == 0 {
		cfg.Telegram.RatePerSecond = 1
	}

	return cfg, nil
}
