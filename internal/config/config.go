package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Feed      FeedConfig
	Alerts    AlertsConfig
	Broadcast BroadcastConfig
	SMS       SMSConfig
	Sound     SoundConfig
	Worker    WorkerConfig
	Kafka     KafkaConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type FeedConfig struct {
	URL          string
	Limit        int
	Timeout      time.Duration
	PollInterval time.Duration
}

type AlertsConfig struct {
	SevereAlertTTL time.Duration
}

type BroadcastConfig struct {
	Provider      string // "ntfy" or "telegram"
	URL           string
	Topic         string
	Timeout       time.Duration
	TelegramToken string
	TelegramRate  int
}

type SMSConfig struct {
	Provider   string // "http" or "twilio"
	GatewayURL string
	Timeout    time.Duration
	AccountSID string
	AuthToken  string
	FromNumber string
}

type SoundConfig struct {
	Enabled bool
	Dir     string
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 5),
		},
		Feed: FeedConfig{
			URL:          getEnv("FEED_URL", "http://localhost:3000/api/events"),
			Limit:        getEnvInt("FEED_LIMIT", 50),
			Timeout:      getEnvDuration("FEED_TIMEOUT", 15*time.Second),
			PollInterval: getEnvDuration("POLL_INTERVAL", 30*time.Second),
		},
		Alerts: AlertsConfig{
			SevereAlertTTL: getEnvDuration("SEVERE_ALERT_TTL", 30*time.Second),
		},
		Broadcast: BroadcastConfig{
			Provider:      getEnv("BROADCAST_PROVIDER", "ntfy"),
			URL:           getEnv("BROADCAST_URL", "https://ntfy.sh"),
			Topic:         getEnv("BROADCAST_TOPIC", ""),
			Timeout:       getEnvDuration("BROADCAST_TIMEOUT", 10*time.Second),
			TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramRate:  getEnvInt("TELEGRAM_RATE_LIMIT", 1),
		},
		SMS: SMSConfig{
			Provider:   getEnv("SMS_PROVIDER", "http"),
			GatewayURL: getEnv("SMS_GATEWAY_URL", "http://localhost:3000/api/sms"),
			Timeout:    getEnvDuration("SMS_TIMEOUT", 10*time.Second),
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		},
		Sound: SoundConfig{
			Enabled: getEnvBool("SOUND_ENABLED", true),
			Dir:     getEnv("SOUND_DIR", "./data/sounds"),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Kafka: KafkaConfig{
			Brokers: parseList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "quake-alerts"),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/quake-alert.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Feed.URL == "" {
		return fmt.Errorf("FEED_URL is required")
	}
	if c.Feed.Limit < 1 {
		return fmt.Errorf("feed limit must be positive")
	}
	if c.Feed.PollInterval < time.Second {
		return fmt.Errorf("poll interval must be at least 1 second")
	}
	if c.Alerts.SevereAlertTTL <= 0 {
		return fmt.Errorf("severe alert TTL must be positive")
	}

	switch c.Broadcast.Provider {
	case "ntfy":
		if c.Broadcast.URL == "" {
			return fmt.Errorf("BROADCAST_URL is required for the ntfy provider")
		}
	case "telegram":
		if c.Broadcast.TelegramToken == "" {
			return fmt.Errorf("telegram broadcast provider requires TELEGRAM_BOT_TOKEN")
		}
	default:
		return fmt.Errorf("unknown broadcast provider: %s", c.Broadcast.Provider)
	}

	switch c.SMS.Provider {
	case "http":
		u, err := url.Parse(c.SMS.GatewayURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("http SMS provider requires an absolute http(s) SMS_GATEWAY_URL, got %q", c.SMS.GatewayURL)
		}
	case "twilio":
		if c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.FromNumber == "" {
			return fmt.Errorf("twilio SMS provider requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER")
		}
	default:
		return fmt.Errorf("unknown SMS provider: %s", c.SMS.Provider)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
