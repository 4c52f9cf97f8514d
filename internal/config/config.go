package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Update modes
const (
	ModePoll    = "poll"
	ModeWebhook = "webhook"
)

// Config holds the configuration for the reminder service.
// Environment variables are parsed from the PILLS_ prefix,
// e.g. PILLS_BOT_TOKEN, PILLS_STORE_DRIVER.
type Config struct {
	// Telegram
	BotToken       string `envconfig:"BOT_TOKEN" required:"true"`
	ChatID         int64  `envconfig:"CHAT_ID" required:"true"`
	TelegramAPIURL string `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`
	UpdateMode     string `envconfig:"UPDATE_MODE" default:"poll"`
	WebhookSecret  string `envconfig:"WEBHOOK_SECRET"`
	WebhookURL     string `envconfig:"WEBHOOK_URL"`

	// HTTP
	HTTPPort int    `envconfig:"HTTP_PORT" default:"8080"`
	GinMode  string `envconfig:"GIN_MODE" default:"debug"`

	Timezone string `envconfig:"TIMEZONE" default:"Local"`

	// Storage
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      string `envconfig:"DB_PORT" default:"5432"`
	DBUser      string `envconfig:"DB_USER" default:"postgres"`
	DBPassword  string `envconfig:"DB_PASSWORD"`
	DBName      string `envconfig:"DB_NAME" default:"pills"`
	DBSSLMode   string `envconfig:"DB_SSL_MODE" default:"disable"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"pills:"`

	// Change feed, optional
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"pills.changes"`

	// Email, optional
	SendGridAPIKey    string `envconfig:"SENDGRID_API_KEY"`
	SendGridFromEmail string `envconfig:"SENDGRID_FROM_EMAIL"`
	SendGridFromName  string `envconfig:"SENDGRID_FROM_NAME" default:"Pills Reminder"`
	CaregiverEmail    string `envconfig:"CAREGIVER_EMAIL"`

	// Dashboard API is enabled only when a secret is set
	JWTSecret string `envconfig:"JWT_SECRET"`

	RenotifyInterval time.Duration `envconfig:"RENOTIFY_INTERVAL" default:"30m"`
	AckDedupe        bool          `envconfig:"ACK_DEDUPE" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads an optional .env file and then the PILLS_ environment
func Load(log zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Could not read .env file")
	}

	var cfg Config
	if err := envconfig.Process("PILLS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("store_driver", cfg.StoreDriver).
		Str("update_mode", cfg.UpdateMode).
		Int("port", cfg.HTTPPort).
		Str("timezone", cfg.Timezone).
		Int64("chat_id", cfg.ChatID).
		Bool("database_url_present", cfg.DatabaseURL != "").
		Bool("amqp_enabled", cfg.AMQPURL != "").
		Bool("email_enabled", cfg.EmailEnabled()).
		Bool("api_enabled", cfg.APIEnabled()).
		Dur("renotify_interval", cfg.RenotifyInterval).
		Bool("ack_dedupe", cfg.AckDedupe).
		Msg("Configuration loaded")

	return &cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	switch c.UpdateMode {
	case ModePoll, ModeWebhook:
	default:
		return fmt.Errorf("unsupported UPDATE_MODE: %s", c.UpdateMode)
	}
	if c.UpdateMode == ModeWebhook && c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required in webhook mode")
	}
	if c.RenotifyInterval <= 0 {
		return fmt.Errorf("RENOTIFY_INTERVAL must be positive, got %s", c.RenotifyInterval)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// PostgresDSN returns DATABASE_URL when set, otherwise builds one from the DB_* fields
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC connect_timeout=10",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

// EmailEnabled reports whether course summaries can be mailed
func (c *Config) EmailEnabled() bool {
	return c.SendGridAPIKey != "" && c.SendGridFromEmail != "" && c.CaregiverEmail != ""
}

// APIEnabled reports whether the dashboard API is mounted
func (c *Config) APIEnabled() bool {
	return c.JWTSecret != ""
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
