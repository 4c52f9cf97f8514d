package config

import (
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PILLS_BOT_TOKEN", "123:abc")
	t.Setenv("PILLS_CHAT_ID", "-1001")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, int64(-1001), cfg.ChatID)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, ModePoll, cfg.UpdateMode)
	assert.Equal(t, 30*time.Minute, cfg.RenotifyInterval)
	assert.False(t, cfg.AckDedupe)
	assert.False(t, cfg.APIEnabled())
	assert.False(t, cfg.EmailEnabled())
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
}

func TestLoad_MissingToken(t *testing.T) {
	t.Setenv("PILLS_BOT_TOKEN", "")
	require.NoError(t, os.Unsetenv("PILLS_BOT_TOKEN"))
	t.Setenv("PILLS_CHAT_ID", "1")

	_, err := Load(zerolog.Nop())
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreDriver:      DriverMemory,
		UpdateMode:       ModeWebhook,
		WebhookSecret:    "s3cret",
		RenotifyInterval: time.Minute,
		Timezone:         "UTC",
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "sqlite" }},
		{"unknown mode", func(c *Config) { c.UpdateMode = "push" }},
		{"webhook without secret", func(c *Config) { c.WebhookSecret = "" }},
		{"zero interval", func(c *Config) { c.RenotifyInterval = 0 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	c := Config{DatabaseURL: "postgres://u:p@db/pills"}
	assert.Equal(t, "postgres://u:p@db/pills", c.PostgresDSN())

	c = Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "pills", DBPort: "5432", DBSSLMode: "disable"}
	assert.Contains(t, c.PostgresDSN(), "host=db user=u password=p dbname=pills port=5432 sslmode=disable")
}
