package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.Origins)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.GuestSessionTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.OneTimeTokenTTL)
	assert.Equal(t, TelegramModeWebhook, cfg.Telegram.Mode)
	assert.Equal(t, EgressInline, cfg.Telegram.Egress)
	assert.False(t, cfg.TelegramEnabled())
	assert.Equal(t, "https://localhost:443/api/telegram-webhook", cfg.WebhookURL())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"postgres without url", func(c *Config) { c.Database.Driver = DriverPostgres }, true},
		{"postgres with url", func(c *Config) {
			c.Database.Driver = DriverPostgres
			c.Database.URL = "postgres://localhost/support"
		}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"stream without redis", func(c *Config) { c.Telegram.Egress = EgressStream }, true},
		{"bad mode", func(c *Config) { c.Telegram.Mode = "carrier-pigeon" }, true},
		{"half admin", func(c *Config) { c.Admin.Username = "root" }, true},
		{"webhook without secret", func(c *Config) { c.Telegram.BotToken = "1:T" }, true},
		{"webhook with secret", func(c *Config) {
			c.Telegram.BotToken = "1:T"
			c.Telegram.WebhookSecret = "s3cret"
		}, false},
		{"polling without secret", func(c *Config) {
			c.Telegram.BotToken = "1:T"
			c.Telegram.Mode = TelegramModePolling
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Database.Driver = DriverSQLite
			cfg.Telegram.Mode = TelegramModeWebhook
			cfg.Telegram.Egress = EgressInline
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
