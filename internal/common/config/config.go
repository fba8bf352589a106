package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	TelegramModeWebhook = "webhook"
	TelegramModePolling = "polling"

	EgressInline = "inline"
	EgressStream = "stream"
)

// Config is the complete process configuration. It is built once at startup
// and passed explicitly to every component that needs it.
type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port int `env:"PORT" envDefault:"3000"`
		// Allowed CORS origins; "*" allows any.
		Origins []string `env:"ORIGIN" envSeparator:"," envDefault:"*"`
	}

	Database struct {
		Driver     string `env:"DB_DRIVER" envDefault:"sqlite"`
		URL        string `env:"DATABASE_URL"`
		SQLitePath string `env:"SQLITE_PATH" envDefault:"data/support.db"`
		MaxConns   int    `env:"DB_MAX_CONNS" envDefault:"10"`
	}

	Redis struct {
		// Empty disables the actor cache and the egress stream.
		URL           string        `env:"REDIS_URL"`
		ActorCacheTTL time.Duration `env:"ACTOR_CACHE_TTL" envDefault:"1m"`
	}

	Auth struct {
		JWTSecret       string        `env:"JWT_SECRET,required,notEmpty"`
		GuestSessionTTL time.Duration `env:"GUEST_SESSION_TTL" envDefault:"24h"`
		SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"168h"`
		OneTimeTokenTTL time.Duration `env:"ONE_TIME_TOKEN_TTL" envDefault:"168h"`
	}

	// Bootstrap admin credential, created on startup when missing.
	Admin struct {
		Username string `env:"ADMIN_USERNAME"`
		Password string `env:"ADMIN_PASSWORD"`
		Email    string `env:"ADMIN_EMAIL"`
	}

	Telegram struct {
		// Empty disables the Telegram channel entirely.
		BotToken      string        `env:"BOT_TOKEN"`
		APIURL        string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
		Mode          string        `env:"TELEGRAM_MODE" envDefault:"webhook"`
		WebhookSecret string        `env:"TELEGRAM_WEBHOOK_SECRET"`
		Domain        string        `env:"DOMAIN" envDefault:"localhost"`
		SSLPort       int           `env:"SSL_PORT" envDefault:"443"`
		InitDataTTL   time.Duration `env:"INIT_DATA_TTL" envDefault:"24h"`
		Egress        string        `env:"TELEGRAM_EGRESS" envDefault:"inline"`
		SendTimeout   time.Duration `env:"TELEGRAM_SEND_TIMEOUT" envDefault:"10s"`
	}

	Realtime struct {
		SendBuffer int `env:"WS_SEND_BUFFER" envDefault:"128"`
	}
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	// A missing .env is normal in production where variables are set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Telegram.Mode {
	case TelegramModeWebhook:
		// Without a secret anyone can post updates as any Telegram user.
		if c.TelegramEnabled() && c.Telegram.WebhookSecret == "" {
			return fmt.Errorf("TELEGRAM_WEBHOOK_SECRET is required when TELEGRAM_MODE=%s", TelegramModeWebhook)
		}
	case TelegramModePolling:
	default:
		return fmt.Errorf("unsupported TELEGRAM_MODE %q", c.Telegram.Mode)
	}

	switch c.Telegram.Egress {
	case EgressInline:
	case EgressStream:
		if c.Redis.URL == "" {
			return fmt.Errorf("TELEGRAM_EGRESS=%s requires REDIS_URL", EgressStream)
		}
	default:
		return fmt.Errorf("unsupported TELEGRAM_EGRESS %q", c.Telegram.Egress)
	}

	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// TelegramEnabled reports whether a bot token is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != ""
}

// PublicBaseURL is the externally reachable origin used in hand-off links and
// webhook registration.
func (c *Config) PublicBaseURL() string {
	return fmt.Sprintf("https://%s:%d", c.Telegram.Domain, c.Telegram.SSLPort)
}

// WebhookURL is the address registered with Telegram in webhook mode.
func (c *Config) WebhookURL() string {
	return c.PublicBaseURL() + "/api/telegram-webhook"
}
