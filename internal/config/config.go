// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultJWTExpiresIn      = "24h"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "inbox"
	DefaultPGSSLMode         = "disable"
	DefaultTwilioAPIBaseURL  = "https://api.twilio.com"
	DefaultCountryCode       = "1"
	DefaultOutboundTimeout   = "10s"
	DefaultOutboundRetryMax  = 3
	DefaultRetryInitial      = "500ms"
	DefaultPollInterval      = "30s"
	DefaultBatchSize         = 50
	DefaultClaimLease        = "5m"
	DefaultDispatchWorkers   = 4
	DefaultTypingWindow      = "2s"
	DefaultTypingSweep       = "500ms"
	DefaultEventsBackend     = "memory"
	DefaultEventBuffer       = 64
	DefaultHeartbeat         = "20s"
	DefaultWebhookTolerance  = "5m"
	DefaultSMTPPort          = 587
	DefaultEmailTLSPolicy    = "mandatory"
	DefaultTwilioRatePerSec  = 1.0
	DefaultEmailRatePerSec   = 5.0
	DefaultSchedulerTimezone = "UTC"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Twilio    TwilioConfig    `toml:"twilio"`
	Email     EmailConfig     `toml:"email"`
	Phone     PhoneConfig     `toml:"phone"`
	Outbound  OutboundConfig  `toml:"outbound"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Typing    TypingConfig    `toml:"typing"`
	Events    EventsConfig    `toml:"events"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address and the public base URL
// that providers use to reach the webhooks.
type ServerConfig struct {
	Addr          string `toml:"addr"`
	PublicBaseURL string `toml:"public_base_url"`
}

// AuthConfig holds JWT secret and token expiry (e.g. 24h).
type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// TwilioConfig configures the SMS and WhatsApp adapter.
type TwilioConfig struct {
	AccountSID        string  `toml:"account_sid"`
	AuthToken         string  `toml:"auth_token"`
	FromNumber        string  `toml:"from_number"`
	WhatsAppFrom      string  `toml:"whatsapp_from"`
	APIBaseURL        string  `toml:"api_base_url"`
	ValidateSignature bool    `toml:"validate_signature"`
	RatePerSecond     float64 `toml:"rate_per_second"`
}

// EmailConfig configures SMTP delivery and the inbound email webhook.
type EmailConfig struct {
	SMTPHost          string  `toml:"smtp_host"`
	SMTPPort          int     `toml:"smtp_port"`
	Username          string  `toml:"username"`
	Password          string  `toml:"password"`
	From              string  `toml:"from"`
	TLSPolicy         string  `toml:"tls_policy"`
	WebhookSigningKey string  `toml:"webhook_signing_key"`
	WebhookTolerance  string  `toml:"webhook_tolerance"`
	RatePerSecond     float64 `toml:"rate_per_second"`
}

// PhoneConfig holds phone number normalization settings.
type PhoneConfig struct {
	DefaultCountryCode string `toml:"default_country_code"`
}

// OutboundConfig bounds provider calls made on the interactive send path.
type OutboundConfig struct {
	Timeout      string `toml:"timeout"`
	RetryMax     int    `toml:"retry_max"`
	RetryInitial string `toml:"retry_initial"`
}

// SchedulerConfig controls the scheduled-send dispatch loop.
type SchedulerConfig struct {
	Enabled      bool   `toml:"enabled"`
	PollInterval string `toml:"poll_interval"`
	BatchSize    int    `toml:"batch_size"`
	ClaimLease   string `toml:"claim_lease"`
	Concurrency  int    `toml:"concurrency"`
	Timezone     string `toml:"timezone"`
}

// TypingConfig holds the typing debounce window and sweep cadence.
type TypingConfig struct {
	Window        string `toml:"window"`
	SweepInterval string `toml:"sweep_interval"`
}

// EventsConfig selects the event bus backend ("memory" or "postgres").
type EventsConfig struct {
	Backend   string `toml:"backend"`
	Buffer    int    `toml:"buffer"`
	Heartbeat string `toml:"heartbeat"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Twilio: TwilioConfig{
			APIBaseURL:        DefaultTwilioAPIBaseURL,
			ValidateSignature: true,
			RatePerSecond:     DefaultTwilioRatePerSec,
		},
		Email: EmailConfig{
			SMTPPort:         DefaultSMTPPort,
			TLSPolicy:        DefaultEmailTLSPolicy,
			WebhookTolerance: DefaultWebhookTolerance,
			RatePerSecond:    DefaultEmailRatePerSec,
		},
		Phone: PhoneConfig{
			DefaultCountryCode: DefaultCountryCode,
		},
		Outbound: OutboundConfig{
			Timeout:      DefaultOutboundTimeout,
			RetryMax:     DefaultOutboundRetryMax,
			RetryInitial: DefaultRetryInitial,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			PollInterval: DefaultPollInterval,
			BatchSize:    DefaultBatchSize,
			ClaimLease:   DefaultClaimLease,
			Concurrency:  DefaultDispatchWorkers,
			Timezone:     DefaultSchedulerTimezone,
		},
		Typing: TypingConfig{
			Window:        DefaultTypingWindow,
			SweepInterval: DefaultTypingSweep,
		},
		Events: EventsConfig{
			Backend:   DefaultEventsBackend,
			Buffer:    DefaultEventBuffer,
			Heartbeat: DefaultHeartbeat,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
