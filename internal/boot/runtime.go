// Package boot turns the loaded configuration into the typed runtime
// settings the services are built from.
package boot

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/unifiedinbox/inbox/internal/config"
)

// RuntimeConfig holds parsed runtime settings. Values may be overridden by
// environment variables (HTTP_ADDR, PUBLIC_BASE_URL, JWT_SECRET).
type RuntimeConfig struct {
	JwtSecret     string
	JwtExpiresIn  time.Duration
	ServerAddr    string
	PublicBaseURL string

	OutboundTimeout  time.Duration
	RetryInitial     time.Duration
	WebhookTolerance time.Duration

	PollInterval      time.Duration
	ClaimLease        time.Duration
	SchedulerLocation *time.Location

	TypingWindow time.Duration
	TypingSweep  time.Duration
	Heartbeat    time.Duration
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	ret := &RuntimeConfig{
		JwtSecret:     cfg.Auth.JWTSecret,
		ServerAddr:    cfg.Server.Addr,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	}
	if value := os.Getenv("HTTP_ADDR"); value != "" {
		ret.ServerAddr = value
	}
	if value := os.Getenv("PUBLIC_BASE_URL"); value != "" {
		ret.PublicBaseURL = value
	}
	if value := os.Getenv("JWT_SECRET"); value != "" {
		ret.JwtSecret = value
	}
	if strings.TrimSpace(ret.JwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	ret.PublicBaseURL = strings.TrimRight(strings.TrimSpace(ret.PublicBaseURL), "/")

	durations := []struct {
		name  string
		raw   string
		value *time.Duration
	}{
		{"auth.jwt_expires_in", cfg.Auth.JWTExpiresIn, &ret.JwtExpiresIn},
		{"outbound.timeout", cfg.Outbound.Timeout, &ret.OutboundTimeout},
		{"outbound.retry_initial", cfg.Outbound.RetryInitial, &ret.RetryInitial},
		{"email.webhook_tolerance", cfg.Email.WebhookTolerance, &ret.WebhookTolerance},
		{"scheduler.poll_interval", cfg.Scheduler.PollInterval, &ret.PollInterval},
		{"scheduler.claim_lease", cfg.Scheduler.ClaimLease, &ret.ClaimLease},
		{"typing.window", cfg.Typing.Window, &ret.TypingWindow},
		{"typing.sweep_interval", cfg.Typing.SweepInterval, &ret.TypingSweep},
		{"events.heartbeat", cfg.Events.Heartbeat, &ret.Heartbeat},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", d.name)
		}
		*d.value = parsed
	}

	loc, err := time.LoadLocation(strings.TrimSpace(cfg.Scheduler.Timezone))
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.timezone: %w", err)
	}
	ret.SchedulerLocation = loc
	return ret, nil
}
