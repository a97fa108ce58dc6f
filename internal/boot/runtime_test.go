package boot

import (
	"testing"
	"time"

	"github.com/unifiedinbox/inbox/internal/config"
)

func TestProvideRuntimeConfigDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	rc, err := ProvideRuntimeConfig(cfg)
	if err != nil {
		t.Fatalf("ProvideRuntimeConfig: %v", err)
	}
	if rc.TypingWindow != 2*time.Second {
		t.Fatalf("typing window = %s", rc.TypingWindow)
	}
	if rc.PollInterval != 30*time.Second || rc.ClaimLease != 5*time.Minute {
		t.Fatalf("scheduler durations = %s, %s", rc.PollInterval, rc.ClaimLease)
	}
	if rc.OutboundTimeout != 10*time.Second {
		t.Fatalf("outbound timeout = %s", rc.OutboundTimeout)
	}
	if rc.SchedulerLocation != time.UTC {
		t.Fatalf("location = %s", rc.SchedulerLocation)
	}
}

func TestProvideRuntimeConfigEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("PUBLIC_BASE_URL", "https://inbox.example.com/")
	t.Setenv("JWT_SECRET", "from-env")
	rc, err := ProvideRuntimeConfig(config.Default())
	if err != nil {
		t.Fatalf("ProvideRuntimeConfig: %v", err)
	}
	if rc.ServerAddr != ":9999" || rc.JwtSecret != "from-env" {
		t.Fatalf("overrides not applied: %+v", rc)
	}
	if rc.PublicBaseURL != "https://inbox.example.com" {
		t.Fatalf("public base url = %q", rc.PublicBaseURL)
	}
}

func TestProvideRuntimeConfigRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	cfg := config.Default()
	cfg.Auth.JWTSecret = ""
	if _, err := ProvideRuntimeConfig(cfg); err == nil {
		t.Fatal("expected error for missing secret")
	}

	cfg.Auth.JWTSecret = "secret"
	cfg.Typing.Window = "soon"
	if _, err := ProvideRuntimeConfig(cfg); err == nil {
		t.Fatal("expected error for bad duration")
	}

	cfg = config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Scheduler.Timezone = "Mars/Olympus"
	if _, err := ProvideRuntimeConfig(cfg); err == nil {
		t.Fatal("expected error for bad timezone")
	}
}
