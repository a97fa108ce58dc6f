package modules

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/unifiedinbox/inbox/internal/boot"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/channel/adapters/email"
	"github.com/unifiedinbox/inbox/internal/channel/adapters/twilio"
	"github.com/unifiedinbox/inbox/internal/config"
	"github.com/unifiedinbox/inbox/internal/message/event"
)

var ChannelModule = fx.Module(
	"channel",
	fx.Provide(
		provideNormalizer,
		provideTwilioAdapter,
		provideEmailAdapter,
		provideChannelRegistry,
		provideOutbound,
		provideEventBus,
	),
)

// ---------------------------------------------------------------------------
// channel adapters
// ---------------------------------------------------------------------------

func provideNormalizer(cfg config.Config) channel.AddressNormalizer {
	return channel.AddressNormalizer{DefaultCountryCode: cfg.Phone.DefaultCountryCode}
}

func provideTwilioAdapter(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) *twilio.Adapter {
	return twilio.NewAdapter(log, twilio.Config{
		AccountSID:        cfg.Twilio.AccountSID,
		AuthToken:         cfg.Twilio.AuthToken,
		FromNumber:        cfg.Twilio.FromNumber,
		WhatsAppFrom:      cfg.Twilio.WhatsAppFrom,
		APIBaseURL:        cfg.Twilio.APIBaseURL,
		PublicBaseURL:     rc.PublicBaseURL,
		ValidateSignature: cfg.Twilio.ValidateSignature,
	}, &http.Client{Timeout: rc.OutboundTimeout})
}

func provideEmailAdapter(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (*email.Adapter, error) {
	adapter, err := email.NewAdapter(log, email.Config{
		SMTPHost:          cfg.Email.SMTPHost,
		SMTPPort:          cfg.Email.SMTPPort,
		Username:          cfg.Email.Username,
		Password:          cfg.Email.Password,
		From:              cfg.Email.From,
		TLSPolicy:         cfg.Email.TLSPolicy,
		WebhookSigningKey: cfg.Email.WebhookSigningKey,
		WebhookTolerance:  rc.WebhookTolerance,
	})
	if err != nil {
		return nil, fmt.Errorf("email adapter: %w", err)
	}
	return adapter, nil
}

func provideChannelRegistry(tw *twilio.Adapter, mail *email.Adapter) *channel.Registry {
	registry := channel.NewRegistry()
	registry.MustRegister(tw, channel.SMS, channel.WhatsApp)
	registry.MustRegister(mail, channel.Email)
	return registry
}

func provideOutbound(log *slog.Logger, registry *channel.Registry, cfg config.Config, rc *boot.RuntimeConfig) *channel.Outbound {
	return channel.NewOutbound(log, registry, channel.OutboundPolicy{
		Timeout:      rc.OutboundTimeout,
		RetryMax:     cfg.Outbound.RetryMax,
		RetryInitial: rc.RetryInitial,
		RatePerSecond: map[channel.Type]float64{
			channel.SMS:      cfg.Twilio.RatePerSecond,
			channel.WhatsApp: cfg.Twilio.RatePerSecond,
			channel.Email:    cfg.Email.RatePerSecond,
		},
	})
}

// ---------------------------------------------------------------------------
// event bus
// ---------------------------------------------------------------------------

type eventBusResult struct {
	fx.Out

	Hub        *event.Hub
	Publisher  event.Publisher
	Subscriber event.Subscriber
}

// provideEventBus serves subscribers from the in-process hub. With the
// postgres backend, events are also relayed to other instances.
func provideEventBus(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, pool *pgxpool.Pool) (eventBusResult, error) {
	hub := event.NewHub(log)
	switch cfg.Events.Backend {
	case "", "memory":
		return eventBusResult{Hub: hub, Publisher: hub, Subscriber: hub}, nil
	case "postgres":
	default:
		return eventBusResult{}, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}

	relay := event.NewRelay(log, hub, pool)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := relay.Run(runCtx); err != nil {
					log.Error("event relay stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return eventBusResult{Hub: hub, Publisher: relay, Subscriber: relay}, nil
}
