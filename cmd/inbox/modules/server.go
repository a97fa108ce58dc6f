package modules

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/unifiedinbox/inbox/internal/boot"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/channel/adapters/email"
	"github.com/unifiedinbox/inbox/internal/channel/adapters/twilio"
	"github.com/unifiedinbox/inbox/internal/config"
	"github.com/unifiedinbox/inbox/internal/contacts"
	"github.com/unifiedinbox/inbox/internal/handlers"
	"github.com/unifiedinbox/inbox/internal/history"
	"github.com/unifiedinbox/inbox/internal/inbox"
	"github.com/unifiedinbox/inbox/internal/message"
	"github.com/unifiedinbox/inbox/internal/message/event"
	"github.com/unifiedinbox/inbox/internal/notes"
	"github.com/unifiedinbox/inbox/internal/schedule"
	"github.com/unifiedinbox/inbox/internal/server"
	"github.com/unifiedinbox/inbox/internal/typing"
	"github.com/unifiedinbox/inbox/internal/version"
)

var ServerModule = fx.Module(
	"server",
	fx.Provide(
		provideServerHandler(handlers.NewPingHandler),
		provideServerHandler(handlers.NewSwaggerHandler),
		provideServerHandler(provideWebhookHandler),
		provideServerHandler(provideMessageHandler),
		provideServerHandler(provideStreamHandler),
		provideServerHandler(provideTypingHandler),
		provideServerHandler(provideNoteHandler),
		provideServerHandler(provideContactsHandler),
		provideServerHandler(provideScheduleHandler),
		provideServer,
	),
	fx.Invoke(startServer),
)

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

// ---------------------------------------------------------------------------
// handlers
// ---------------------------------------------------------------------------

func provideWebhookHandler(log *slog.Logger, cfg config.Config, tw *twilio.Adapter, mail *email.Adapter, engine *inbox.Engine) *handlers.WebhookHandler {
	// Without a signing key the email webhook answers 404.
	var verifier channel.InboundVerifier
	if cfg.Email.WebhookSigningKey != "" {
		verifier = mail
	}
	return handlers.NewWebhookHandler(log, tw, verifier, engine)
}

func provideMessageHandler(log *slog.Logger, engine *inbox.Engine, store *message.DBService) *handlers.MessageHandler {
	return handlers.NewMessageHandler(log, engine, store)
}

func provideStreamHandler(log *slog.Logger, subscriber event.Subscriber, cfg config.Config, rc *boot.RuntimeConfig) *handlers.StreamHandler {
	return handlers.NewStreamHandler(log, subscriber, cfg.Events.Buffer, rc.Heartbeat)
}

func provideTypingHandler(log *slog.Logger, coordinator *typing.Coordinator) *handlers.TypingHandler {
	return handlers.NewTypingHandler(log, coordinator)
}

func provideNoteHandler(log *slog.Logger, service *notes.Service) *handlers.NoteHandler {
	return handlers.NewNoteHandler(log, service)
}

func provideContactsHandler(log *slog.Logger, service *contacts.Service, historyService *history.Service) *handlers.ContactsHandler {
	return handlers.NewContactsHandler(log, service, historyService)
}

func provideScheduleHandler(log *slog.Logger, service *schedule.Service) *handlers.ScheduleHandler {
	return handlers.NewScheduleHandler(log, service)
}

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.RuntimeConfig.ServerAddr, params.RuntimeConfig.JwtSecret, params.ServerHandlers...)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, rc *boot.RuntimeConfig) {
	logger.Info("starting inbox", slog.String("version", version.GetInfo()), slog.String("addr", rc.ServerAddr))
	if rc.PublicBaseURL == "" {
		logger.Warn("server.public_base_url is not set; twilio signatures are checked against the request host")
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil { // blocks until the server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Stop(stopCtx)
		},
	})
}
