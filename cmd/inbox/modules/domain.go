package modules

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/unifiedinbox/inbox/internal/boot"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/config"
	"github.com/unifiedinbox/inbox/internal/contacts"
	dbsqlc "github.com/unifiedinbox/inbox/internal/db/sqlc"
	"github.com/unifiedinbox/inbox/internal/history"
	"github.com/unifiedinbox/inbox/internal/inbox"
	"github.com/unifiedinbox/inbox/internal/message"
	"github.com/unifiedinbox/inbox/internal/message/event"
	"github.com/unifiedinbox/inbox/internal/notes"
	"github.com/unifiedinbox/inbox/internal/schedule"
	"github.com/unifiedinbox/inbox/internal/typing"
)

var DomainModule = fx.Module(
	"domain",
	fx.Provide(
		provideMessageStore,
		provideResolver,
		provideContactsService,
		provideNotesService,
		provideHistoryService,
		provideEngine,
		provideTypingCoordinator,
		provideScheduleService,
		provideDispatcher,
	),
	fx.Invoke(
		startTypingSweep,
		startDispatcher,
	),
)

// ---------------------------------------------------------------------------
// domain services
// ---------------------------------------------------------------------------

func provideMessageStore(log *slog.Logger, queries *dbsqlc.Queries) *message.DBService {
	return message.NewService(log, queries)
}

func provideResolver(log *slog.Logger, queries *dbsqlc.Queries, normalizer channel.AddressNormalizer) *contacts.Resolver {
	return contacts.NewResolver(log, queries, normalizer)
}

func provideContactsService(log *slog.Logger, queries *dbsqlc.Queries, pool *pgxpool.Pool, normalizer channel.AddressNormalizer) *contacts.Service {
	return contacts.NewService(log, queries, pool, normalizer)
}

func provideNotesService(log *slog.Logger, queries *dbsqlc.Queries, publisher event.Publisher) *notes.Service {
	return notes.NewService(log, queries, publisher)
}

func provideHistoryService(log *slog.Logger, messages *message.DBService, noteService *notes.Service) *history.Service {
	return history.NewService(log, messages, noteService)
}

func provideEngine(log *slog.Logger, resolver *contacts.Resolver, contactService *contacts.Service, store *message.DBService, outbound *channel.Outbound, publisher event.Publisher) *inbox.Engine {
	return inbox.NewEngine(log, resolver, contactService, store, outbound, publisher)
}

func provideTypingCoordinator(log *slog.Logger, publisher event.Publisher, rc *boot.RuntimeConfig) *typing.Coordinator {
	return typing.NewCoordinator(log, publisher, rc.TypingWindow, rc.TypingSweep)
}

func provideScheduleService(log *slog.Logger, queries *dbsqlc.Queries) *schedule.Service {
	return schedule.NewService(log, queries)
}

func provideDispatcher(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig, queries *dbsqlc.Queries, engine *inbox.Engine, store *message.DBService) *schedule.Dispatcher {
	return schedule.NewDispatcher(log, queries, engine, store, schedule.DispatcherConfig{
		PollInterval: rc.PollInterval,
		BatchSize:    cfg.Scheduler.BatchSize,
		ClaimLease:   rc.ClaimLease,
		Concurrency:  cfg.Scheduler.Concurrency,
		Location:     rc.SchedulerLocation,
	})
}

// ---------------------------------------------------------------------------
// background loops
// ---------------------------------------------------------------------------

func startTypingSweep(lc fx.Lifecycle, coordinator *typing.Coordinator) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				coordinator.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func startDispatcher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, dispatcher *schedule.Dispatcher) {
	if !cfg.Scheduler.Enabled {
		log.Info("scheduled send dispatch disabled on this instance")
		return
	}
	lc.Append(fx.Hook{
		OnStart: dispatcher.Start,
		OnStop:  dispatcher.Stop,
	})
}
