package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/db"
	"github.com/unifiedinbox/inbox/internal/db/sqlc"
	"github.com/unifiedinbox/inbox/internal/inbox"
	"github.com/unifiedinbox/inbox/internal/message"
)

const unknownOutcome = "dispatch interrupted; delivery outcome unknown"

// Sender runs one occurrence through the outbound path.
type Sender interface {
	Send(ctx context.Context, req inbox.SendRequest) (message.Message, error)
}

// Messages looks up what an earlier claim of an occurrence produced.
type Messages interface {
	GetByOccurrence(ctx context.Context, scheduledSendID string, occurrence time.Time) (message.Message, error)
	Transition(ctx context.Context, messageID string, to message.Status, providerMessageID, errMsg string) (message.Message, bool, error)
}

type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	ClaimLease   time.Duration
	Concurrency  int
	Location     *time.Location
}

// Dispatcher claims due scheduled sends and runs them through the outbound
// path. Any number of dispatchers may share one database: a claim is an
// atomic status change, and every later write is guarded by the claim token.
type Dispatcher struct {
	queries  Queries
	sender   Sender
	messages Messages
	cfg      DispatcherConfig
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	cancel   context.CancelFunc
	stopping chan struct{}
}

func NewDispatcher(log *slog.Logger, queries Queries, sender Sender, messages Messages, cfg DispatcherConfig) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Dispatcher{
		queries:  queries,
		sender:   sender,
		messages: messages,
		cfg:      cfg,
		now:      time.Now,
		logger:   log.With(slog.String("component", "schedule_dispatcher")),
	}
}

// Start registers the poll entry and starts the cron scheduler.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	logger := cronLogger{d.logger}
	c := cron.New(
		cron.WithLocation(d.cfg.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	spec := fmt.Sprintf("@every %s", d.cfg.PollInterval)
	if _, err := c.AddFunc(spec, func() {
		if _, err := d.Tick(runCtx); err != nil {
			d.logger.Error("dispatch tick failed", slog.Any("error", err))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("register dispatch tick: %w", err)
	}
	d.stopping = make(chan struct{})
	c.Start()
	d.cron = c
	d.cancel = cancel
	d.logger.Info("dispatcher started", slog.Duration("poll_interval", d.cfg.PollInterval))
	return nil
}

// Stop ends polling. Sends already in flight finish; claimed entries not yet
// started are released to PENDING. When ctx is done first, in-flight sends
// are cancelled and their entries released.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	c, cancel, stopping := d.cron, d.cancel, d.stopping
	d.cron, d.cancel = nil, nil
	d.mu.Unlock()
	if c == nil {
		return nil
	}
	close(stopping)
	done := c.Stop().Done()
	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

func (d *Dispatcher) isStopping() bool {
	d.mu.Lock()
	stopping := d.stopping
	d.mu.Unlock()
	if stopping == nil {
		return false
	}
	select {
	case <-stopping:
		return true
	default:
		return false
	}
}

// Tick recovers stale claims, then claims and dispatches due entries. It
// returns the number of entries dispatched.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	if err := d.recoverStale(ctx); err != nil {
		d.logger.Warn("stale claim recovery failed", slog.Any("error", err))
	}

	token := db.NewUUID()
	claimed, err := d.queries.ClaimDueScheduledSends(ctx, sqlc.ClaimDueScheduledSendsParams{
		ClaimToken: token,
		Now:        db.Timestamptz(d.now()),
		Batch:      int32(d.cfg.BatchSize),
	})
	if err != nil {
		return 0, apperr.Store("claim scheduled sends", "scheduled send", err)
	}
	if len(claimed) == 0 {
		return 0, nil
	}
	d.logger.Info("claimed scheduled sends", slog.Int("count", len(claimed)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, row := range claimed {
		g.Go(func() error {
			if d.isStopping() {
				d.release(context.WithoutCancel(gctx), row, token, "dispatcher stopping")
				return nil
			}
			d.dispatch(gctx, token, row)
			return nil
		})
	}
	_ = g.Wait()
	return len(claimed), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, token pgtype.UUID, row sqlc.ScheduledSend) {
	id := db.UUIDString(row.ID)
	occurrence := db.TimeFromPg(row.ScheduledFor)
	msg, err := d.sender.Send(ctx, inbox.SendRequest{
		ContactID:       db.UUIDString(row.ContactID),
		Channel:         channel.Type(row.Channel),
		Content:         row.Content,
		MediaRefs:       row.MediaRefs,
		SenderID:        row.CreatedBy,
		ScheduledSendID: id,
		Occurrence:      occurrence,
		Attempts:        1,
	})
	settleCtx := context.WithoutCancel(ctx)
	if err != nil {
		d.settleRejected(settleCtx, row, token, occurrence, err, ctx.Err() != nil)
		return
	}
	d.finalize(settleCtx, row, token, msg)
}

// settleRejected handles a Send that returned an error. The entry is settled
// from the occurrence's message when one was written. Without a message, an
// interrupted or store-failed send goes back to PENDING; any other error
// fails the entry.
func (d *Dispatcher) settleRejected(ctx context.Context, row sqlc.ScheduledSend, token pgtype.UUID, occurrence time.Time, sendErr error, cancelled bool) {
	id := db.UUIDString(row.ID)
	msg, err := d.messages.GetByOccurrence(ctx, id, occurrence)
	switch {
	case err == nil:
		d.finalize(ctx, row, token, msg)
	case !apperr.Is(err, apperr.KindNotFound):
		// Left claimed; stale recovery settles it once the lease expires.
		d.logger.Warn("occurrence lookup failed after rejected send",
			slog.String("id", id), slog.Any("send_error", sendErr), slog.Any("error", err))
	case cancelled || apperr.Is(sendErr, apperr.KindTransientStore):
		d.release(ctx, row, token, sendErr.Error())
	default:
		d.logger.Warn("scheduled send rejected", slog.String("id", id), slog.Any("error", sendErr))
		d.fail(ctx, row, token, sendErr.Error(), pgtype.UUID{})
	}
}

func (d *Dispatcher) release(ctx context.Context, row sqlc.ScheduledSend, token pgtype.UUID, reason string) {
	id := db.UUIDString(row.ID)
	_, err := d.queries.ReleaseScheduledSend(ctx, sqlc.ReleaseScheduledSendParams{ID: row.ID, ClaimToken: token})
	d.settled(id, "released", err)
	if err == nil {
		d.logger.Debug("scheduled send returned to queue", slog.String("id", id), slog.String("reason", reason))
	}
}

// finalize settles a claimed entry from the status of the message its
// occurrence produced.
func (d *Dispatcher) finalize(ctx context.Context, row sqlc.ScheduledSend, token pgtype.UUID, msg message.Message) {
	id := db.UUIDString(row.ID)
	msgID, _ := db.ParseUUID(msg.ID)
	switch msg.Status {
	case message.StatusFailed:
		d.fail(ctx, row, token, msg.Error, msgID)
		return
	case message.StatusPending:
		if _, _, err := d.messages.Transition(ctx, msg.ID, message.StatusFailed, "", unknownOutcome); err != nil {
			d.logger.Warn("mark interrupted message failed", slog.String("message_id", msg.ID), slog.Any("error", err))
		}
		d.fail(ctx, row, token, unknownOutcome, msgID)
		return
	}

	days := weekdays(row.RecurringDays)
	if len(days) == 0 {
		_, err := d.queries.CompleteScheduledSend(ctx, sqlc.CompleteScheduledSendParams{
			ID: row.ID, ClaimToken: token, LastMessageID: msgID,
		})
		d.settled(id, "sent", err)
		return
	}
	next := d.nextAfterNow(db.TimeFromPg(row.ScheduledFor), days)
	_, err := d.queries.RescheduleScheduledSend(ctx, sqlc.RescheduleScheduledSendParams{
		ID: row.ID, ClaimToken: token, ScheduledFor: db.Timestamptz(next), LastMessageID: msgID,
	})
	d.settled(id, "rescheduled", err)
	if err == nil {
		d.logger.Info("recurring send rescheduled", slog.String("id", id), slog.Time("next", next))
	}
}

func (d *Dispatcher) fail(ctx context.Context, row sqlc.ScheduledSend, token pgtype.UUID, reason string, msgID pgtype.UUID) {
	_, err := d.queries.FailScheduledSend(ctx, sqlc.FailScheduledSendParams{
		ID: row.ID, ClaimToken: token, LastError: db.Text(reason), LastMessageID: msgID,
	})
	d.settled(db.UUIDString(row.ID), "failed", err)
}

func (d *Dispatcher) settled(id, outcome string, err error) {
	if err == nil {
		d.logger.Info("scheduled send settled", slog.String("id", id), slog.String("outcome", outcome))
		return
	}
	// A guarded update that matches nothing means the claim was taken over.
	if errors.Is(err, pgx.ErrNoRows) {
		d.logger.Warn("claim lost before settling", slog.String("id", id), slog.String("outcome", outcome))
		return
	}
	d.logger.Error("settle scheduled send", slog.String("id", id), slog.String("outcome", outcome), slog.Any("error", err))
}

// nextAfterNow advances a recurring entry to its first occurrence after now.
// Occurrences missed while no dispatcher ran are skipped.
func (d *Dispatcher) nextAfterNow(from time.Time, days []time.Weekday) time.Time {
	now := d.now()
	next := NextOccurrence(from, days, d.cfg.Location)
	for !next.After(now) {
		next = NextOccurrence(next, days, d.cfg.Location)
	}
	return next
}

// recoverStale settles claims older than the lease, left behind by a
// dispatcher that stopped mid-dispatch.
func (d *Dispatcher) recoverStale(ctx context.Context) error {
	rows, err := d.queries.ListStaleClaims(ctx, sqlc.ListStaleClaimsParams{
		ClaimedAt: db.Timestamptz(d.now().Add(-d.cfg.ClaimLease)),
		Limit:     int32(d.cfg.BatchSize),
	})
	if err != nil {
		return apperr.Store("list stale claims", "scheduled send", err)
	}
	for _, row := range rows {
		id := db.UUIDString(row.ID)
		msg, err := d.messages.GetByOccurrence(ctx, id, db.TimeFromPg(row.ScheduledFor))
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			// Nothing was sent: hand the occurrence back to the queue.
			d.release(ctx, row, row.ClaimToken, "stale claim")
		case err != nil:
			d.logger.Warn("stale claim lookup failed", slog.String("id", id), slog.Any("error", err))
		default:
			d.logger.Warn("recovering stale claim", slog.String("id", id), slog.String("message_status", string(msg.Status)))
			d.finalize(ctx, row, row.ClaimToken, msg)
		}
	}
	return nil
}

// NextOccurrence returns the first instant strictly after from, within
// from+1d to from+7d, whose weekday in loc is one of days. The wall-clock
// time of day in loc is preserved. With no days it returns the zero time.
func NextOccurrence(from time.Time, days []time.Weekday, loc *time.Location) time.Time {
	if len(days) == 0 {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	local := from.In(loc)
	y, m, dd := local.Date()
	h, mi, s := local.Clock()
	for i := 1; i <= 7; i++ {
		candidate := time.Date(y, m, dd+i, h, mi, s, local.Nanosecond(), loc)
		if slices.Contains(days, candidate.Weekday()) {
			return candidate
		}
	}
	return time.Time{}
}

// cronLogger routes robfig/cron logs into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
