package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const (
	// NotifyChannel is the Postgres channel events are relayed on.
	NotifyChannel = "inbox_events"

	// Postgres rejects NOTIFY payloads of 8000 bytes or more.
	maxNotifyPayload = 7900
	relayQueueSize   = 256
)

type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Relay extends a Hub across server instances with LISTEN/NOTIFY. Local
// subscribers are served straight from the hub; every locally published
// event is also sent to Postgres, and events from other instances are
// republished into the hub.
type Relay struct {
	hub        *Hub
	pool       *pgxpool.Pool
	instanceID string
	queue      chan Event
	logger     *slog.Logger
}

func NewRelay(log *slog.Logger, hub *Hub, pool *pgxpool.Pool) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		hub:        hub,
		pool:       pool,
		instanceID: uuid.NewString(),
		queue:      make(chan Event, relayQueueSize),
		logger:     log.With(slog.String("component", "event_relay")),
	}
}

// Publish delivers locally and queues the event for other instances. It
// never blocks; when the queue is full the remote copy is dropped.
func (r *Relay) Publish(topic string, event Event) {
	event.Topic = topic
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	r.hub.Publish(topic, event)
	select {
	case r.queue <- event:
	default:
		r.logger.Warn("relay queue full, event not forwarded", slog.String("topic", topic))
	}
}

func (r *Relay) Subscribe(topic string, buffer int) (string, <-chan Event, func()) {
	return r.hub.Subscribe(topic, buffer)
}

// Run forwards and receives events until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.forward(ctx) })
	g.Go(func() error { return r.listen(ctx) })
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Relay) forward(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.queue:
			payload, err := json.Marshal(envelope{Origin: r.instanceID, Event: ev})
			if err != nil {
				r.logger.Warn("encode relayed event", slog.Any("error", err))
				continue
			}
			if len(payload) > maxNotifyPayload {
				r.logger.Warn("event too large to relay", slog.String("topic", ev.Topic), slog.Int("bytes", len(payload)))
				continue
			}
			if _, err := r.pool.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(payload)); err != nil && ctx.Err() == nil {
				r.logger.Warn("notify failed", slog.String("topic", ev.Topic), slog.Any("error", err))
			}
		}
	}
}

// listen holds one dedicated connection in LISTEN mode and reconnects with
// exponential backoff when it drops.
func (r *Relay) listen(ctx context.Context) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := r.listenOnce(ctx)
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("listener disconnected", slog.Any("error", err), slog.Duration("retry_in", next))
		}),
	)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Relay) listenOnce(ctx context.Context) error {
	pooled, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// The connection stays in LISTEN mode, so it must never go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return err
	}
	r.logger.Info("listening for relayed events", slog.String("instance_id", r.instanceID))
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		r.deliver([]byte(n.Payload))
	}
}

func (r *Relay) deliver(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		r.logger.Warn("decode relayed event", slog.Any("error", err))
		return
	}
	if env.Origin == r.instanceID {
		return
	}
	if env.Event.Topic == "" {
		r.logger.Warn("relayed event without topic")
		return
	}
	r.hub.Publish(env.Event.Topic, env.Event)
}
