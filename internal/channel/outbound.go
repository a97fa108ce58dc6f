package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

// OutboundPolicy bounds how hard the engine pushes a provider.
type OutboundPolicy struct {
	Timeout      time.Duration
	RetryMax     int
	RetryInitial time.Duration
	// RatePerSecond throttles sends per channel type; zero disables throttling.
	RatePerSecond map[Type]float64
}

// NormalizeOutboundPolicy fills zero fields with defaults.
func NormalizeOutboundPolicy(policy OutboundPolicy) OutboundPolicy {
	if policy.Timeout <= 0 {
		policy.Timeout = 10 * time.Second
	}
	if policy.RetryMax <= 0 {
		policy.RetryMax = 3
	}
	if policy.RetryInitial <= 0 {
		policy.RetryInitial = 500 * time.Millisecond
	}
	return policy
}

// Outbound sends through the registry with per-attempt timeouts, client-side
// rate limiting, and exponential backoff on retryable failures.
type Outbound struct {
	registry *Registry
	policy   OutboundPolicy
	logger   *slog.Logger

	mu       sync.Mutex
	limiters map[Type]*rate.Limiter
}

// NewOutbound creates an Outbound over registry.
func NewOutbound(log *slog.Logger, registry *Registry, policy OutboundPolicy) *Outbound {
	if log == nil {
		log = slog.Default()
	}
	return &Outbound{
		registry: registry,
		policy:   NormalizeOutboundPolicy(policy),
		logger:   log.With(slog.String("service", "outbound")),
		limiters: map[Type]*rate.Limiter{},
	}
}

// SendOption adjusts a single Send call.
type SendOption func(*sendOptions)

type sendOptions struct {
	attempts int
}

// WithAttempts overrides the attempt budget; 1 disables retries.
func WithAttempts(n int) SendOption {
	return func(o *sendOptions) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// Send delivers msg. The returned error is always a *SendError.
func (o *Outbound) Send(ctx context.Context, msg OutboundMessage, opts ...SendOption) (Receipt, error) {
	options := sendOptions{attempts: o.policy.RetryMax}
	for _, opt := range opts {
		opt(&options)
	}

	sender, ok := o.registry.Sender(msg.Channel)
	if !ok {
		return Receipt{}, &SendError{Kind: ProviderUnavailable, Message: fmt.Sprintf("no adapter for channel %s", msg.Channel)}
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = o.policy.RetryInitial

	attempt := 0
	receipt, err := backoff.Retry(ctx, func() (Receipt, error) {
		attempt++
		if err := o.wait(ctx, msg.Channel); err != nil {
			return Receipt{}, backoff.Permanent(&SendError{Kind: ProviderUnavailable, Err: err})
		}
		attemptCtx, cancel := context.WithTimeout(ctx, o.policy.Timeout)
		defer cancel()

		r, err := sender.Send(attemptCtx, msg)
		if err == nil {
			return r, nil
		}
		se := AsSendError(err)
		if !se.Retryable() {
			return Receipt{}, backoff.Permanent(se)
		}
		if se.Kind == RateLimited && se.RetryAfter > 0 {
			// The provider's delay replaces the next backoff interval.
			return Receipt{}, errors.Join(se, backoff.RetryAfter(int(math.Ceil(se.RetryAfter.Seconds()))))
		}
		return Receipt{}, se
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(options.attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.logger.Warn("outbound send retry",
				slog.String("channel", msg.Channel.String()),
				slog.Int("attempt", attempt),
				slog.Duration("next", next),
				slog.Any("error", err),
			)
		}),
	)
	if err != nil {
		var se *SendError
		if errors.As(err, &se) {
			return Receipt{}, se
		}
		// Context cancellation surfaces as a plain error from backoff.
		return Receipt{}, &SendError{Kind: ProviderUnavailable, Err: err}
	}
	return receipt, nil
}

func (o *Outbound) wait(ctx context.Context, t Type) error {
	limiter := o.limiter(t)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

func (o *Outbound) limiter(t Type) *rate.Limiter {
	perSecond := o.policy.RatePerSecond[t]
	if perSecond <= 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.limiters[t]
	if !ok {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(perSecond), burst)
		o.limiters[t] = l
	}
	return l
}
