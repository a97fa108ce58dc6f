// Package email implements the email channel: SMTP delivery through go-mail
// and a signed inbound webhook in the form posted by common inbound-mail relays.
package email

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/logger"
)

const defaultSubject = "New message"

// Config holds SMTP credentials and the inbound webhook signing key.
type Config struct {
	SMTPHost          string
	SMTPPort          int
	Username          string
	Password          string
	From              string
	TLSPolicy         string
	WebhookSigningKey string
	WebhookTolerance  time.Duration
}

// Adapter sends mail over SMTP and verifies inbound mail webhooks.
type Adapter struct {
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	deliver func(ctx context.Context, msg *mail.Msg) error
}

// NewAdapter builds the SMTP client. An empty SMTPHost yields an adapter
// whose sends fail as ProviderUnavailable; inbound verification still works.
func NewAdapter(log *slog.Logger, cfg Config) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &Adapter{
		cfg:    cfg,
		logger: log.With(slog.String("adapter", "email")),
		now:    time.Now,
	}
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		a.deliver = func(context.Context, *mail.Msg) error {
			return &channel.SendError{Kind: channel.ProviderUnavailable, Message: "smtp host not configured"}
		}
		return a, nil
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(15 * time.Second),
		mail.WithTLSPortPolicy(parseTLSPolicy(cfg.TLSPolicy)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, err
	}
	a.deliver = func(ctx context.Context, msg *mail.Msg) error {
		return client.DialAndSendWithContext(ctx, msg)
	}
	return a, nil
}

func parseTLSPolicy(raw string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "opportunistic":
		return mail.TLSOpportunistic
	case "none", "notls":
		return mail.NoTLS
	default:
		return mail.TLSMandatory
	}
}

// Send delivers one plain-text message. Media references are appended as links.
func (a *Adapter) Send(ctx context.Context, out channel.OutboundMessage) (channel.Receipt, error) {
	msg := mail.NewMsg()
	if err := msg.From(a.cfg.From); err != nil {
		return channel.Receipt{}, &channel.SendError{Kind: channel.ProviderUnavailable, Message: "invalid sender address", Err: err}
	}
	if err := msg.To(out.To); err != nil {
		return channel.Receipt{}, &channel.SendError{Kind: channel.InvalidAddress, Message: "invalid recipient address", Err: err}
	}
	subject := strings.TrimSpace(out.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, composeBody(out))

	if err := a.deliver(ctx, msg); err != nil {
		return channel.Receipt{}, classify(err)
	}
	id := strings.Trim(msg.GetMessageID(), "<>")
	a.logger.Debug("mail accepted", slog.String("message_id", id))
	return channel.Receipt{ProviderMessageID: id, ProviderStatus: "accepted", AcceptedAt: a.now()}, nil
}

func composeBody(out channel.OutboundMessage) string {
	if len(out.MediaRefs) == 0 {
		return out.Body
	}
	var b strings.Builder
	b.WriteString(out.Body)
	b.WriteString("\n\n")
	for _, ref := range out.MediaRefs {
		b.WriteString(ref)
		b.WriteString("\n")
	}
	return b.String()
}

func classify(err error) *channel.SendError {
	var existing *channel.SendError
	if errors.As(err, &existing) {
		return existing
	}
	var sendErr *mail.SendError
	if !errors.As(err, &sendErr) {
		return &channel.SendError{Kind: channel.ProviderUnavailable, Err: err}
	}
	se := &channel.SendError{Err: err}
	if code := sendErr.ErrorCode(); code > 0 {
		se.Code = strconv.Itoa(code)
	}
	switch {
	case sendErr.ErrorCode() == 421 || sendErr.ErrorCode() == 452:
		se.Kind = channel.RateLimited
	case sendErr.Reason == mail.ErrSMTPRcptTo && !sendErr.IsTemp():
		se.Kind = channel.InvalidAddress
	default:
		se.Kind = channel.ProviderUnavailable
	}
	return se
}

// Sign computes hex(HMAC-SHA256(key, timestamp+token)).
func Sign(key, timestamp, token string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp + token))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyInbound checks the webhook signature and freshness, then parses the mail.
func (a *Adapter) VerifyInbound(r *http.Request) (channel.InboundEvent, error) {
	timestamp := r.FormValue("timestamp")
	token := r.FormValue("token")
	signature := r.FormValue("signature")
	if a.cfg.WebhookSigningKey == "" || timestamp == "" || token == "" || signature == "" {
		return channel.InboundEvent{}, apperr.Auth("email webhook", "missing signature")
	}
	expected := Sign(a.cfg.WebhookSigningKey, timestamp, token)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		a.logger.Warn("rejected webhook with bad signature")
		return channel.InboundEvent{}, apperr.Auth("email webhook", "signature mismatch")
	}
	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return channel.InboundEvent{}, apperr.Auth("email webhook", "malformed timestamp")
	}
	if tolerance := a.cfg.WebhookTolerance; tolerance > 0 {
		skew := a.now().Sub(time.Unix(secs, 0))
		if skew < -tolerance || skew > tolerance {
			return channel.InboundEvent{}, apperr.Auth("email webhook", "stale signature")
		}
	}

	sender := strings.TrimSpace(r.FormValue("sender"))
	if sender == "" {
		sender = strings.TrimSpace(r.FormValue("from"))
	}
	if sender == "" {
		return channel.InboundEvent{}, apperr.Validation("email inbound", "missing sender")
	}
	body := r.FormValue("stripped-text")
	if strings.TrimSpace(body) == "" {
		body = r.FormValue("body-plain")
	}
	ev := channel.InboundEvent{
		Channel:           channel.Email,
		ExternalAddress:   sender,
		Subject:           strings.TrimSpace(r.FormValue("subject")),
		Body:              body,
		ProviderMessageID: strings.Trim(strings.TrimSpace(r.FormValue("Message-Id")), "<>"),
		ReceivedAt:        a.now(),
	}
	if strings.TrimSpace(ev.Body) == "" && ev.Subject == "" {
		return channel.InboundEvent{}, apperr.Validation("email inbound", "empty message")
	}
	if strings.TrimSpace(ev.Body) == "" {
		ev.Body = ev.Subject
	}
	a.logger.Debug("inbound verified", slog.String("body", logger.Summarize(ev.Body)))
	return ev, nil
}
