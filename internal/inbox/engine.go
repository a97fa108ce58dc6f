// Package inbox is the conversation engine. It turns verified inbound
// webhooks into messages, drives outbound sends through the channel layer,
// applies provider status callbacks, and announces every change on the
// conversation's event topic.
package inbox

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/unifiedinbox/inbox/internal/apperr"
	"github.com/unifiedinbox/inbox/internal/channel"
	"github.com/unifiedinbox/inbox/internal/contacts"
	"github.com/unifiedinbox/inbox/internal/logger"
	"github.com/unifiedinbox/inbox/internal/message"
	"github.com/unifiedinbox/inbox/internal/message/event"
)

// ContactResolver maps an external address to a contact, creating it on first contact.
type ContactResolver interface {
	ResolveNamed(ctx context.Context, ch channel.Type, externalAddress, displayName string) (contacts.Resolved, error)
}

// AddressBook looks up where to deliver to a contact.
type AddressBook interface {
	AddressFor(ctx context.Context, contactID string, ch channel.Type) (string, error)
}

// MessageStore is the part of message.Store the engine writes through.
type MessageStore interface {
	Append(ctx context.Context, input message.AppendInput) (message.Message, bool, error)
	Get(ctx context.Context, messageID string) (message.Message, error)
	Transition(ctx context.Context, messageID string, to message.Status, providerMessageID, errMsg string) (message.Message, bool, error)
	TransitionByProviderID(ctx context.Context, ch channel.Type, providerMessageID string, to message.Status, errMsg string) (message.Message, bool, error)
}

// Sender delivers through the channel adapters under the outbound policy.
type Sender interface {
	Send(ctx context.Context, msg channel.OutboundMessage, opts ...channel.SendOption) (channel.Receipt, error)
}

// SendRequest is an outbound message. ScheduledSendID and Occurrence are set
// by the scheduler and make the send idempotent per occurrence.
type SendRequest struct {
	ContactID       string       `json:"contactId"`
	Channel         channel.Type `json:"channel"`
	Content         string       `json:"content"`
	Subject         string       `json:"subject,omitempty"`
	MediaRefs       []string     `json:"mediaRefs,omitempty"`
	SenderID        string       `json:"-"`
	ScheduledSendID string       `json:"-"`
	Occurrence      time.Time    `json:"-"`
	// Attempts overrides the outbound retry budget when positive.
	Attempts int `json:"-"`
}

// StatusPayload is the data of a message-status event.
type StatusPayload struct {
	ConversationID    string         `json:"conversationId"`
	MessageID         string         `json:"messageId"`
	Status            message.Status `json:"status"`
	ProviderMessageID string         `json:"providerMessageId,omitempty"`
	Error             string         `json:"error,omitempty"`
}

type Engine struct {
	resolver  ContactResolver
	addresses AddressBook
	store     MessageStore
	sender    Sender
	publisher event.Publisher
	logger    *slog.Logger
}

func NewEngine(log *slog.Logger, resolver ContactResolver, addresses AddressBook, store MessageStore, sender Sender, publisher event.Publisher) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		resolver:  resolver,
		addresses: addresses,
		store:     store,
		sender:    sender,
		publisher: publisher,
		logger:    log.With(slog.String("service", "inbox")),
	}
}

// HandleInbound records a verified inbound message as DELIVERED and
// announces it. A redelivered webhook with a known provider id returns the
// stored message and publishes nothing.
func (e *Engine) HandleInbound(ctx context.Context, in channel.InboundEvent) (message.Message, error) {
	resolved, err := e.resolver.ResolveNamed(ctx, in.Channel, in.ExternalAddress, in.DisplayName)
	if err != nil {
		return message.Message{}, err
	}
	msg, created, err := e.store.Append(ctx, message.AppendInput{
		ContactID:         resolved.ContactID,
		Channel:           in.Channel,
		Direction:         message.Inbound,
		Content:           inboundContent(in),
		MediaRefs:         in.MediaRefs,
		Status:            message.StatusDelivered,
		ProviderMessageID: in.ProviderMessageID,
	})
	if err != nil {
		return message.Message{}, err
	}
	if !created {
		e.logger.Info("duplicate inbound absorbed",
			slog.String("channel", in.Channel.String()),
			slog.String("provider_message_id", in.ProviderMessageID),
		)
		return msg, nil
	}
	e.logger.Info("inbound message",
		slog.String("contact_id", msg.ContactID),
		slog.String("channel", msg.Channel.String()),
		slog.Bool("new_contact", resolved.Created),
		slog.String("content", logger.Summarize(msg.Content)),
	)
	e.publishMessage(msg)
	return msg, nil
}

func inboundContent(in channel.InboundEvent) string {
	subject := strings.TrimSpace(in.Subject)
	body := in.Body
	if subject == "" || subject == strings.TrimSpace(body) {
		return body
	}
	return subject + "\n\n" + body
}

// Send appends a PENDING outbound message, delivers it, and records the
// outcome. Provider failures end as a FAILED message, not an error; errors
// are returned only for invalid input and store failures.
func (e *Engine) Send(ctx context.Context, req SendRequest) (message.Message, error) {
	if !req.Channel.Valid() {
		return message.Message{}, apperr.Validation("send message", "unsupported channel %q", req.Channel)
	}
	if strings.TrimSpace(req.Content) == "" && len(req.MediaRefs) == 0 {
		return message.Message{}, apperr.Validation("send message", "content is required")
	}
	to, err := e.addresses.AddressFor(ctx, req.ContactID, req.Channel)
	if err != nil {
		return message.Message{}, err
	}
	msg, created, err := e.store.Append(ctx, message.AppendInput{
		ContactID:       req.ContactID,
		Channel:         req.Channel,
		Direction:       message.Outbound,
		Content:         req.Content,
		MediaRefs:       req.MediaRefs,
		Status:          message.StatusPending,
		ScheduledSendID: req.ScheduledSendID,
		Occurrence:      req.Occurrence,
		SenderID:        req.SenderID,
	})
	if err != nil {
		return message.Message{}, err
	}
	if !created {
		// This occurrence was already sent or attempted; never send twice.
		return msg, nil
	}
	e.publishMessage(msg)

	var opts []channel.SendOption
	if req.Attempts > 0 {
		opts = append(opts, channel.WithAttempts(req.Attempts))
	}
	receipt, sendErr := e.sender.Send(ctx, channel.OutboundMessage{
		Channel:   req.Channel,
		To:        to,
		Subject:   req.Subject,
		Body:      req.Content,
		MediaRefs: req.MediaRefs,
	}, opts...)

	// The send happened; record it even if the caller has gone away.
	recordCtx := context.WithoutCancel(ctx)
	if sendErr != nil {
		se := channel.AsSendError(sendErr)
		e.logger.Warn("outbound send failed",
			slog.String("message_id", msg.ID),
			slog.String("channel", req.Channel.String()),
			slog.String("kind", se.Kind.String()),
			slog.Any("error", se),
		)
		return e.transition(recordCtx, msg, message.StatusFailed, "", se.Error())
	}
	return e.transition(recordCtx, msg, message.StatusSent, receipt.ProviderMessageID, "")
}

// Retry resends a FAILED outbound message as a new message with the same content.
func (e *Engine) Retry(ctx context.Context, messageID, senderID string) (message.Message, error) {
	original, err := e.store.Get(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if original.Direction != message.Outbound || original.Status != message.StatusFailed {
		return message.Message{}, apperr.Conflict("retry message", "only failed outbound messages can be retried")
	}
	return e.Send(ctx, SendRequest{
		ContactID: original.ContactID,
		Channel:   original.Channel,
		Content:   original.Content,
		MediaRefs: original.MediaRefs,
		SenderID:  senderID,
	})
}

// ApplyStatus applies a provider delivery callback. Callbacks that would
// move the status backwards, or that name an unknown message, are ignored.
func (e *Engine) ApplyStatus(ctx context.Context, cb channel.StatusCallback) error {
	to := message.Status(cb.Status)
	if cb.Status == "" || !to.Valid() {
		return nil
	}
	errMsg := ""
	if to == message.StatusFailed && cb.ErrorCode != "" {
		errMsg = "provider error " + cb.ErrorCode
	}
	msg, changed, err := e.store.TransitionByProviderID(ctx, cb.Channel, cb.ProviderMessageID, to, errMsg)
	if apperr.Is(err, apperr.KindNotFound) {
		e.logger.Debug("status for unknown message", slog.String("provider_message_id", cb.ProviderMessageID))
		return nil
	}
	if err != nil {
		return err
	}
	if changed {
		e.publishStatus(msg)
	}
	return nil
}

func (e *Engine) transition(ctx context.Context, msg message.Message, to message.Status, providerMessageID, errMsg string) (message.Message, error) {
	updated, changed, err := e.store.Transition(ctx, msg.ID, to, providerMessageID, errMsg)
	if err != nil {
		return msg, err
	}
	if changed {
		e.publishStatus(updated)
	}
	return updated, nil
}

func (e *Engine) publishMessage(msg message.Message) {
	e.publish(event.TypeNewMessage, msg.ContactID, msg)
}

func (e *Engine) publishStatus(msg message.Message) {
	e.publish(event.TypeMessageStatus, msg.ContactID, StatusPayload{
		ConversationID:    msg.ContactID,
		MessageID:         msg.ID,
		Status:            msg.Status,
		ProviderMessageID: msg.ProviderMessageID,
		Error:             msg.Error,
	})
}

func (e *Engine) publish(typ event.Type, contactID string, payload any) {
	if e.publisher == nil {
		return
	}
	topic := event.ConversationTopic(contactID)
	ev, err := event.New(typ, topic, payload)
	if err != nil {
		e.logger.Warn("encode event", slog.String("type", string(typ)), slog.Any("error", err))
		return
	}
	e.publisher.Publish(topic, ev)
}
