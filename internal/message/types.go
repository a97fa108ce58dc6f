package message

import (
	"context"
	"time"

	"github.com/unifiedinbox/inbox/internal/channel"
)

type Direction string

const (
	Inbound  Direction = "INBOUND"
	Outbound Direction = "OUTBOUND"
)

// Status is the delivery state of a message. It only moves forward:
// PENDING, SENT, DELIVERED, READ, with FAILED reachable from any state
// before READ.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
	StatusFailed    Status = "FAILED"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusFailed
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRead || s == StatusFailed
}

// CanTransition reports whether from -> to moves the status forward.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return statusRank[to] > statusRank[from]
}

// Predecessors lists every status from which to is reachable in one step.
func Predecessors(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusSent, StatusDelivered, StatusRead, StatusFailed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Message is one persisted inbound or outbound message. ConversationID equals
// ContactID.
type Message struct {
	ID                string       `json:"id"`
	Seq               int64        `json:"seq"`
	ConversationID    string       `json:"conversationId"`
	ContactID         string       `json:"contactId"`
	Channel           channel.Type `json:"channel"`
	Direction         Direction    `json:"direction"`
	Content           string       `json:"content"`
	MediaRefs         []string     `json:"mediaRefs"`
	Status            Status       `json:"status"`
	ProviderMessageID string       `json:"providerMessageId,omitempty"`
	Error             string       `json:"error,omitempty"`
	ScheduledSendID   string       `json:"scheduledSendId,omitempty"`
	SenderID          string       `json:"senderId,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// AppendInput describes a new message. ProviderMessageID, or the pair
// ScheduledSendID and Occurrence, make the append idempotent.
type AppendInput struct {
	ContactID         string
	Channel           channel.Type
	Direction         Direction
	Content           string
	MediaRefs         []string
	Status            Status
	ProviderMessageID string
	ScheduledSendID   string
	Occurrence        time.Time
	SenderID          string
}

// Store is the message store contract used by the engine and the scheduler.
type Store interface {
	Append(ctx context.Context, input AppendInput) (Message, bool, error)
	Get(ctx context.Context, messageID string) (Message, error)
	GetByProviderID(ctx context.Context, ch channel.Type, providerMessageID string) (Message, error)
	GetByOccurrence(ctx context.Context, scheduledSendID string, occurrence time.Time) (Message, error)
	ListSince(ctx context.Context, contactID string, cursor int64, limit int) ([]Message, error)
	ListLatest(ctx context.Context, contactID string, limit int) ([]Message, error)
	ListBefore(ctx context.Context, contactID string, cursor int64, limit int) ([]Message, error)
	Transition(ctx context.Context, messageID string, to Status, providerMessageID, errMsg string) (Message, bool, error)
	TransitionByProviderID(ctx context.Context, ch channel.Type, providerMessageID string, to Status, errMsg string) (Message, bool, error)
}
