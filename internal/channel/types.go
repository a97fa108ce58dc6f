// Package channel defines the canonical inbound/outbound shapes shared by the
// provider adapters, the adapter registry, and the outbound send policy.
package channel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Type identifies an external communication medium.
type Type string

const (
	SMS      Type = "sms"
	WhatsApp Type = "whatsapp"
	Email    Type = "email"
)

func (t Type) String() string { return string(t) }

// Valid reports whether t is one of the supported channels.
func (t Type) Valid() bool {
	switch t {
	case SMS, WhatsApp, Email:
		return true
	}
	return false
}

// ParseType accepts any casing ("SMS", "whatsapp") and returns the canonical Type.
func ParseType(raw string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unsupported channel type: %q", raw)
	}
	return t, nil
}

// InboundEvent is a provider payload after authenticity checks and parsing.
type InboundEvent struct {
	Channel           Type
	ExternalAddress   string
	DisplayName       string
	Subject           string
	Body              string
	MediaRefs         []string
	ProviderMessageID string
	ReceivedAt        time.Time
}

// OutboundMessage is what the engine asks an adapter to deliver.
type OutboundMessage struct {
	Channel   Type
	To        string
	Subject   string
	Body      string
	MediaRefs []string
}

// Receipt is the provider's acknowledgement of an accepted send.
type Receipt struct {
	ProviderMessageID string
	ProviderStatus    string
	AcceptedAt        time.Time
}

// StatusCallback is a provider-reported delivery status for an earlier send.
// Status holds the canonical message status ("SENT", "DELIVERED", ...).
type StatusCallback struct {
	Channel           Type
	ProviderMessageID string
	Status            string
	ErrorCode         string
}

// Sender delivers outbound messages. Failures are returned as *SendError when
// the adapter can classify them.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) (Receipt, error)
}

// InboundVerifier checks a webhook request's signature and parses it.
// Verification failures are apperr Auth errors.
type InboundVerifier interface {
	VerifyInbound(r *http.Request) (InboundEvent, error)
}
