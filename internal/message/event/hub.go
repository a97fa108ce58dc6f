// Package event provides the per-conversation publish/subscribe hub that
// fans state changes out to live viewers.
package event

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBufferSize is the default per-subscriber channel buffer.
	DefaultBufferSize = 64

	topicPrefix = "conversation:"
)

// Type identifies the event category.
type Type string

const (
	TypeNewMessage    Type = "new-message"
	TypeMessageStatus Type = "message-status"
	TypeUserTyping    Type = "user-typing"
	TypeNoteUpdate    Type = "note-update"
)

// Event is one state change on a topic. Data is the JSON payload.
type Event struct {
	Type  Type            `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    time.Time       `json:"at"`
}

// ConversationTopic names the topic carrying a conversation's events.
func ConversationTopic(contactID string) string {
	return topicPrefix + strings.TrimSpace(contactID)
}

// New builds an event with payload encoded as JSON.
func New(typ Type, topic string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Topic: topic, Data: data, At: time.Now().UTC()}, nil
}

// Publisher publishes events to subscribers of a topic.
type Publisher interface {
	Publish(topic string, event Event)
}

// Subscriber subscribes to topic-scoped events.
type Subscriber interface {
	Subscribe(topic string, buffer int) (string, <-chan Event, func())
}

// Hub is an in-process pub/sub dispatcher keyed by topic. Publish never
// blocks: a subscriber whose buffer is full is evicted and its channel
// closed, which tells the viewer to reconnect and reconcile from the store.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]chan Event
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		streams: map[string]map[string]chan Event{},
		logger:  log.With(slog.String("component", "event_hub")),
	}
}

// Publish delivers one event to every current subscriber of topic, in the
// order Publish is called by a single publisher.
func (h *Hub) Publish(topic string, event Event) {
	if h == nil {
		return
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}
	event.Topic = topic
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	var slow []string
	h.mu.RLock()
	for id, ch := range h.streams[topic] {
		select {
		case ch <- event:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		if h.remove(topic, id) {
			h.logger.Warn("evicted slow subscriber", slog.String("topic", topic), slog.String("stream_id", id))
		}
	}
}

// Subscribe registers one subscriber under a topic.
// It returns a stream ID, read-only event channel, and a cancel function.
func (h *Hub) Subscribe(topic string, buffer int) (string, <-chan Event, func()) {
	if h == nil {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[topic]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[topic] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { h.remove(topic, streamID) })
	}
	return streamID, ch, cancel
}

// Subscribers returns the number of live subscribers on topic.
func (h *Hub) Subscribers(topic string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[topic])
}

// remove closes and unregisters a stream. Sends happen under the read lock,
// so closing under the write lock never races a send.
func (h *Hub) remove(topic, streamID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	streams := h.streams[topic]
	current, ok := streams[streamID]
	if !ok {
		return false
	}
	delete(streams, streamID)
	close(current)
	if len(streams) == 0 {
		delete(h.streams, topic)
	}
	return true
}
