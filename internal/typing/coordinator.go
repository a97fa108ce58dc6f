// Package typing tracks who is typing in which conversation. State lives in
// memory only and expires on its own when a client goes quiet.
package typing

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/unifiedinbox/inbox/internal/message/event"
)

const (
	DefaultWindow        = 2 * time.Second
	DefaultSweepInterval = 500 * time.Millisecond
)

// Payload is the data of a user-typing event.
type Payload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

// Typist is one user currently typing.
type Typist struct {
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type key struct {
	conversationID string
	userID         string
}

type entry struct {
	userName  string
	expiresAt time.Time
}

// Coordinator owns the typing state machine per (conversation, user):
// Idle to Typing on Start, Typing to Idle on Stop or after the window passes
// without a refresh. Only transitions are published; refreshes are silent.
type Coordinator struct {
	mu        sync.Mutex
	state     map[key]entry
	window    time.Duration
	sweep     time.Duration
	now       func() time.Time
	publisher event.Publisher
	logger    *slog.Logger
}

func NewCoordinator(log *slog.Logger, publisher event.Publisher, window, sweepInterval time.Duration) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Coordinator{
		state:     map[key]entry{},
		window:    window,
		sweep:     sweepInterval,
		now:       time.Now,
		publisher: publisher,
		logger:    log.With(slog.String("service", "typing")),
	}
}

// Start marks the user as typing, or refreshes the expiry if already typing.
// It reports whether this was a transition into Typing.
func (c *Coordinator) Start(conversationID, userID, userName string) bool {
	k, ok := newKey(conversationID, userID)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	current, typing := c.state[k]
	if typing && !now.Before(current.expiresAt) {
		// Expired but not swept yet: close it out before the new episode.
		c.expireLocked(k, current)
		typing = false
	}
	if userName == "" {
		userName = current.userName
	}
	c.state[k] = entry{userName: userName, expiresAt: now.Add(c.window)}
	if typing {
		return false
	}
	c.publishLocked(k, userName, true)
	return true
}

// Stop ends the user's typing state. It reports whether this was a
// transition out of Typing.
func (c *Coordinator) Stop(conversationID, userID string) bool {
	k, ok := newKey(conversationID, userID)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	current, typing := c.state[k]
	if !typing {
		return false
	}
	c.expireLocked(k, current)
	return true
}

// Sweep expires every entry whose window has passed and returns how many.
func (c *Coordinator) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	expired := 0
	for k, e := range c.state {
		if !now.Before(e.expiresAt) {
			c.expireLocked(k, e)
			expired++
		}
	}
	return expired
}

// Snapshot lists who is typing in the conversation. Expired entries are
// expired on read, so a stalled sweep never shows a stale typist.
func (c *Coordinator) Snapshot(conversationID string) []Typist {
	conversationID = strings.TrimSpace(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	out := []Typist{}
	for k, e := range c.state {
		if k.conversationID != conversationID {
			continue
		}
		if !now.Before(e.expiresAt) {
			c.expireLocked(k, e)
			continue
		}
		out = append(out, Typist{UserID: k.userID, UserName: e.userName, ExpiresAt: e.expiresAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Run sweeps on a fixed interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("expired typing state", slog.Int("count", n))
			}
		}
	}
}

func (c *Coordinator) expireLocked(k key, e entry) {
	delete(c.state, k)
	c.publishLocked(k, e.userName, false)
}

// publishLocked runs under mu so transitions of one key are published in
// the order they happen. Publishers never block.
func (c *Coordinator) publishLocked(k key, userName string, isTyping bool) {
	if c.publisher == nil {
		return
	}
	topic := event.ConversationTopic(k.conversationID)
	ev, err := event.New(event.TypeUserTyping, topic, Payload{
		ConversationID: k.conversationID,
		UserID:         k.userID,
		UserName:       userName,
		IsTyping:       isTyping,
	})
	if err != nil {
		c.logger.Warn("encode typing event", slog.Any("error", err))
		return
	}
	c.publisher.Publish(topic, ev)
}

func newKey(conversationID, userID string) (key, bool) {
	k := key{conversationID: strings.TrimSpace(conversationID), userID: strings.TrimSpace(userID)}
	return k, k.conversationID != "" && k.userID != ""
}
