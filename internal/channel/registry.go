package channel

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry maps channel types to the adapter that sends on them. One adapter
// may serve several types (Twilio serves SMS and WhatsApp).
type Registry struct {
	mu      sync.RWMutex
	senders map[Type]Sender
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{senders: map[Type]Sender{}}
}

// Register binds sender to the given channel types.
func (r *Registry) Register(sender Sender, types ...Type) error {
	if sender == nil {
		return errors.New("sender is nil")
	}
	if len(types) == 0 {
		return errors.New("at least one channel type is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if !t.Valid() {
			return fmt.Errorf("unsupported channel type: %q", t)
		}
		if _, exists := r.senders[t]; exists {
			return fmt.Errorf("channel type already registered: %s", t)
		}
	}
	for _, t := range types {
		r.senders[t] = sender
	}
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(sender Sender, types ...Type) {
	if err := r.Register(sender, types...); err != nil {
		panic(err)
	}
}

// Sender returns the sender bound to t.
func (r *Registry) Sender(t Type) (Sender, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.senders[t]
	return s, ok
}

// Types returns the registered channel types in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Type, 0, len(r.senders))
	for t := range r.senders {
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}
