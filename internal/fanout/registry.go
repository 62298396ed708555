package fanout

import (
	"sync"

	"main/internal/model"
)

// Consumer receives serialized price updates. A failed Send drops the
// consumer from the registry as if it had disconnected.
type Consumer interface {
	ID() string
	Send(payload []byte) error
	Close()
}

// Registry tracks which consumer wants which (symbol, exchange) key.
// Subscribe and Unsubscribe are idempotent; Drop removes every subscription
// a consumer holds in one step.
type Registry struct {
	mu         sync.RWMutex
	byKey      map[model.Key]map[Consumer]struct{}
	byConsumer map[Consumer]map[model.Key]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byKey:      make(map[model.Key]map[Consumer]struct{}),
		byConsumer: make(map[Consumer]map[model.Key]struct{}),
	}
}

func (r *Registry) Subscribe(c Consumer, key model.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byKey[key] == nil {
		r.byKey[key] = make(map[Consumer]struct{})
	}
	r.byKey[key][c] = struct{}{}

	if r.byConsumer[c] == nil {
		r.byConsumer[c] = make(map[model.Key]struct{})
	}
	r.byConsumer[c][key] = struct{}{}
}

func (r *Registry) Unsubscribe(c Consumer, key model.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set := r.byKey[key]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(r.byKey, key)
		}
	}
	if keys := r.byConsumer[c]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.byConsumer, c)
		}
	}
}

// Drop removes all of the consumer's subscriptions atomically.
func (r *Registry) Drop(c Consumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(c)
}

func (r *Registry) dropLocked(c Consumer) {
	for key := range r.byConsumer[c] {
		if set := r.byKey[key]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(r.byKey, key)
			}
		}
	}
	delete(r.byConsumer, c)
}

// Clear drops every consumer, closing each one.
func (r *Registry) Clear() {
	r.mu.Lock()
	consumers := make([]Consumer, 0, len(r.byConsumer))
	for c := range r.byConsumer {
		consumers = append(consumers, c)
	}
	for _, c := range consumers {
		r.dropLocked(c)
	}
	r.mu.Unlock()

	for _, c := range consumers {
		c.Close()
	}
}

// Subscribers snapshots the consumers currently subscribed to key.
func (r *Registry) Subscribers(key model.Key) []Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byKey[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]Consumer, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// SubscriptionCount reports how many keys the consumer holds.
func (r *Registry) SubscriptionCount(c Consumer) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConsumer[c])
}

// ConsumerCount reports the number of registered consumers.
func (r *Registry) ConsumerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConsumer)
}
