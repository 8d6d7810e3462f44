// Package subscription tracks which (channel, symbol) streams the client
// wants and the callback for each.
//
// Registry entries are the client's intent. They survive transport drops and
// are replayed after every reconnect; only an explicit remove or a hard reset
// clears them.
package subscription

import (
	"encoding/json"
	"sort"
	"sync"
)

// Callback receives the raw payload of each routed message.
type Callback func(payload json.RawMessage)

// Subscription is one registry entry. Symbol is empty for channel-wide streams.
type Subscription struct {
	Channel  string
	Symbol   string
	Callback Callback
}

// Key returns the registry key for this subscription.
func (s Subscription) Key() string {
	return Key(s.Channel, s.Symbol)
}

// Key builds "channel" or "channel:symbol".
func Key(channel, symbol string) string {
	if symbol == "" {
		return channel
	}
	return channel + ":" + symbol
}

// Registry maps keys to subscriptions. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Subscription)}
}

// Put inserts or replaces the entry for sub's key. It reports whether an
// existing entry was replaced.
func (r *Registry) Put(sub Subscription) (replaced bool) {
	key := sub.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced = r.entries[key]
	r.entries[key] = sub
	return replaced
}

// Remove deletes the entry for (channel, symbol) and reports whether it existed.
func (r *Registry) Remove(channel, symbol string) bool {
	key := Key(channel, symbol)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	delete(r.entries, key)
	return ok
}

// Get looks up an entry by key.
func (r *Registry) Get(key string) (Subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.entries[key]
	return sub, ok
}

// Clear removes every entry and returns how many were dropped.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = make(map[string]Subscription)
	return n
}

// Entries returns a snapshot sorted by key, so replay order is stable.
func (r *Registry) Entries() []Subscription {
	r.mu.RLock()
	out := make([]Subscription, 0, len(r.entries))
	for _, sub := range r.entries {
		out = append(out, sub)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Keys returns the sorted registry keys.
func (r *Registry) Keys() []string {
	entries := r.Entries()
	keys := make([]string, len(entries))
	for i, sub := range entries {
		keys[i] = sub.Key()
	}
	return keys
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
