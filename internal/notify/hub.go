// Package notify is a small typed observer hub. Connection state and cache
// updates are published through it so consumers (HTTP surface, relay, tests)
// can follow changes without polling.
package notify

import (
	"sort"
	"sync"
)

// Listener receives published values.
type Listener[T any] func(T)

// Hub fans values out to registered listeners. The zero value is ready to use.
type Hub[T any] struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener[T]
}

// Subscribe registers l and returns a func that removes it. The returned func
// is idempotent.
func (h *Hub[T]) Subscribe(l Listener[T]) (unsubscribe func()) {
	h.mu.Lock()
	if h.listeners == nil {
		h.listeners = make(map[uint64]Listener[T])
	}
	h.nextID++
	id := h.nextID
	h.listeners[id] = l
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Publish calls every listener with v, in registration order, on the caller's
// goroutine. Listeners may subscribe or unsubscribe from within a callback.
func (h *Hub[T]) Publish(v T) {
	for _, l := range h.snapshot() {
		l(v)
	}
}

// Len returns the number of registered listeners.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (h *Hub[T]) snapshot() []Listener[T] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.listeners) == 0 {
		return nil
	}

	ids := make([]uint64, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Listener[T], len(ids))
	for i, id := range ids {
		out[i] = h.listeners[id]
	}
	return out
}
