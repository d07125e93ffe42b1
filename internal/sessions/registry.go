// Package sessions keeps short-lived per-visitor state in process memory.
package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps opaque session ids to values, evicting entries idle longer
// than the TTL. Eviction is lazy and runs on Create.
type Registry[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry[T]
}

type entry[T any] struct {
	value    T
	lastSeen time.Time
}

// NewRegistry creates a registry. A non-positive ttl disables eviction.
func NewRegistry[T any](ttl time.Duration) *Registry[T] {
	return &Registry[T]{ttl: ttl, now: time.Now, entries: make(map[string]*entry[T])}
}

// WithClock replaces the clock, for tests.
func (r *Registry[T]) WithClock(now func() time.Time) *Registry[T] {
	r.now = now
	return r
}

// Create stores value under a new id.
func (r *Registry[T]) Create(value T) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	r.entries[id] = &entry[T]{value: value, lastSeen: r.now()}
	return id
}

// Put stores value under a caller-chosen id, replacing any existing entry.
func (r *Registry[T]) Put(id string, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = &entry[T]{value: value, lastSeen: r.now()}
}

// GetOrPut returns the live value for id if one exists. Otherwise it stores
// value and returns it. The boolean reports whether an existing value won.
func (r *Registry[T]) GetOrPut(id string, value T) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok && !r.expiredLocked(e) {
		e.lastSeen = r.now()
		return e.value, true
	}
	r.entries[id] = &entry[T]{value: value, lastSeen: r.now()}
	return value, false
}

// Get returns the value for id and refreshes its idle timer.
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || r.expiredLocked(e) {
		delete(r.entries, id)
		var zero T
		return zero, false
	}
	e.lastSeen = r.now()
	return e.value, true
}

// Delete removes id.
func (r *Registry[T]) Delete(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// Len reports the number of live entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.entries)
}

func (r *Registry[T]) expiredLocked(e *entry[T]) bool {
	return r.ttl > 0 && r.now().Sub(e.lastSeen) > r.ttl
}

func (r *Registry[T]) sweepLocked() {
	for id, e := range r.entries {
		if r.expiredLocked(e) {
			delete(r.entries, id)
		}
	}
}
