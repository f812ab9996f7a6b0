package registry

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
)

var (
	// ErrDuplicate is returned when registering a key that already exists.
	ErrDuplicate = errors.New("already registered")
	// ErrNotFound is returned by Lookup for an unknown key.
	ErrNotFound = errors.New("not registered")
)

// Registry maps keys to values. Reads take a shared lock.
type Registry[K cmp.Ordered, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates an empty registry.
func New[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{entries: make(map[K]V)}
}

// Register adds key. It fails with ErrDuplicate if key is taken.
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicate, key)
	}
	r.entries[key] = value
	return nil
}

// MustRegister is Register for init-time wiring; it panics on duplicates.
func (r *Registry[K, V]) MustRegister(key K, value V) {
	if err := r.Register(key, value); err != nil {
		panic("registry: " + err.Error())
	}
}

// Replace sets key, overwriting any existing value.
func (r *Registry[K, V]) Replace(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

// Get returns the value for key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Lookup is Get with an error naming the known keys, for user input.
func (r *Registry[K, V]) Lookup(key K) (V, error) {
	if v, ok := r.Get(key); ok {
		return v, nil
	}
	var zero V
	return zero, fmt.Errorf("%w: %v (known: %v)", ErrNotFound, key, r.Keys())
}

// Delete removes key.
func (r *Registry[K, V]) Delete(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Keys returns the keys in ascending order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// All iterates a snapshot in key order. The registry may be modified while
// iterating.
func (r *Registry[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		r.mu.RLock()
		snapshot := make([]K, 0, len(r.entries))
		values := make(map[K]V, len(r.entries))
		for k, v := range r.entries {
			snapshot = append(snapshot, k)
			values[k] = v
		}
		r.mu.RUnlock()

		slices.Sort(snapshot)
		for _, k := range snapshot {
			if !yield(k, values[k]) {
				return
			}
		}
	}
}
