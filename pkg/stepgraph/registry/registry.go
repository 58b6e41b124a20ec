package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrFrozen indicates Register was called after Freeze.
var ErrFrozen = errors.New("registry is frozen")

// DuplicateError reports a second registration under the same key.
type DuplicateError[K cmp.Ordered] struct {
	Key K
}

// Error implements the error interface.
func (e *DuplicateError[K]) Error() string {
	return fmt.Sprintf("duplicate registration: %v", e.Key)
}

// NotFoundError reports a lookup of a key that was never registered.
type NotFoundError[K cmp.Ordered] struct {
	Key K
}

// Error implements the error interface.
func (e *NotFoundError[K]) Error() string {
	return fmt.Sprintf("not registered: %v", e.Key)
}

// Registry maps keys to values. Each key may be registered once; after
// Freeze the registry is read-only. It uses sync.RWMutex for read-heavy
// workloads and is safe for concurrent use.
type Registry[K cmp.Ordered, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
	frozen  bool
}

// New creates a new empty registry.
func New[K cmp.Ordered, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register adds a value under key.
// Returns *DuplicateError if key is already present and ErrFrozen after Freeze.
func (r *Registry[K, V]) Register(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %v", ErrFrozen, key)
	}
	if _, exists := r.entries[key]; exists {
		return &DuplicateError[K]{Key: key}
	}
	r.entries[key] = value
	return nil
}

// Get returns the value for key, or *NotFoundError if absent.
func (r *Registry[K, V]) Get(key K) (V, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	if !ok {
		var zero V
		return zero, &NotFoundError[K]{Key: key}
	}
	return v, nil
}

// Lookup returns the value for key and whether it exists.
func (r *Registry[K, V]) Lookup(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Freeze makes the registry read-only. Freeze is idempotent.
func (r *Registry[K, V]) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Frozen reports whether Freeze has been called.
func (r *Registry[K, V]) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Keys returns all keys in sorted order.
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

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry in key order until fn returns false.
// Range iterates over a snapshot, so fn may call other Registry methods.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	snapshot := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	keys := make([]K, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if !fn(k, snapshot[k]) {
			return
		}
	}
}
