// Package registry provides a session-scoped identity table: at most one
// value per reference key, stored in an arena addressed by integer handles.
package registry

import (
	"fmt"
	"sync"
)

// Handle addresses a value in a Registry arena. The zero Handle is invalid.
type Handle int32

// None is the invalid handle.
const None Handle = 0

// Valid reports whether h addresses an arena slot.
func (h Handle) Valid() bool { return h > None }

// Registry maps reference keys to values. GetOrCreate is race-free: two
// concurrent callers with the same key observe the same value and the
// factory runs at most once per key.
type Registry[V any] struct {
	mu    sync.RWMutex
	index map[string]Handle
	keys  []string
	arena []V
}

// New creates an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{index: make(map[string]Handle)}
}

// GetOrCreate returns the value registered under key, invoking factory only
// when the key is absent. created is true when factory ran.
func (r *Registry[V]) GetOrCreate(key string, factory func(Handle) V) (v V, h Handle, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.index[key]; ok {
		return r.arena[h-1], h, false
	}
	h = Handle(len(r.arena) + 1)
	v = factory(h)
	r.arena = append(r.arena, v)
	r.keys = append(r.keys, key)
	r.index[key] = h
	return v, h, true
}

// Lookup returns the value registered under key.
func (r *Registry[V]) Lookup(key string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero V
	h, ok := r.index[key]
	if !ok {
		return zero, false
	}
	return r.arena[h-1], true
}

// HandleOf returns the handle registered under key, or None.
func (r *Registry[V]) HandleOf(key string) Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index[key]
}

// At returns the value stored at h. It panics on an invalid handle.
func (r *Registry[V]) At(h Handle) V {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !h.Valid() || int(h) > len(r.arena) {
		panic(fmt.Sprintf("registry: invalid handle %d", h))
	}
	return r.arena[h-1]
}

// Key returns the reference key registered for h.
func (r *Registry[V]) Key(h Handle) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !h.Valid() || int(h) > len(r.keys) {
		return ""
	}
	return r.keys[h-1]
}

// Len returns the number of registered values.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.arena)
}

// Values returns all registered values in creation order.
func (r *Registry[V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]V, len(r.arena))
	copy(out, r.arena)
	return out
}

// Keys returns all registered keys in creation order.
func (r *Registry[V]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// GetOrCreateAs is GetOrCreate for registries holding an interface type. It
// panics when key is already bound to a value of a different concrete type:
// one reference key never denotes two kinds of thing.
func GetOrCreateAs[T, V any](r *Registry[V], key string, factory func(Handle) T) (T, bool) {
	v, _, created := r.GetOrCreate(key, func(h Handle) V {
		t := factory(h)
		out, ok := any(t).(V)
		if !ok {
			panic(fmt.Sprintf("registry: %T cannot be stored as %T", t, out))
		}
		return out
	})
	t, ok := any(v).(T)
	if !ok {
		panic(fmt.Sprintf("registry: key %q holds %T, requested %T", key, v, t))
	}
	return t, created
}
