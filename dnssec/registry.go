package dnssec

import (
	"fmt"
	"sort"
	"sync"
)

// Handler is implemented by everything that can be bound to a registry id
type Handler interface {
	Name() string
}

// Registry holds the handlers bound to numeric ids. Only the owner may change bindings.
// Readers always observe either the previous or the new handler of an id.
type Registry[H Handler] struct {
	name  string
	owner string

	mu       sync.RWMutex
	handlers map[uint8]H
}

func newRegistry[H Handler](name, owner string) *Registry[H] {
	return &Registry[H]{
		name:     name,
		owner:    owner,
		handlers: make(map[uint8]H),
	}
}

// Owner returns the identity allowed to modify the registry
func (r *Registry[H]) Owner() string {
	return r.owner
}

// Register binds handler to id, replacing a previous binding
func (r *Registry[H]) Register(caller string, id uint8, handler H) error {
	if r.owner == "" || caller != r.owner {
		return fmt.Errorf("%w: '%s' may not modify the %s registry", ErrUnauthorized, caller, r.name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[id] = handler

	return nil
}

// Lookup returns the handler bound to id
func (r *Registry[H]) Lookup(id uint8) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[id]

	return h, ok
}

// IDs returns all bound ids in ascending order
func (r *Registry[H]) IDs() []uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint8, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
