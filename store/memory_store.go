package store

import (
	"context"
	"sort"
	"sync"
)

type bindingKey struct {
	kind Kind
	id   uint8
}

// MemoryStore keeps all state in memory, it is lost on restart
type MemoryStore struct {
	mu       sync.RWMutex
	bindings map[bindingKey]Binding
	anchors  []AnchorSet
	audit    []AuditEntry
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bindings: make(map[bindingKey]Binding)}
}

// SaveBinding implements `Store`
func (s *MemoryStore) SaveBinding(_ context.Context, b Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bindings[bindingKey{b.Kind, b.ID}] = b

	return nil
}

// Bindings implements `Store`
func (s *MemoryStore) Bindings(_ context.Context, kind Kind) ([]Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]Binding, 0, len(s.bindings))

	for k, b := range s.bindings {
		if k.kind == kind {
			res = append(res, b)
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res, nil
}

// SaveAnchors implements `Store`
func (s *MemoryStore) SaveAnchors(_ context.Context, set AnchorSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set.Records = append([]string(nil), set.Records...)
	s.anchors = append(s.anchors, set)

	return nil
}

// LatestAnchors implements `Store`
func (s *MemoryStore) LatestAnchors(_ context.Context) (*AnchorSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *AnchorSet

	for i := range s.anchors {
		if latest == nil || s.anchors[i].Version > latest.Version {
			latest = &s.anchors[i]
		}
	}

	if latest == nil {
		return nil, nil
	}

	res := *latest
	res.Records = append([]string(nil), latest.Records...)

	return &res, nil
}

// Audit implements `Store`
func (s *MemoryStore) Audit(_ context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, entry)

	return nil
}

// AuditTrail implements `Store`
func (s *MemoryStore) AuditTrail(_ context.Context, limit int) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]AuditEntry, len(s.audit))
	for i, e := range s.audit {
		res[len(s.audit)-1-i] = e
	}

	return limitEntries(res, limit), nil
}

// Close implements `Store`
func (s *MemoryStore) Close() error {
	return nil
}
