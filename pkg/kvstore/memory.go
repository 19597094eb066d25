package kvstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemory is a Store backed entirely by process memory, used by unit
// tests across the core and by local/dev runs that don't need durability.
type InMemory struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte
	order  map[string][]string // insertion order per table, for GetAll
}

// NewInMemory creates an empty in-memory Store.
func NewInMemory() *InMemory {
	return &InMemory{
		tables: make(map[string]map[string][]byte),
		order:  make(map[string][]string),
	}
}

func (s *InMemory) ensure(table string) map[string][]byte {
	t, ok := s.tables[table]
	if !ok {
		t = make(map[string][]byte)
		s.tables[table] = t
	}
	return t
}

// Insert implements Store. pk is accepted for interface parity with
// SQL-backed stores and ignored here since the in-memory table is already
// keyed by id alone.
func (s *InMemory) Insert(_ context.Context, table, _ string, id string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensure(table)
	if _, exists := t[id]; exists {
		return fmt.Errorf("kvstore: %s/%s already exists", table, id)
	}
	t[id] = blob
	s.order[table] = append(s.order[table], id)
	return nil
}

// Update implements Store.
func (s *InMemory) Update(_ context.Context, table, _ string, id string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensure(table)
	if _, exists := t[id]; !exists {
		return fmt.Errorf("kvstore: %s/%s not found", table, id)
	}
	t[id] = blob
	return nil
}

// GetByID implements Store.
func (s *InMemory) GetByID(_ context.Context, table, _ string, id string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[table]
	if !ok {
		return nil, false, nil
	}
	blob, ok := t[id]
	return blob, ok, nil
}

// GetAll implements Store, returning blobs in insertion order.
func (s *InMemory) GetAll(_ context.Context, table string, limit, offset int) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := append([]string(nil), s.order[table]...)
	t := s.tables[table]

	result := make([][]byte, 0, len(ids))
	for _, id := range ids {
		if blob, ok := t[id]; ok {
			result = append(result, blob)
		}
	}
	if offset > len(result) {
		offset = len(result)
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Delete implements Store.
func (s *InMemory) Delete(_ context.Context, table, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.ensure(table)
	delete(t, id)
	ids := s.order[table]
	for i, existing := range ids {
		if existing == id {
			s.order[table] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Count implements Store.
func (s *InMemory) Count(_ context.Context, table string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table]), nil
}

// Tables returns the names of every table with at least one row, sorted,
// for diagnostics and tests.
func (s *InMemory) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name, t := range s.tables {
		if len(t) == 0 {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
