// Package memory provides a thread-safe in-memory implementation of storage.Store.
package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mkhatri/fragmentd/storage"
)

// Store is a thread-safe in-memory implementation of storage.Store.
// Suitable for testing, demos, and single-process use cases.
type Store struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string]json.RawMessage)}
}

func (s *Store) Get(id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, storage.ErrNotFound)
	}
	return append(json.RawMessage(nil), doc...), nil
}

func (s *Store) Put(id string, doc json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = append(json.RawMessage(nil), doc...)
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
