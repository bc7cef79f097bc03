// Package drivers provides the storage backends behind the configuration hub.
package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/memohai/accelerator/internal/configdoc"
	"github.com/memohai/accelerator/internal/hub"
)

// MemoryStore keeps documents in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[configdoc.Type]map[string]configdoc.Document
	order  map[configdoc.Type][]string
	active map[configdoc.Type]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   map[configdoc.Type]map[string]configdoc.Document{},
		order:  map[configdoc.Type][]string{},
		active: map[configdoc.Type]string{},
	}
}

// Insert implements hub.Store.
func (s *MemoryStore) Insert(_ context.Context, doc configdoc.Document) (configdoc.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.docs[doc.Type]
	if !ok {
		versions = map[string]configdoc.Document{}
		s.docs[doc.Type] = versions
	}
	if _, exists := versions[doc.Version]; exists {
		return configdoc.Document{}, hub.ErrExists
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.Active = false
	doc = doc.Clone()
	versions[doc.Version] = doc
	s.order[doc.Type] = append(s.order[doc.Type], doc.Version)
	return doc.Clone(), nil
}

// Get implements hub.Store.
func (s *MemoryStore) Get(_ context.Context, t configdoc.Type, version string) (configdoc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[t][version]
	if !ok {
		return configdoc.Document{}, hub.ErrNotFound
	}
	return doc.Clone(), nil
}

// List implements hub.Store.
func (s *MemoryStore) List(_ context.Context, t configdoc.Type) ([]configdoc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.order[t]
	out := make([]configdoc.Document, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		out = append(out, s.docs[t][order[i]].Clone())
	}
	return out, nil
}

// Active implements hub.Store.
func (s *MemoryStore) Active(_ context.Context, t configdoc.Type) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.active[t]
	if !ok {
		return "", hub.ErrNoActive
	}
	return version, nil
}

// SetActive implements hub.Store.
func (s *MemoryStore) SetActive(_ context.Context, t configdoc.Type, version string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[t][version]; !ok {
		return "", hub.ErrNotFound
	}
	previous := s.active[t]
	s.active[t] = version
	return previous, nil
}

// Close implements hub.Store.
func (s *MemoryStore) Close() error {
	return nil
}
