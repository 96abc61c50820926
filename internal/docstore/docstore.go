// Package docstore archives uploaded source documents so an import can be
// audited or replayed after the fact.
package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store archives raw document bytes under a caller-chosen object name and
// returns an opaque URI for later retrieval.
type Store interface {
	Archive(ctx context.Context, name string, data []byte) (string, error)
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// MemoryStore keeps archived documents in process memory. Used in tests
// and in deployments that opt out of bucket storage.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Archive(ctx context.Context, name string, data []byte) (string, error) {
	uri := fmt.Sprintf("mem://%d/%s", time.Now().UnixNano(), name)
	s.mu.Lock()
	s.docs[uri] = append([]byte(nil), data...)
	s.mu.Unlock()
	return uri, nil
}

func (s *MemoryStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[uri]
	if !ok {
		return nil, fmt.Errorf("fetch %q: not found", uri)
	}
	return append([]byte(nil), data...), nil
}
