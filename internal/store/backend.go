// Package store persists the three logical documents (users, event log, archive)
// behind a load/save backend and serializes every mutation per document.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned for operations submitted after Close
var ErrClosed = errors.New("store is closed")

// Backend loads and saves whole named documents. Load returns (nil, nil) when the
// document does not exist yet.
type Backend interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// MemoryBackend keeps documents in process memory
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

// Load implements Backend
func (m *MemoryBackend) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.docs[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Save implements Backend
func (m *MemoryBackend) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = append([]byte(nil), data...)
	return nil
}
