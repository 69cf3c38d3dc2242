package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

// ErrObjectNotFound is returned by the memory store for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// MemoryObjectStore keeps objects in memory. It backs tests.
type MemoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutErr forces the next Put to fail, for exercising failure paths.
	PutErr error
}

// NewMemoryObjectStore constructs an empty in-memory object store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string][]byte)}
}

// Put stores the object bytes under key.
func (m *MemoryObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

// PresignGet returns a synthetic URL for a stored key.
func (m *MemoryObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", ErrObjectNotFound
	}
	return "memory://" + key, nil
}

// Delete removes an object; unknown keys are not an error.
func (m *MemoryObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Has reports whether a key is stored. Test helper.
func (m *MemoryObjectStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored objects. Test helper.
func (m *MemoryObjectStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
