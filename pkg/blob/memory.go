package blob

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests. It records presign calls
// so tests can assert on issued URLs without an S3 endpoint.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	// HeadErr, when set, is returned by Head regardless of contents. Lets
	// tests simulate a blob store outage.
	HeadErr error
}

type memoryObject struct {
	body        []byte
	contentType string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

// PresignPut returns a fake URL embedding the key and TTL.
func (m *MemoryStore) PresignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blob.local/%s?sig=test&ct=%s&ttl=%d", key, contentType, int(ttl.Seconds())), nil
}

// Head returns the stored object size, or ErrNotFound.
func (m *MemoryStore) Head(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.HeadErr != nil {
		return 0, m.HeadErr
	}
	obj, ok := m.objects[key]
	if !ok {
		return 0, ErrNotFound
	}
	return int64(len(obj.body)), nil
}

// Download writes the stored object to destPath.
func (m *MemoryStore) Download(_ context.Context, key, destPath string) error {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return os.WriteFile(destPath, obj.body, 0o644)
}

// Put stores body at key.
func (m *MemoryStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: append([]byte(nil), body...), contentType: contentType}
	return nil
}

// Delete removes the object at key; missing keys are ignored.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Get returns the stored body for assertions in tests.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.body...), true
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
