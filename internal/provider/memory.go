package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory object store. It backs the "memory" provider
// kind used by tests and by local smoke setups that have no real backend.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	// FailPuts makes every Put fail; tests use it to exercise mid-batch
	// failure handling.
	FailPuts bool
	// clock is bumped on every write so two writes in the same nanosecond
	// still produce strictly increasing modification times.
	clock time.Time
}

type memoryObject struct {
	data       []byte
	modifiedAt time.Time
	etag       string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) nextTime() time.Time {
	now := time.Now().UTC()
	if !now.After(m.clock) {
		now = m.clock.Add(time.Nanosecond)
	}
	m.clock = now
	return now
}

// Put stores an object.
func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPuts {
		return fmt.Errorf("memory store: puts disabled")
	}
	sum := sha256.Sum256(data)
	m.objects[key] = memoryObject{
		data:       data,
		modifiedAt: m.nextTime(),
		etag:       hex.EncodeToString(sum[:8]),
	}
	return nil
}

// Get returns an object's content.
func (m *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	obj, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memory store: object not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// List returns objects under a prefix sorted by key.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var infos []ObjectInfo
	for key, obj := range m.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		infos = append(infos, ObjectInfo{
			Key:        key,
			Size:       int64(len(obj.data)),
			ModifiedAt: obj.modifiedAt,
			ETag:       obj.etag,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete removes an object.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Test always succeeds.
func (m *MemoryStore) Test(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// NewMemoryClient wraps a MemoryStore in the full Client contract.
func NewMemoryClient(id, name, base string, store *MemoryStore) Client {
	return newObjectClient(id, name, base, Capabilities{
		SupportsBlobs: true,
		SupportsDelta: false,
	}, store, true)
}
