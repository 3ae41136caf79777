package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	data        []byte
	contentType string
	updated     time.Time
}

// Memory is an in-process Store. It also records write counts per key, which
// tests use to assert that terminal projects are left untouched.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryEntry
	writes  map[string]int
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects: make(map[string]memoryEntry),
		writes:  make(map[string]int),
		now:     time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.objects[key]
	if !ok {
		return Object{}, fmt.Errorf("get %s: %w", key, ErrNotFound)
	}
	return Object{
		Key:         key,
		Data:        append([]byte(nil), entry.data...),
		ContentType: entry.contentType,
		Updated:     entry.updated,
	}, nil
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, data, contentType)
	return nil
}

func (m *Memory) PutIfAbsent(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; exists {
		return fmt.Errorf("put %s: %w", key, ErrPreconditionFailed)
	}
	m.store(key, data, contentType)
	return nil
}

func (m *Memory) store(key string, data []byte, contentType string) {
	m.objects[key] = memoryEntry{
		data:        append([]byte(nil), data...),
		contentType: normalizeContentType(contentType),
		updated:     m.now().UTC(),
	}
	m.writes[key]++
}

func (m *Memory) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ObjectInfo
	for key, entry := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(entry.data)), Updated: entry.updated})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Writes returns how many times key has been written.
func (m *Memory) Writes(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[key]
}
