package storage

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Package storage provides the persistent share-count cache.

// KeyPrefix namespaces cached counts so they never collide with unrelated keys.
const KeyPrefix = "OpenShare-"

// Store persists the last observed count per source identifier.
type Store interface {
	Close() error
	GetCount(id string) (int64, bool, error)
	SetCount(id string, count int64) error
}

// Key returns the storage key for a source identifier.
func Key(id string) string {
	return KeyPrefix + id
}

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "memory":
		return NewMemoryStore(), nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func encodeCount(count int64) []byte {
	return []byte(strconv.FormatInt(count, 10))
}

func decodeCount(value []byte) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(value)), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

type noopStore struct{}

func (noopStore) Close() error                         { return nil }
func (noopStore) GetCount(string) (int64, bool, error) { return 0, false, nil }
func (noopStore) SetCount(string, int64) error         { return nil }

// MemoryStore keeps counts in process memory. Values use the same encoding as
// the persistent backend.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetCount(id string) (int64, bool, error) {
	if id == "" {
		return 0, false, nil
	}
	m.mu.RLock()
	raw, ok := m.values[Key(id)]
	m.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	n, ok := decodeCount(raw)
	return n, ok, nil
}

func (m *MemoryStore) SetCount(id string, count int64) error {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	m.values[Key(id)] = encodeCount(count)
	m.mu.Unlock()
	return nil
}
