package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a bounded in-process LRU
type MemoryStore struct {
	lru *lru.Cache[Key, memoryEntry]
	now func() time.Time
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore holding at most size entries
func NewMemoryStore(size int) (*MemoryStore, error) {
	c, err := lru.New[Key, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{lru: c, now: time.Now}, nil
}

func (m *MemoryStore) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	if err := validate(key); err != nil {
		return nil, false, err
	}
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value; a zero ttl never expires
func (m *MemoryStore) Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if err := validate(key); err != nil {
		return err
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(key, e)
	return nil
}

func (m *MemoryStore) Invalidate(ctx context.Context, key Key) error {
	if err := validate(key); err != nil {
		return err
	}
	m.lru.Remove(key)
	return nil
}

func (m *MemoryStore) InvalidateEntity(ctx context.Context, entity Entity) error {
	for _, k := range m.lru.Keys() {
		if k.Entity == entity {
			m.lru.Remove(k)
		}
	}
	return nil
}
