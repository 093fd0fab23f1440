// Package cache provides a small key-value cache used to deduplicate
// signal processing. The in-process implementation is the default; the
// Redis implementation shares state across restarts.
package cache

import (
	"context"
	"sync"
	"time"
)

// Cache stores opaque values with a per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process TTL cache with a soft entry cap. When the cap
// is hit, expired entries are purged; if none are expired the oldest
// entry goes.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	order   []string
	max     int
	now     func() time.Time
}

// NewMemory creates a memory cache holding at most max entries.
// max <= 0 means unbounded.
func NewMemory(max int) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		max:     max,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists {
		if m.max > 0 && len(m.entries) >= m.max {
			m.evictLocked()
		}
		m.order = append(m.order, key)
	}
	m.entries[key] = entry{value: value, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// evictLocked drops expired entries, or the oldest live one if nothing
// has expired. Caller holds mu.
func (m *Memory) evictLocked() {
	now := m.now()
	kept := m.order[:0]
	purged := false
	for _, key := range m.order {
		e, ok := m.entries[key]
		if !ok {
			purged = true
			continue
		}
		if now.After(e.expiresAt) {
			delete(m.entries, key)
			purged = true
			continue
		}
		kept = append(kept, key)
	}
	m.order = kept
	if !purged && len(m.order) > 0 {
		delete(m.entries, m.order[0])
		m.order = m.order[1:]
	}
}
