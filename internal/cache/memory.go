package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// DefaultMaxEntries bounds a Memory cache created by NewMemory.
const DefaultMaxEntries = 300

// Memory is a process-local Cache used when no redis instance is configured.
// Once it holds maxEntries entries, Set drops expired entries and then a
// third of the rest.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries:    map[string]entry{},
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores a copy of value. A non-positive ttl keeps the entry until Clear.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	e := entry{value: stored}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.cull()
	}
	m.entries[key] = e
	return nil
}

// cull must be called with mu held.
func (m *Memory) cull() {
	now := m.now()
	for k, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	if len(m.entries) < m.maxEntries {
		return
	}

	drop := len(m.entries) / 3
	if drop == 0 {
		drop = 1
	}
	for k := range m.entries {
		if drop == 0 {
			break
		}
		delete(m.entries, k)
		drop--
	}
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = map[string]entry{}
	m.mu.Unlock()
	return nil
}
