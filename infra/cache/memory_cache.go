package cache

import (
	"context"
	"sync"
	"time"

	"github.com/p2pwallet/wallet/pkg/domain/transfer"
)

type memoryEntry struct {
	result    transfer.Result
	expiresAt time.Time
}

// MemoryResultCache is a process-local ResultCache for single-instance
// deployments and tests. Expired entries are dropped lazily on read.
type MemoryResultCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryResultCache creates an empty MemoryResultCache.
func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{entries: make(map[string]memoryEntry)}
}

// Get returns the cached result for key, or (nil, nil) on a miss.
func (m *MemoryResultCache) Get(_ context.Context, key string) (*transfer.Result, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, nil
	}
	result := entry.result
	return &result, nil
}

// Set stores the result for key with the given TTL.
func (m *MemoryResultCache) Set(
	_ context.Context,
	key string,
	result *transfer.Result,
	ttl time.Duration,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{result: *result, expiresAt: time.Now().Add(ttl)}
	return nil
}
