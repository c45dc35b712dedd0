package cache

import (
	"context"
	"sync"
	"time"

	"github.com/md-rashed-zaman/timegrid/services/availability-service/internal/model"
)

// Memory is the single-process cache backend: a TTL map with a small
// entry cap. Suitable for one-replica deployments and tests; multi-replica
// deployments use the Redis backend so invalidation reaches every replica.
type Memory struct {
	mu         sync.RWMutex
	now        func() time.Time
	maxEntries int
	entries    map[string]memoryEntry
}

type memoryEntry struct {
	key       Key
	entry     Entry
	expiresAt time.Time
}

func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &Memory{
		now:        time.Now,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),
	}
}

func (c *Memory) Get(_ context.Context, key Key) (Entry, bool, error) {
	k := key.String()
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, k)
		c.mu.Unlock()
		return Entry{}, false, nil
	}
	return e.entry, true, nil
}

func (c *Memory) Put(_ context.Context, key Key, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key.String()] = memoryEntry{key: key, entry: entry, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *Memory) Invalidate(_ context.Context, organizerID string, dateRange *model.DateRange) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.key.OrganizerID != organizerID {
			continue
		}
		if dateRange == nil || e.key.Range().Intersects(*dateRange) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *Memory) cleanupLocked() {
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *Memory) evictOneLocked() {
	for k := range c.entries {
		delete(c.entries, k)
		return
	}
}
