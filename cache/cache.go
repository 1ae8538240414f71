// Package cache holds the last-known-good snapshot per symbol. Entries are
// overwritten only by successful fetches and never expire; a stale snapshot
// stays visible until upstream recovers.
package cache

import (
	"sync"

	"marketrelay/models"
)

// SnapshotCache is a concurrency-safe symbol -> latest snapshot map.
type SnapshotCache struct {
	mu        sync.RWMutex
	snapshots map[string]*models.TickerUpdate
}

func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{
		snapshots: make(map[string]*models.TickerUpdate),
	}
}

// Set unconditionally overwrites the cached snapshot for a symbol.
func (c *SnapshotCache) Set(symbol string, update *models.TickerUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[symbol] = update
}

// Get returns the cached snapshot for a symbol, if one exists yet.
func (c *SnapshotCache) Get(symbol string) (*models.TickerUpdate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	update, ok := c.snapshots[symbol]
	return update, ok
}

// Len reports how many symbols currently have a cached snapshot.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}
