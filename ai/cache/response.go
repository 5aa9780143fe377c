// Package cache holds the global query-to-reply cache used by one-shot
// recommendations.
package cache

import (
	"context"
	"log/slog"
	"sync"
)

// Backend persists cache entries across restarts.
type Backend interface {
	// Put stores reply for query unless an entry already exists and returns
	// the reply that is stored.
	Put(ctx context.Context, query, reply string) (string, error)
	// All returns every stored entry.
	All(ctx context.Context) (map[string]string, error)
}

// ResponseCache maps raw query strings to replies. Keys are compared
// byte-for-byte; entries never expire and are never evicted.
type ResponseCache struct {
	entries map[string]string
	backend Backend
	mu      sync.RWMutex
}

// NewResponseCache creates an empty cache. backend may be nil.
func NewResponseCache(backend Backend) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]string),
		backend: backend,
	}
}

// Warm loads every persisted entry into memory.
func (c *ResponseCache) Warm(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	all, err := c.backend.All(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for q, r := range all {
		if _, ok := c.entries[q]; !ok {
			c.entries[q] = r
		}
	}
	slog.Info("Cache: response cache warmed", "entries", len(c.entries))
	return nil
}

// Get returns the cached reply for query.
func (c *ResponseCache) Get(query string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reply, ok := c.entries[query]
	return reply, ok
}

// Put inserts reply for query if absent and returns the reply now cached.
// A backend failure is logged; the in-memory entry is kept.
func (c *ResponseCache) Put(ctx context.Context, query, reply string) string {
	c.mu.Lock()
	if existing, ok := c.entries[query]; ok {
		c.mu.Unlock()
		return existing
	}
	c.entries[query] = reply
	c.mu.Unlock()

	if c.backend != nil {
		if _, err := c.backend.Put(ctx, query, reply); err != nil {
			slog.Warn("Cache: failed to persist response", "error", err)
		}
	}
	return reply
}

// Len returns the number of cached entries.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
