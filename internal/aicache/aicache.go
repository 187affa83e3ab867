// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package aicache caches AI replies keyed by inquiry fingerprint, so
// repeated inquiries for the same data skip the provider round trip.
package aicache

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bonial-oss/vuln-assess/internal/ai"
)

type entry struct {
	reply     ai.Reply
	expiresAt time.Time
}

// Cache is an in-memory TTL cache for AI replies. Expired entries are
// evicted lazily on both read and write. When the cache is at capacity,
// one arbitrary entry is removed; this is intentionally not LRU, to stay
// behavior-compatible with existing deployments.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
}

// Stats describes the cache contents at a point in time.
type Stats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}

// New creates a cache holding up to maxEntries replies for ttl each.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Store caches a reply under the given fingerprint key.
func (c *Cache) Store(key string, reply ai.Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpired()

	if len(c.entries) >= c.maxEntries {
		for victim := range c.entries {
			log.Debug().Str("key", victim).Msg("reply cache full, evicting entry")
			delete(c.entries, victim)
			break
		}
	}

	c.entries[key] = entry{
		reply:     reply,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Retrieve returns the cached reply for key, or false on miss. An expired
// entry counts as a miss and is removed.
func (c *Cache) Retrieve(key string) (ai.Reply, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return ai.Reply{}, false
	}
	if !time.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return ai.Reply{}, false
	}
	return e.reply, true
}

// Contains reports whether key holds an unexpired entry, without touching it.
func (c *Cache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return ok && time.Now().Before(e.expiresAt)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.entries)
	c.entries = make(map[string]entry)
	log.Debug().Int("entries", count).Msg("reply cache cleared")
}

// Statistics returns a snapshot of the cache contents.
func (c *Cache) Statistics() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := time.Now()
	var expired int
	for _, e := range c.entries {
		if !now.Before(e.expiresAt) {
			expired++
		}
	}
	return Stats{
		TotalEntries:   len(c.entries),
		ExpiredEntries: expired,
		ActiveEntries:  len(c.entries) - expired,
	}
}

// evictExpired removes all expired entries. Callers must hold the write lock.
func (c *Cache) evictExpired() {
	now := time.Now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
