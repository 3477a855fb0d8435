// Package idempotencycache holds completed transfer outcomes keyed by
// idempotency key so retried requests replay the original response.
package idempotencycache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/titandynamix/payments/internal/domain"
)

// DefaultTTL is how long a cached outcome stays replayable.
const DefaultTTL = 24 * time.Hour

// DefaultSweepInterval is how often the background sweeper purges
// expired records.
const DefaultSweepInterval = time.Hour

type record struct {
	transfer  domain.Transfer
	expiresAt time.Time
}

// Cache is an in-memory TTL cache of transfer outcomes. It is safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	records map[string]record
	ttl     time.Duration
	now     func() time.Time
}

// New returns an empty cache with the given TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		records: make(map[string]record),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached transfer for key. An expired record is evicted
// on the spot and reported as absent.
func (c *Cache) Get(key string) (domain.Transfer, bool) {
	c.mu.RLock()
	rec, ok := c.records[key]
	c.mu.RUnlock()

	if !ok {
		return domain.Transfer{}, false
	}

	if c.now().After(rec.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; Put may have refreshed the key.
		if cur, ok := c.records[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.records, key)
		}
		c.mu.Unlock()

		return domain.Transfer{}, false
	}

	return rec.transfer, true
}

// Put stores a transfer outcome under key, replacing any previous record
// and restarting its TTL.
func (c *Cache) Put(key string, transfer domain.Transfer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[key] = record{
		transfer:  transfer,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Purge removes every expired record and returns how many were dropped.
func (c *Cache) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0

	for key, rec := range c.records {
		if now.After(rec.expiresAt) {
			delete(c.records, key)
			purged++
		}
	}

	return purged
}

// Len returns the number of records currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}

// StartSweeper purges expired records every interval until ctx is done.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		l := zerolog.Ctx(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if purged := c.Purge(); purged > 0 {
					l.Debug().Int("purged", purged).Msg("idempotency cache sweep")
				}
			}
		}
	}()
}
