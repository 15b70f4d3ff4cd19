// Package cache provides an in-memory, read-through cache of bot
// configuration snapshots keyed by bot id.
//
// Get consults the cache first and falls back to the injected loader on a
// miss, populating the entry with a TTL before returning. Invalidate removes
// the entry and must be called by every mutation path immediately after the
// underlying write commits; invalidating before the commit (or not at all)
// opens a stale-read window.
//
// The cache is process-local and guarded by a single mutex, mirroring the
// keyed-state maps used elsewhere in this codebase. Two workers racing on the
// same cold key may both hit the loader; the last write wins, which is
// harmless because both load the same committed row.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rmacedo/go-bot-relay/internal/domain"
)

// DefaultTTL bounds staleness when an invalidation is missed (e.g. a write
// from another process). Five minutes matches the original deployment.
const DefaultTTL = 5 * time.Minute

// Loader fetches a bot configuration from the backing store. It returns
// (nil, nil) when the bot does not exist so absence can be distinguished
// from store failures.
type Loader func(ctx context.Context, botID string) (*domain.Bot, error)

// entry is one cached snapshot with its expiry deadline.
type entry struct {
	bot       *domain.Bot
	expiresAt time.Time
}

// ConfigCache is a read-through cache of Bot snapshots. Safe for concurrent use.
type ConfigCache struct {
	loader Loader
	ttl    time.Duration

	mu       sync.Mutex
	entries  map[string]*entry
	cleanupN uint64
}

// New constructs a ConfigCache with the given loader and TTL. A non-positive
// ttl falls back to DefaultTTL.
func New(loader Loader, ttl time.Duration) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ConfigCache{
		loader:  loader,
		ttl:     ttl,
		entries: make(map[string]*entry),
	}
}

// Get returns the cached configuration for botID, loading and caching it on a
// miss. Absent bots return (nil, nil) and are not negatively cached, so a
// newly registered bot becomes visible on the next call.
func (c *ConfigCache) Get(ctx context.Context, botID string) (*domain.Bot, error) {
	now := time.Now()

	c.mu.Lock()
	// Opportunistic sweep of expired entries after a threshold of lookups,
	// before touching the requested key, so an expired entry is dropped even
	// when it is the one being fetched.
	c.cleanupN++
	if c.cleanupN >= 5000 {
		for k, e := range c.entries {
			if !now.Before(e.expiresAt) {
				delete(c.entries, k)
			}
		}
		c.cleanupN = 0
	}
	if e, ok := c.entries[botID]; ok && now.Before(e.expiresAt) {
		bot := e.bot
		c.mu.Unlock()
		return bot, nil
	}
	c.mu.Unlock()

	bot, err := c.loader(ctx, botID)
	if err != nil || bot == nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[botID] = &entry{bot: bot, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return bot, nil
}

// Invalidate drops the cached entry for botID and reports how many entries
// were removed (0 or 1).
func (c *ConfigCache) Invalidate(botID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[botID]; ok {
		delete(c.entries, botID)
		return 1
	}
	return 0
}

// Len reports the number of resident entries, expired or not. Test helper
// and ops metric.
func (c *ConfigCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
