package cache

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const DefaultTTL = 60 * time.Second

type Settings struct {
	DefaultTTL time.Duration
	// ClassTTLs maps a request class (videos, products, ...) to its TTL.
	ClassTTLs  map[string]time.Duration
	MaxEntries int
	Now        func() time.Time
}

// Cache looks entries up in memory first and then in the optional remote
// tier. Remote failures are logged and treated as misses.
type Cache struct {
	memory   *MemoryStore
	remote   Store
	ttls     map[string]time.Duration
	fallback time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// New builds a cache. remote may be nil.
func New(settings Settings, remote Store, logger *slog.Logger) *Cache {
	now := settings.Now
	if now == nil {
		now = time.Now
	}
	fallback := settings.DefaultTTL
	if fallback <= 0 {
		fallback = DefaultTTL
	}

	ttls := make(map[string]time.Duration, len(settings.ClassTTLs))
	for class, ttl := range settings.ClassTTLs {
		if ttl > 0 {
			ttls[class] = ttl
		}
	}

	return &Cache{
		memory:   NewMemoryStore(settings.MaxEntries, now),
		remote:   remote,
		ttls:     ttls,
		fallback: fallback,
		now:      now,
		logger:   logger,
	}
}

// TTL returns the time-to-live for a request class. Unknown classes get the
// default.
func (c *Cache) TTL(class string) time.Duration {
	if ttl, ok := c.ttls[class]; ok {
		return ttl
	}
	return c.fallback
}

// Get returns an unexpired entry for key.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool) {
	if entry, ok, _ := c.memory.Get(ctx, key); ok {
		return entry, true
	}
	if c.remote == nil {
		return Entry{}, false
	}

	entry, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Remote cache lookup failed", slog.String("key", key), slog.Any("error", err))
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	_ = c.memory.Put(ctx, entry)
	return entry, true
}

// Put stores payload under key for ttl.
func (c *Cache) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	c.PutEntry(ctx, Entry{Key: key, Payload: payload, StatusCode: http.StatusOK, TTL: ttl})
}

// PutEntry stores entry, stamping StoredAt and defaulting the TTL from the
// entry's class.
func (c *Cache) PutEntry(ctx context.Context, entry Entry) {
	if entry.StoredAt.IsZero() {
		entry.StoredAt = c.now()
	}
	if entry.TTL <= 0 {
		entry.TTL = c.TTL(entry.Class)
	}
	entry.Payload = append([]byte(nil), entry.Payload...)

	_ = c.memory.Put(ctx, entry)

	if c.remote == nil {
		return
	}
	if err := c.remote.Put(ctx, entry); err != nil {
		c.logger.Warn("Remote cache write failed", slog.String("key", entry.Key), slog.Any("error", err))
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	_ = c.memory.Delete(ctx, key)
	if c.remote == nil {
		return
	}
	if err := c.remote.Delete(ctx, key); err != nil {
		c.logger.Warn("Remote cache delete failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	c.memory.StartSweeper(ctx, interval, c.logger)
}

func (c *Cache) Stats() Stats {
	return c.memory.Stats()
}
