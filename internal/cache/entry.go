package cache

import (
	"context"
	"time"
)

// Entry is a stored response. Entries are never modified after Put; a newer
// response for the same key replaces the whole entry.
type Entry struct {
	Key        string        `json:"key"`
	Payload    []byte        `json:"payload"`
	StatusCode int           `json:"status_code"`
	Class      string        `json:"class,omitempty"`
	StoredAt   time.Time     `json:"stored_at"`
	TTL        time.Duration `json:"ttl"`
}

func (e Entry) ExpiresAt() time.Time {
	return e.StoredAt.Add(e.TTL)
}

// Expired reports whether the entry's TTL has fully elapsed at now.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Age is how long ago the entry was stored.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Store is one cache tier. Get reports only unexpired entries.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key string) error
}
