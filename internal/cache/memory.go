package cache

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"
)

type Stats struct {
	Entries     int   `json:"entries"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
}

// MemoryStore is the in-process tier. A positive maxEntries bounds it by
// evicting the oldest entry on overflow.
type MemoryStore struct {
	mutex       sync.Mutex
	entries     map[string]Entry
	maxEntries  int
	evictions   int64
	expirations int64
	now         func() time.Time
}

func NewMemoryStore(maxEntries int, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
		now:        now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	if entry.Expired(s.now()) {
		delete(s.entries, key)
		s.expirations++
		return Entry{}, false, nil
	}
	entry.Payload = bytes.Clone(entry.Payload)
	return entry, true, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.entries[entry.Key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	entry.Payload = bytes.Clone(entry.Payload)
	s.entries[entry.Key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep removes every expired entry and returns how many it removed.
func (s *MemoryStore) Sweep() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	s.expirations += int64(removed)
	return removed
}

// StartSweeper runs Sweep on every tick until ctx is cancelled.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					logger.Debug("Swept expired cache entries", slog.Int("removed", n))
				}
			}
		}
	}()
}

func (s *MemoryStore) Stats() Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return Stats{
		Entries:     len(s.entries),
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
}

func (s *MemoryStore) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range s.entries {
		if oldestKey == "" || entry.StoredAt.Before(oldest) {
			oldestKey, oldest = key, entry.StoredAt
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
		s.evictions++
	}
}
