package cache_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/resilient-client/internal/cache"
)

var _ = Describe("MemoryStore", func() {
	var (
		clock *fakeClock
		store *cache.MemoryStore
		ctx   context.Context
	)

	BeforeEach(func() {
		clock = newFakeClock()
		store = cache.NewMemoryStore(0, clock.Now)
		ctx = context.Background()
	})

	entry := func(key string, ttl time.Duration) cache.Entry {
		return cache.Entry{Key: key, Payload: []byte(key), StoredAt: clock.Now(), TTL: ttl}
	}

	It("should return a stored entry until its TTL elapses", func() {
		Expect(store.Put(ctx, entry("k", time.Minute))).To(Succeed())

		clock.Advance(59 * time.Second)
		got, ok, err := store.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got.Payload).To(Equal([]byte("k")))

		clock.Advance(time.Second)
		_, ok, _ = store.Get(ctx, "k")
		Expect(ok).To(BeFalse())
	})

	It("should not share payload memory with callers", func() {
		stored := entry("k", time.Minute)
		Expect(store.Put(ctx, stored)).To(Succeed())
		stored.Payload[0] = 'X'

		got, _, _ := store.Get(ctx, "k")
		got.Payload[0] = 'Y'

		again, _, _ := store.Get(ctx, "k")
		Expect(again.Payload).To(Equal([]byte("k")))
	})

	It("should remove expired entries on lookup", func() {
		Expect(store.Put(ctx, entry("k", time.Second))).To(Succeed())
		clock.Advance(2 * time.Second)

		_, ok, _ := store.Get(ctx, "k")

		Expect(ok).To(BeFalse())
		Expect(store.Stats()).To(Equal(cache.Stats{Entries: 0, Expirations: 1}))
	})

	It("should overwrite an entry with a newer response", func() {
		Expect(store.Put(ctx, entry("k", time.Minute))).To(Succeed())
		newer := entry("k", time.Minute)
		newer.Payload = []byte("newer")
		Expect(store.Put(ctx, newer)).To(Succeed())

		got, _, _ := store.Get(ctx, "k")
		Expect(got.Payload).To(Equal([]byte("newer")))
		Expect(store.Stats().Entries).To(Equal(1))
	})

	It("should evict the oldest entry when full", func() {
		store = cache.NewMemoryStore(2, clock.Now)
		Expect(store.Put(ctx, entry("a", time.Hour))).To(Succeed())
		clock.Advance(time.Second)
		Expect(store.Put(ctx, entry("b", time.Hour))).To(Succeed())
		clock.Advance(time.Second)
		Expect(store.Put(ctx, entry("c", time.Hour))).To(Succeed())

		_, ok, _ := store.Get(ctx, "a")
		Expect(ok).To(BeFalse())
		_, ok, _ = store.Get(ctx, "c")
		Expect(ok).To(BeTrue())
		Expect(store.Stats().Evictions).To(BeEquivalentTo(1))
	})

	It("should sweep every expired entry", func() {
		Expect(store.Put(ctx, entry("short", time.Second))).To(Succeed())
		Expect(store.Put(ctx, entry("long", time.Hour))).To(Succeed())
		clock.Advance(time.Minute)

		Expect(store.Sweep()).To(Equal(1))
		Expect(store.Stats().Entries).To(Equal(1))
	})

	It("should sweep in the background until cancelled", func() {
		sweepCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		Expect(store.Put(ctx, entry("short", time.Second))).To(Succeed())
		clock.Advance(time.Minute)

		store.StartSweeper(sweepCtx, 5*time.Millisecond, discardLogger())

		Eventually(func() int { return store.Stats().Entries }).Should(BeZero())
	})

	It("should delete entries", func() {
		Expect(store.Put(ctx, entry("k", time.Minute))).To(Succeed())
		Expect(store.Delete(ctx, "k")).To(Succeed())

		_, ok, _ := store.Get(ctx, "k")
		Expect(ok).To(BeFalse())
	})
})
