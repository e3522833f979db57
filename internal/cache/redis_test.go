package cache_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/resilient-client/internal/cache"
)

var _ = Describe("RedisStore", func() {
	var (
		server *miniredis.Miniredis
		client *redis.Client
		clock  *fakeClock
		store  *cache.RedisStore
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		server, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(server.Close)

		client = redis.NewClient(&redis.Options{Addr: server.Addr()})
		DeferCleanup(client.Close)

		clock = newFakeClock()
		store = cache.NewRedisStore(client, "rc:", clock.Now)
		ctx = context.Background()
	})

	It("should round-trip an entry under the prefixed key", func() {
		entry := cache.Entry{
			Key:        "abc",
			Payload:    []byte(`{"id":1}`),
			StatusCode: 200,
			Class:      "products",
			StoredAt:   clock.Now(),
			TTL:        time.Minute,
		}
		Expect(store.Put(ctx, entry)).To(Succeed())

		Expect(server.Exists("rc:abc")).To(BeTrue())
		Expect(server.TTL("rc:abc")).To(Equal(time.Minute))

		got, ok, err := store.Get(ctx, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(got.Payload).To(Equal(entry.Payload))
		Expect(got.Class).To(Equal("products"))
		Expect(got.StoredAt.Equal(entry.StoredAt)).To(BeTrue())
	})

	It("should report a miss for unknown keys", func() {
		_, ok, err := store.Get(ctx, "missing")

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("should let Redis expire the key with the entry", func() {
		Expect(store.Put(ctx, cache.Entry{Key: "k", StoredAt: clock.Now(), TTL: time.Second})).To(Succeed())

		server.FastForward(2 * time.Second)

		_, ok, err := store.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("should skip entries that are already expired", func() {
		Expect(store.Put(ctx, cache.Entry{Key: "old", StoredAt: clock.Now().Add(-time.Hour), TTL: time.Minute})).To(Succeed())

		Expect(server.Exists("rc:old")).To(BeFalse())
	})

	It("should surface connection errors", func() {
		server.Close()

		_, _, err := store.Get(ctx, "k")
		Expect(err).To(HaveOccurred())
	})

	It("should delete keys", func() {
		Expect(store.Put(ctx, cache.Entry{Key: "k", StoredAt: clock.Now(), TTL: time.Minute})).To(Succeed())
		Expect(store.Delete(ctx, "k")).To(Succeed())

		Expect(server.Exists("rc:k")).To(BeFalse())
	})
})
