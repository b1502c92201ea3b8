package cache

import (
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

// RenderedCache holds rendered text responses (the M3U playlist, the status
// document) so repeat requests inside the listing TTL don't re-render from the
// snapshot. Entries are cost-weighted by their byte length and expire on the
// same TTL as the listing they were rendered from.
type RenderedCache struct {
	cache    *ristretto.Cache[uint64, string]
	duration time.Duration
}

func NewRenderedCache(duration time.Duration) *RenderedCache {
	c, err := ristretto.NewCache(&ristretto.Config[uint64, string]{
		NumCounters: 1000,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		panic(err)
	}

	return &RenderedCache{
		cache:    c,
		duration: duration,
	}
}

func (rc *RenderedCache) Get(key string) (string, bool) {
	return rc.cache.Get(hashKey(key))
}

func (rc *RenderedCache) Set(key, value string) {
	rc.cache.SetWithTTL(hashKey(key), value, int64(len(value)), rc.duration)
}

// Invalidate drops a single rendered entry, used when a forced refresh makes
// the cached rendering stale before its TTL.
func (rc *RenderedCache) Invalidate(key string) {
	rc.cache.Del(hashKey(key))
}

func (rc *RenderedCache) Close() {
	rc.cache.Close()
}

func hashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}
