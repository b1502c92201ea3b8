package listing

import (
	"context"
	"sync/atomic"
	"time"

	"livetv-relay/work/config"
	"livetv-relay/work/logger"
	"livetv-relay/work/metrics"
	"livetv-relay/work/types"

	"golang.org/x/sync/singleflight"
)

// ChannelResolver produces the normalized channel listing. It is the source
// resolver in production and a stub in tests.
type ChannelResolver interface {
	Resolve(ctx context.Context) []types.Channel
}

// Cache wraps the source resolver with a TTL. It serves the last good
// snapshot while it is fresh, refreshes it through a single-flight group so
// concurrent expiry never triggers duplicate resolver runs, and degrades to
// the previous snapshot (or an empty one on first run) when resolution
// produces nothing. Callers always receive a usable snapshot, never nil and
// never a panic.
type Cache struct {
	config   *config.Config
	resolver ChannelResolver
	snapshot atomic.Pointer[types.ListingSnapshot]
	group    singleflight.Group
}

func NewCache(cfg *config.Config, resolver ChannelResolver) *Cache {
	return &Cache{
		config:   cfg,
		resolver: resolver,
	}
}

// Get returns the current listing snapshot.
//
// With force false, a snapshot younger than the configured TTL is returned
// immediately with no I/O. Otherwise a refresh runs; concurrent callers in the
// same expiry window share one in-flight refresh and all receive its result.
func (c *Cache) Get(ctx context.Context, force bool) *types.ListingSnapshot {
	if !force {
		if snap := c.snapshot.Load(); snap != nil && snap.Age() < c.config.ListingTTL {
			return snap
		}
	}

	result, _, shared := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx), nil
	})
	if shared {
		logger.Debug("{listing - Get} refresh result shared with concurrent callers")
	}

	return result.(*types.ListingSnapshot)
}

// Current returns the latest snapshot without triggering any refresh, or nil
// when no resolution has completed yet. Read-only consumers like the health
// prober use this to avoid forcing I/O on their own schedule.
func (c *Cache) Current() *types.ListingSnapshot {
	return c.snapshot.Load()
}

// refresh runs the resolver and swaps in a new snapshot. The resolver
// contractually never fails, but refresh still guards against a panic or an
// empty result: the previous snapshot is kept when one exists, and an empty
// snapshot is served on a cold start so downstream callers always get a value.
func (c *Cache) refresh(ctx context.Context) *types.ListingSnapshot {
	channels := c.resolveSafely(ctx)

	if len(channels) == 0 {
		if prev := c.snapshot.Load(); prev != nil {
			logger.Warn("{listing - refresh} resolution produced no channels, keeping previous snapshot (%d channels, age %s)",
				len(prev.Channels), prev.Age().Round(time.Second))
			metrics.ListingRefreshes.WithLabelValues("fallback_previous").Inc()
			return prev
		}

		logger.Warn("{listing - refresh} resolution produced no channels and no previous snapshot exists, serving empty listing")
		metrics.ListingRefreshes.WithLabelValues("fallback_empty").Inc()
		empty := &types.ListingSnapshot{FetchedAt: time.Now()}
		c.snapshot.Store(empty)
		return empty
	}

	snap := &types.ListingSnapshot{
		FetchedAt: time.Now(),
		Channels:  channels,
	}
	c.snapshot.Store(snap)

	metrics.ListingRefreshes.WithLabelValues("ok").Inc()
	metrics.ChannelsInSnapshot.Set(float64(len(channels)))

	logger.Info("{listing - refresh} listing refreshed: %d channels", len(channels))
	return snap
}

// resolveSafely isolates the cache from a misbehaving resolver: a panic is
// logged and treated as an empty resolution.
func (c *Cache) resolveSafely(ctx context.Context) (channels []types.Channel) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("{listing - resolveSafely} resolver panicked: %v", r)
			channels = nil
		}
	}()
	return c.resolver.Resolve(ctx)
}
