package listing

import (
	"context"
	"sync"
	"testing"
	"time"

	"livetv-relay/work/config"
	"livetv-relay/work/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingResolver counts Resolve calls and serves a configurable listing.
type countingResolver struct {
	mu       sync.Mutex
	calls    int
	channels []types.Channel
	delay    time.Duration
	panics   bool
}

func (r *countingResolver) Resolve(ctx context.Context) []types.Channel {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.panics {
		panic("resolver blew up")
	}
	return r.channels
}

func (r *countingResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *countingResolver) setChannels(channels []types.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = channels
}

func cacheConfig(ttl time.Duration) *config.Config {
	return &config.Config{ListingTTL: ttl}
}

func someChannels(n int) []types.Channel {
	channels := make([]types.Channel, 0, n)
	for i := 0; i < n; i++ {
		channels = append(channels, types.Channel{
			ID:         string(rune('a' + i)),
			Name:       "Channel",
			Candidates: []string{"http://upstream.example/stream.m3u8"},
		})
	}
	return channels
}

func TestGetServesSameSnapshotUnderTTL(t *testing.T) {
	resolver := &countingResolver{channels: someChannels(3)}
	c := NewCache(cacheConfig(time.Hour), resolver)

	first := c.Get(context.Background(), false)
	second := c.Get(context.Background(), false)

	require.NotNil(t, first)
	assert.Same(t, first, second, "a fresh snapshot must be reused, not re-resolved")
	assert.Equal(t, 1, resolver.callCount())
}

func TestGetRefreshesAfterExpiry(t *testing.T) {
	resolver := &countingResolver{channels: someChannels(1)}
	c := NewCache(cacheConfig(10*time.Millisecond), resolver)

	first := c.Get(context.Background(), false)
	time.Sleep(25 * time.Millisecond)
	second := c.Get(context.Background(), false)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, resolver.callCount())
}

func TestGetForceBypassesTTL(t *testing.T) {
	resolver := &countingResolver{channels: someChannels(1)}
	c := NewCache(cacheConfig(time.Hour), resolver)

	c.Get(context.Background(), false)
	c.Get(context.Background(), true)

	assert.Equal(t, 2, resolver.callCount())
}

func TestConcurrentExpiryRunsOneRefresh(t *testing.T) {
	resolver := &countingResolver{channels: someChannels(2), delay: 30 * time.Millisecond}
	c := NewCache(cacheConfig(time.Hour), resolver)

	const callers = 16
	results := make([]*types.ListingSnapshot, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Get(context.Background(), false)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, resolver.callCount(), "concurrent callers must share a single in-flight refresh")
	for _, snap := range results {
		require.NotNil(t, snap)
		assert.Same(t, results[0], snap)
	}
}

func TestEmptyResolutionKeepsPreviousSnapshot(t *testing.T) {
	resolver := &countingResolver{channels: someChannels(3)}
	c := NewCache(cacheConfig(time.Hour), resolver)

	good := c.Get(context.Background(), true)
	require.Len(t, good.Channels, 3)

	resolver.setChannels(nil)
	degraded := c.Get(context.Background(), true)

	assert.Same(t, good, degraded, "an empty resolution must not wipe the last good listing")
	assert.Len(t, c.Current().Channels, 3)
}

func TestEmptyColdStartServesEmptySnapshot(t *testing.T) {
	resolver := &countingResolver{}
	c := NewCache(cacheConfig(time.Hour), resolver)

	snap := c.Get(context.Background(), true)

	require.NotNil(t, snap)
	assert.Empty(t, snap.Channels)
	assert.False(t, snap.FetchedAt.IsZero())
}

func TestResolverPanicIsContained(t *testing.T) {
	resolver := &countingResolver{channels: someChannels(2)}
	c := NewCache(cacheConfig(time.Hour), resolver)

	good := c.Get(context.Background(), true)

	resolver.panics = true
	var snap *types.ListingSnapshot
	require.NotPanics(t, func() {
		snap = c.Get(context.Background(), true)
	})
	assert.Same(t, good, snap)
}

func TestCurrentNeverTriggersRefresh(t *testing.T) {
	resolver := &countingResolver{channels: someChannels(1)}
	c := NewCache(cacheConfig(time.Hour), resolver)

	assert.Nil(t, c.Current())
	assert.Equal(t, 0, resolver.callCount())

	c.Get(context.Background(), false)
	assert.NotNil(t, c.Current())
	assert.Equal(t, 1, resolver.callCount())
}
