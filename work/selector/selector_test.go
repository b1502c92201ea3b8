package selector

import (
	"testing"
	"time"

	"livetv-relay/work/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHealth is a canned HealthIndex.
type stubHealth map[string]types.HealthRecord

func (s stubHealth) Lookup(url string) (types.HealthRecord, bool) {
	rec, ok := s[url]
	return rec, ok
}

func record(url string, reachable bool, observed time.Time) types.HealthRecord {
	status := 0
	if reachable {
		status = 200
	}
	return types.HealthRecord{URL: url, Reachable: reachable, StatusCode: status, ObservedAt: observed}
}

func TestPickPrefersReachableCandidate(t *testing.T) {
	now := time.Now()
	health := stubHealth{
		"http://a.example/s.m3u8": record("http://a.example/s.m3u8", false, now),
		"http://b.example/s.m3u8": record("http://b.example/s.m3u8", true, now),
		"http://c.example/s.m3u8": record("http://c.example/s.m3u8", false, now),
	}

	s := New(health)
	url, ok := s.Pick([]string{"http://a.example/s.m3u8", "http://b.example/s.m3u8", "http://c.example/s.m3u8"})

	require.True(t, ok)
	assert.Equal(t, "http://b.example/s.m3u8", url)
}

func TestPickFallsBackToFirstWhenNothingReachable(t *testing.T) {
	now := time.Now()
	health := stubHealth{
		"http://a.example/s.m3u8": record("http://a.example/s.m3u8", false, now),
		"http://b.example/s.m3u8": record("http://b.example/s.m3u8", false, now),
	}

	s := New(health)
	url, ok := s.Pick([]string{"http://a.example/s.m3u8", "http://b.example/s.m3u8"})

	require.True(t, ok)
	assert.Equal(t, "http://a.example/s.m3u8", url)
}

func TestPickUnknownCandidatesLoseToReachable(t *testing.T) {
	// no record at all for the first candidate, reachable second
	health := stubHealth{
		"http://b.example/s.m3u8": record("http://b.example/s.m3u8", true, time.Now()),
	}

	s := New(health)
	url, ok := s.Pick([]string{"http://a.example/s.m3u8", "http://b.example/s.m3u8"})

	require.True(t, ok)
	assert.Equal(t, "http://b.example/s.m3u8", url)
}

func TestPickNoHealthDataFallsBackToFirst(t *testing.T) {
	s := New(stubHealth{})
	url, ok := s.Pick([]string{"http://a.example/s.m3u8", "http://b.example/s.m3u8"})

	require.True(t, ok)
	assert.Equal(t, "http://a.example/s.m3u8", url)
}

func TestPickMostRecentObservationWins(t *testing.T) {
	now := time.Now()
	health := stubHealth{
		"http://a.example/s.m3u8": record("http://a.example/s.m3u8", true, now.Add(-time.Minute)),
		"http://b.example/s.m3u8": record("http://b.example/s.m3u8", true, now),
	}

	s := New(health)
	url, ok := s.Pick([]string{"http://a.example/s.m3u8", "http://b.example/s.m3u8"})

	require.True(t, ok)
	assert.Equal(t, "http://b.example/s.m3u8", url)
}

func TestPickExactTieKeepsSourceOrder(t *testing.T) {
	observed := time.Now()
	health := stubHealth{
		"http://a.example/s.m3u8": record("http://a.example/s.m3u8", true, observed),
		"http://b.example/s.m3u8": record("http://b.example/s.m3u8", true, observed),
	}

	s := New(health)
	url, ok := s.Pick([]string{"http://a.example/s.m3u8", "http://b.example/s.m3u8"})

	require.True(t, ok)
	assert.Equal(t, "http://a.example/s.m3u8", url)
}

func TestPickIsDeterministic(t *testing.T) {
	now := time.Now()
	health := stubHealth{
		"http://a.example/s.m3u8": record("http://a.example/s.m3u8", true, now.Add(-time.Second)),
		"http://b.example/s.m3u8": record("http://b.example/s.m3u8", true, now),
		"http://c.example/s.m3u8": record("http://c.example/s.m3u8", false, now),
	}
	candidates := []string{"http://a.example/s.m3u8", "http://b.example/s.m3u8", "http://c.example/s.m3u8"}

	s := New(health)
	first, ok := s.Pick(candidates)
	require.True(t, ok)

	for i := 0; i < 50; i++ {
		url, ok := s.Pick(candidates)
		require.True(t, ok)
		assert.Equal(t, first, url)
	}
}

func TestPickEmptyCandidates(t *testing.T) {
	s := New(stubHealth{})
	url, ok := s.Pick(nil)

	assert.False(t, ok)
	assert.Empty(t, url)
}
