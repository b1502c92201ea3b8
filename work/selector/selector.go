package selector

import (
	"livetv-relay/work/types"
)

// HealthIndex exposes the prober's latest per-URL observations. Satisfied by
// the health prober; tests supply a stub.
type HealthIndex interface {
	Lookup(url string) (types.HealthRecord, bool)
}

// Selector deterministically picks the single best candidate URL to serve
// right now, given a channel's ordered mirrors and the latest health data.
type Selector struct {
	health HealthIndex
}

func New(health HealthIndex) *Selector {
	return &Selector{health: health}
}

// Pick returns the candidate to play. Preference order: a reachable candidate
// beats unreachable and unknown ones; among reachable candidates the most
// recently observed wins, with source order breaking exact ties. When nothing
// is currently reachable the first candidate in source order is returned
// anyway, so playback is always attempted; the proxy's failure, if any,
// becomes the user-visible signal. Returns ok=false only for an empty
// candidate list, which the listing invariant rules out for real channels.
func (s *Selector) Pick(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	best := -1
	var bestRec types.HealthRecord

	for i, url := range candidates {
		rec, ok := s.health.Lookup(url)
		if !ok || !rec.Reachable {
			// absent records are unknown, not failing; both lose to any
			// reachable candidate
			continue
		}

		if best == -1 || rec.ObservedAt.After(bestRec.ObservedAt) {
			best = i
			bestRec = rec
		}
	}

	if best >= 0 {
		return candidates[best], true
	}

	// deterministic, stable fallback rather than an arbitrary pick
	return candidates[0], true
}
