package types

import (
	"time"
)

// Channel represents one logical tuneable entity assembled from an upstream
// listing source. A single channel may advertise several mirror URLs for the
// same content; those are kept in Candidates in the order the source listed
// them, so downstream selection can fall back deterministically.
//
// The ID is derived from the source tag, the entry's ordinal position, and the
// primary URL, so the same channel keeps the same ID across listing refreshes
// for as long as its primary URL does not change.
type Channel struct {
	ID         string   `json:"id"`         // Stable identifier, unique within a snapshot
	Name       string   `json:"name"`       // Display name, placeholder when the source omits one
	Group      string   `json:"group"`      // Free-text category label, defaults to "Other"
	Logo       string   `json:"logo"`       // Optional logo image URL
	Candidates []string `json:"candidates"` // Ordered, distinct playable URLs, never empty
}

// PrimaryURL returns the first candidate URL, which is the source's preferred
// mirror and the input to ID derivation.
func (c *Channel) PrimaryURL() string {
	if len(c.Candidates) == 0 {
		return ""
	}
	return c.Candidates[0]
}

// ListingSnapshot is one complete resolution of the upstream sources. It is
// immutable once constructed: refreshes build a new snapshot and swap it in
// wholesale, so concurrent readers never observe a half-updated listing.
type ListingSnapshot struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Channels  []Channel `json:"channels"`
}

// Age returns how long ago the snapshot was fetched.
func (s *ListingSnapshot) Age() time.Duration {
	return time.Since(s.FetchedAt)
}

// FindChannel locates a channel by its stable ID. Returns nil when the ID is
// not present in this snapshot.
func (s *ListingSnapshot) FindChannel(id string) *Channel {
	for i := range s.Channels {
		if s.Channels[i].ID == id {
			return &s.Channels[i]
		}
	}
	return nil
}

// HealthRecord is a per-URL reachability fact written by the health prober.
// Records are keyed by the candidate URL itself rather than a channel ID,
// because multiple channels may share a mirror URL. A record is overwritten on
// every probe and never deleted; a URL that drops out of the listing simply
// keeps its last observation.
type HealthRecord struct {
	URL        string    `json:"url"`
	Reachable  bool      `json:"reachable"`
	StatusCode int       `json:"statusCode"` // 0 when the connection never completed
	ObservedAt time.Time `json:"observedAt"`
}
