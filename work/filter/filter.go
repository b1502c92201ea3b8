package filter

import (
	"strings"

	"livetv-relay/work/types"
)

// LivePredicate reports whether a channel looks like it is carrying live
// content right now. Implementations are best-effort heuristics; nothing in
// the relay's correctness depends on the answer, it only annotates status
// output and lets playlist consumers filter.
type LivePredicate func(ch *types.Channel) bool

// liveKeywords is the literal keyword list behind the default predicate.
// Matching on names and groups is inherently approximate: a channel named
// "Live Cooking Reruns" will match, and a live feed named "Channel 7" will
// not. The predicate is documented as untested for correctness beyond this
// list.
var liveKeywords = []string{
	"live",
	"24/7",
	"24-7",
	"sport",
	"news",
	"event",
}

// KeywordLive is the default LivePredicate: a case-insensitive keyword search
// over the channel name and group.
func KeywordLive(ch *types.Channel) bool {
	if ch == nil {
		return false
	}

	haystack := strings.ToLower(ch.Name + " " + ch.Group)
	for _, kw := range liveKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
