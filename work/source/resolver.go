package source

import (
	"context"
	"fmt"
	"strings"

	"livetv-relay/work/config"
	"livetv-relay/work/logger"
	"livetv-relay/work/parser"
	"livetv-relay/work/types"

	"github.com/cespare/xxhash/v2"
)

// candidateDelimiters are the characters a source may use to pack several
// mirror URLs into one raw URL field.
const candidateDelimiters = ",|;"

// Resolver turns an ordered set of strategies into one normalized channel
// list. Resolution never errors out: any strategy failure is logged and
// swallowed, and when every strategy comes back empty the static fallback
// listing is returned verbatim.
type Resolver struct {
	config     *config.Config
	strategies []Strategy
	fallback   *StaticStrategy
}

// NewResolver wires the strategy chain. Order matters: it is the priority
// order for the first-non-empty rule.
func NewResolver(cfg *config.Config, strategies []Strategy) *Resolver {
	return &Resolver{
		config:     cfg,
		strategies: strategies,
		fallback:   NewStaticStrategy(cfg),
	}
}

// Resolve produces the current channel listing. Primary strategies are tried
// in priority order until one yields channels; always-merge strategies are
// then concatenated on top regardless of which strategy won. Duplicate
// channels introduced by the merge (same primary URL through two strategies)
// are dropped when dedupeMerged is set.
func (r *Resolver) Resolve(ctx context.Context) []types.Channel {
	var base []types.Channel

	for _, strat := range r.strategies {
		if strat.AlwaysMerge() {
			continue
		}

		channels := r.fetchNormalized(ctx, strat)
		if len(channels) > 0 {
			logger.Debug("{source - Resolve} strategy %q produced %d channels", strat.Tag(), len(channels))
			base = channels
			break
		}
	}

	// always-merge strategies contribute regardless of the winner
	for _, strat := range r.strategies {
		if !strat.AlwaysMerge() {
			continue
		}

		channels := r.fetchNormalized(ctx, strat)
		if len(channels) > 0 {
			logger.Debug("{source - Resolve} merging %d channels from strategy %q", len(channels), strat.Tag())
			base = append(base, channels...)
		}
	}

	if r.config.DedupeMerged {
		base = dedupeByPrimaryURL(base)
	}

	if len(base) == 0 {
		logger.Warn("{source - Resolve} every strategy came back empty, serving static fallback")
		base = r.fetchNormalized(ctx, r.fallback)
	}

	return base
}

// fetchNormalized runs one strategy and normalizes its raw entries, containing
// any failure as an empty result.
func (r *Resolver) fetchNormalized(ctx context.Context, strat Strategy) []types.Channel {
	entries, err := strat.Fetch(ctx)
	if err != nil {
		logger.Warn("{source - fetchNormalized} strategy %q failed: %v", strat.Tag(), err)
		return nil
	}
	return Normalize(strat.Tag(), entries)
}

// Normalize converts raw entries into channels: the URL field is split into an
// ordered candidate list, entries with no usable URL are dropped, and missing
// display fields get their defaults. The ordinal index passed to ID derivation
// counts kept channels, so a dropped entry doesn't shift the IDs of everything
// after it on one source but not another.
func Normalize(tag string, entries []parser.Entry) []types.Channel {
	channels := make([]types.Channel, 0, len(entries))

	for _, entry := range entries {
		candidates := SplitCandidates(entry.URL)
		if len(candidates) == 0 {
			continue
		}

		idx := len(channels)

		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = fmt.Sprintf("Channel %d", idx+1)
		}

		group := strings.TrimSpace(entry.Group)
		if group == "" {
			group = "Other"
		}

		channels = append(channels, types.Channel{
			ID:         MakeChannelID(tag, idx, candidates[0]),
			Name:       name,
			Group:      group,
			Logo:       entry.Logo,
			Candidates: candidates,
		})
	}

	return channels
}

// SplitCandidates splits a raw URL field on the candidate delimiters into an
// ordered list of distinct URLs. Whitespace-only and duplicate fragments are
// dropped.
func SplitCandidates(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return strings.ContainsRune(candidateDelimiters, r)
	})

	seen := make(map[string]bool, len(parts))
	candidates := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		if !strings.Contains(p, "://") {
			continue
		}
		seen[p] = true
		candidates = append(candidates, p)
	}
	return candidates
}

// MakeChannelID derives a stable channel identifier from the strategy tag, the
// channel's ordinal position, and its primary URL. The same inputs always
// produce the same ID, so a channel keeps its identity across refreshes as
// long as its primary URL is unchanged, and distinct strategy tags keep IDs
// from colliding across sources.
func MakeChannelID(tag string, index int, primaryURL string) string {
	h := xxhash.Sum64String(fmt.Sprintf("%s|%d|%s", tag, index, primaryURL))
	return fmt.Sprintf("%s-%016x", tag, h)
}

// dedupeByPrimaryURL keeps the first channel seen for each primary URL,
// preserving order. First-seen wins, which favors the higher-priority
// strategy's entry over a merged duplicate.
func dedupeByPrimaryURL(channels []types.Channel) []types.Channel {
	seen := make(map[string]bool, len(channels))
	out := channels[:0]
	for _, ch := range channels {
		primary := ch.PrimaryURL()
		if seen[primary] {
			continue
		}
		seen[primary] = true
		out = append(out, ch)
	}
	return out
}
