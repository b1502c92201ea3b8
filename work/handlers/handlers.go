package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"livetv-relay/work/cache"
	"livetv-relay/work/config"
	"livetv-relay/work/filter"
	"livetv-relay/work/health"
	"livetv-relay/work/listing"
	"livetv-relay/work/logger"
	"livetv-relay/work/proxy"
	"livetv-relay/work/selector"
	"livetv-relay/work/types"

	"github.com/gorilla/mux"
)

// App bundles the components the HTTP surface needs. Everything here is
// injected from main; handlers own no state of their own.
type App struct {
	Config   *config.Config
	Listing  *listing.Cache
	Prober   *health.Prober
	Selector *selector.Selector
	Relay    *proxy.Relay
	Rendered *cache.RenderedCache
	IsLive   filter.LivePredicate
}

// ResolveResponse is the playback resolution contract served to the
// presentation layer: the channel's display title and the proxied URL it
// should play. An unknown channel yields the zero value, an empty result
// rather than an error.
type ResolveResponse struct {
	Title      string `json:"title,omitempty"`
	ProxiedURL string `json:"proxiedURL,omitempty"`
}

// HandleResolve implements resolveStream(channelId): locate the channel in
// the current listing, run candidate selection against the latest health
// data, and hand back a /proxy/ URL embedding the chosen candidate.
func HandleResolve(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		snap := app.Listing.Get(r.Context(), false)
		ch := snap.FindChannel(id)

		w.Header().Set("Content-Type", "application/json")

		if ch == nil {
			logger.Debug("{handlers - HandleResolve} unknown channel id: %s", id)
			json.NewEncoder(w).Encode(ResolveResponse{})
			return
		}

		picked, ok := app.Selector.Pick(ch.Candidates)
		if !ok {
			// unreachable per the listing invariant, but never 500 on it
			json.NewEncoder(w).Encode(ResolveResponse{})
			return
		}

		json.NewEncoder(w).Encode(ResolveResponse{
			Title:      ch.Name,
			ProxiedURL: ProxiedURL(app.Config, picked),
		})
	}
}

// HandlePlay streams a channel directly by ID: selection and relaying in one
// request, which is what the generated playlist points players at.
func HandlePlay(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		snap := app.Listing.Get(r.Context(), false)
		ch := snap.FindChannel(id)
		if ch == nil {
			logger.Debug("{handlers - HandlePlay} unknown channel id: %s", id)
			http.Error(w, "Channel not found", http.StatusNotFound)
			return
		}

		picked, ok := app.Selector.Pick(ch.Candidates)
		if !ok {
			http.Error(w, "Channel has no candidates", http.StatusNotFound)
			return
		}

		app.Relay.ServeTarget(w, r, picked)
	}
}

// HandleProxy is the raw relay entry point: /proxy/<encoded target>. The
// embedded target is decoded exactly once; anything that doesn't decode, or
// decodes to emptiness, is a client error, never an attempt to proxy to an
// empty host.
func HandleProxy(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		encoded := strings.TrimPrefix(r.URL.EscapedPath(), "/proxy/")
		if encoded == "" {
			http.Error(w, "Missing stream target", http.StatusBadRequest)
			return
		}

		target, err := url.QueryUnescape(encoded)
		if err != nil {
			logger.Warn("{handlers - HandleProxy} undecodable target: %v", err)
			http.Error(w, "Invalid stream target", http.StatusBadRequest)
			return
		}

		app.Relay.ServeTarget(w, r, target)
	}
}

// HandlePlaylist renders the current listing as an extended M3U playlist with
// every entry pointing back through this relay. Rendered text is cached on
// the listing TTL so repeat players don't re-render the same snapshot.
func HandlePlaylist(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cached, ok := app.Rendered.Get("playlist"); ok {
			w.Header().Set("Content-Type", "application/x-mpegURL")
			w.Header().Set("Cache-Control", "no-cache")
			w.Write([]byte(cached))
			return
		}

		snap := app.Listing.Get(r.Context(), false)

		var playlist strings.Builder
		playlist.Grow(len(snap.Channels) * 200)
		playlist.WriteString("#EXTM3U\n")

		for i := range snap.Channels {
			ch := &snap.Channels[i]
			playlist.WriteString(fmt.Sprintf("#EXTINF:-1 tvg-id=%q group-title=%q", ch.ID, ch.Group))
			if ch.Logo != "" {
				playlist.WriteString(fmt.Sprintf(" tvg-logo=%q", ch.Logo))
			}
			playlist.WriteString(fmt.Sprintf(",%s\n", ch.Name))
			playlist.WriteString(fmt.Sprintf("%s/play/%s\n", app.Config.BaseURL, ch.ID))
		}

		result := playlist.String()
		app.Rendered.Set("playlist", result)

		w.Header().Set("Content-Type", "application/x-mpegURL")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write([]byte(result))

		logger.Debug("{handlers - HandlePlaylist} rendered playlist with %d channels", len(snap.Channels))
	}
}

// RefreshResponse reports the outcome of an operator-triggered refresh.
type RefreshResponse struct {
	Channels int `json:"channels"`
}

// HandleRefresh forces the listing cache past its TTL and runs one immediate
// probe cycle, so an operator can recover from a bad upstream without a
// process restart. Responds with the resulting channel count.
func HandleRefresh(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Info("{handlers - HandleRefresh} operator-triggered refresh")

		snap := app.Listing.Get(r.Context(), true)
		app.Prober.RunCycle(r.Context())
		app.Rendered.Invalidate("playlist")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(RefreshResponse{Channels: len(snap.Channels)})
	}
}

// CandidateStatus pairs one mirror URL with its latest health observation.
type CandidateStatus struct {
	URL    string              `json:"url"`
	Health *types.HealthRecord `json:"health,omitempty"` // nil when never probed
}

// ChannelStatus is the per-channel diagnostic view: every candidate, its
// health, and which one the selector would pick right now.
type ChannelStatus struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Group      string            `json:"group"`
	Live       bool              `json:"live"`
	Candidates []CandidateStatus `json:"candidates"`
	Pick       string            `json:"pick"`
}

// HandleStatus exposes the full selection picture for diagnosing why a
// channel plays (or fails to play) a particular mirror.
func HandleStatus(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := app.Listing.Get(r.Context(), false)

		statuses := make([]ChannelStatus, 0, len(snap.Channels))
		for i := range snap.Channels {
			ch := &snap.Channels[i]

			candidates := make([]CandidateStatus, 0, len(ch.Candidates))
			for _, u := range ch.Candidates {
				cs := CandidateStatus{URL: u}
				if rec, ok := app.Prober.Lookup(u); ok {
					rec := rec
					cs.Health = &rec
				}
				candidates = append(candidates, cs)
			}

			pick, _ := app.Selector.Pick(ch.Candidates)

			statuses = append(statuses, ChannelStatus{
				ID:         ch.ID,
				Name:       ch.Name,
				Group:      ch.Group,
				Live:       app.IsLive(ch),
				Candidates: candidates,
				Pick:       pick,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(statuses)
	}
}

// ProxiedURL builds the public /proxy/ URL embedding a target stream URL,
// encoded for exactly one decode on the way back in.
func ProxiedURL(cfg *config.Config, target string) string {
	return fmt.Sprintf("%s/proxy/%s", cfg.BaseURL, url.QueryEscape(target))
}
