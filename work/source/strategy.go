package source

import (
	"context"
	"fmt"
	"net/http"

	"livetv-relay/work/client"
	"livetv-relay/work/config"
	"livetv-relay/work/parser"
	"livetv-relay/work/scraper"
)

// Strategy is one way of obtaining a raw channel listing. Strategies are tried
// in registration order; the first one producing entries wins, except that an
// always-merge strategy contributes its entries on top of whatever the
// higher-priority strategies produced.
type Strategy interface {
	// Tag identifies the strategy in channel IDs and logs. Tags must be
	// distinct so IDs never collide across strategies.
	Tag() string

	// AlwaysMerge marks strategies whose entries are concatenated onto the
	// winning listing instead of serving only as a fallback.
	AlwaysMerge() bool

	// Fetch produces the strategy's raw entries. An error or an empty result
	// simply moves resolution along; it never fails the caller.
	Fetch(ctx context.Context) ([]parser.Entry, error)
}

// ScrapeStrategy extracts stream URLs from a known site's markup. Scraped
// pages carry no channel metadata, so entries come back with URL only and get
// placeholder names during normalization.
type ScrapeStrategy struct {
	config  *config.Config
	scraper *scraper.Scraper
}

func NewScrapeStrategy(cfg *config.Config, sc *scraper.Scraper) *ScrapeStrategy {
	return &ScrapeStrategy{config: cfg, scraper: sc}
}

func (s *ScrapeStrategy) Tag() string       { return "scrape" }
func (s *ScrapeStrategy) AlwaysMerge() bool { return false }

func (s *ScrapeStrategy) Fetch(ctx context.Context) ([]parser.Entry, error) {
	if s.config.ScrapeURL == "" {
		return nil, nil
	}

	urls, err := s.scraper.ExtractStreamURLs(ctx, s.config.ScrapeURL)
	if err != nil {
		return nil, fmt.Errorf("scrape strategy: %w", err)
	}

	entries := make([]parser.Entry, 0, len(urls))
	for _, u := range urls {
		entries = append(entries, parser.Entry{URL: u})
	}
	return entries, nil
}

// PlaylistStrategy fetches a user-supplied extended M3U playlist. It is the
// designated always-merge strategy: a user's own channels are appended to the
// listing no matter which strategy won, instead of waiting for everything
// above them to fail.
type PlaylistStrategy struct {
	config     *config.Config
	httpClient *client.HeaderSettingClient
}

func NewPlaylistStrategy(cfg *config.Config, httpClient *client.HeaderSettingClient) *PlaylistStrategy {
	return &PlaylistStrategy{config: cfg, httpClient: httpClient}
}

func (s *PlaylistStrategy) Tag() string       { return "playlist" }
func (s *PlaylistStrategy) AlwaysMerge() bool { return true }

func (s *PlaylistStrategy) Fetch(ctx context.Context) ([]parser.Entry, error) {
	if s.config.PlaylistURL == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.PlaylistURL, nil)
	if err != nil {
		return nil, fmt.Errorf("playlist strategy: building request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("playlist strategy: fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist strategy: unexpected status %d", resp.StatusCode)
	}

	return parser.ParsePlaylist(resp.Body), nil
}

// StaticStrategy serves the operator-configured fallback listing. It performs
// no I/O and never fails, which is what guarantees the system always has at
// least one playable entry.
type StaticStrategy struct {
	config *config.Config
}

func NewStaticStrategy(cfg *config.Config) *StaticStrategy {
	return &StaticStrategy{config: cfg}
}

func (s *StaticStrategy) Tag() string       { return "static" }
func (s *StaticStrategy) AlwaysMerge() bool { return false }

func (s *StaticStrategy) Fetch(ctx context.Context) ([]parser.Entry, error) {
	entries := make([]parser.Entry, 0, len(s.config.StaticChannels))
	for _, sc := range s.config.StaticChannels {
		entries = append(entries, parser.Entry{
			Name:  sc.Name,
			Group: sc.Group,
			Logo:  sc.Logo,
			URL:   sc.URL,
		})
	}
	return entries, nil
}
