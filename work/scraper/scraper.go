package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"livetv-relay/work/client"
	"livetv-relay/work/config"
	"livetv-relay/work/logger"
	"livetv-relay/work/utils"

	"github.com/grafana/regexp"
	"github.com/maypok86/otter/v2"
)

// defaultPattern matches direct stream URLs inside raw page markup. It is only
// used when the operator hasn't configured a site-specific pattern.
const defaultPattern = `https?://[^\s"'<>]+?\.m3u8[^\s"'<>]*`

// maxPageBytes caps how much of a scraped page is read. Listing pages are
// HTML, not media; anything past a few megabytes is not a listing page.
const maxPageBytes = 8 << 20

// Scraper extracts candidate stream URLs from raw markup of a known site.
// Fetched pages go through a small short-TTL cache so a scrape retry inside
// one resolution burst doesn't hammer the remote site.
type Scraper struct {
	config     *config.Config
	httpClient *client.HeaderSettingClient
	pattern    *regexp.Regexp
	pages      *otter.Cache[string, string]
}

// New compiles the configured extraction pattern and prepares the page cache.
// An invalid operator pattern falls back to the default with a logged warning
// rather than failing startup.
func New(cfg *config.Config, httpClient *client.HeaderSettingClient) *Scraper {
	patternSrc := cfg.ScrapePattern
	if patternSrc == "" {
		patternSrc = defaultPattern
	}

	pattern, err := regexp.Compile(patternSrc)
	if err != nil {
		logger.Warn("{scraper - New} invalid scrape pattern %q, using default: %v", patternSrc, err)
		pattern = regexp.MustCompile(defaultPattern)
	}

	pages := otter.Must(&otter.Options[string, string]{
		MaximumSize:      16,
		ExpiryCalculator: otter.ExpiryWriting[string, string](time.Minute),
	})

	return &Scraper{
		config:     cfg,
		httpClient: httpClient,
		pattern:    pattern,
		pages:      pages,
	}
}

// ExtractStreamURLs fetches the page and returns every distinct stream URL the
// pattern matches, in document order.
func (s *Scraper) ExtractStreamURLs(ctx context.Context, pageURL string) ([]string, error) {
	body, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	matches := s.pattern.FindAllString(body, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, m)
	}

	logger.Debug("{scraper - ExtractStreamURLs} extracted %d distinct stream URLs from %s",
		len(urls), utils.LogURL(s.config, pageURL))
	return urls, nil
}

// fetchPage returns page markup, served from the short-TTL cache when a fresh
// copy exists.
func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if cached, ok := s.pages.GetIfPresent(pageURL); ok {
		logger.Debug("{scraper - fetchPage} serving cached page for %s", utils.LogURL(s.config, pageURL))
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building scrape request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching page: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading page body: %w", err)
	}

	body := string(data)
	s.pages.Set(pageURL, body)
	return body, nil
}
