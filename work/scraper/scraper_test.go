package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"livetv-relay/work/client"
	"livetv-relay/work/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scraperConfig() *config.Config {
	return &config.Config{
		StreamTimeout: 2 * time.Second,
		UserAgent:     "test-agent",
	}
}

func newTestScraper(cfg *config.Config) *Scraper {
	return New(cfg, client.NewHeaderSettingClient(cfg))
}

const samplePage = `<html><body>
<script>var a = "http://cdn.example/ch1/index.m3u8";</script>
<a href="https://cdn.example/ch2/index.m3u8?token=xyz">watch</a>
<div data-src='http://cdn.example/ch1/index.m3u8'></div>
<p>not a stream: http://cdn.example/page.html</p>
</body></html>`

func TestExtractStreamURLsDefaultPattern(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := newTestScraper(scraperConfig())
	urls, err := s.ExtractStreamURLs(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://cdn.example/ch1/index.m3u8",
		"https://cdn.example/ch2/index.m3u8?token=xyz",
	}, urls, "distinct URLs in document order, duplicates collapsed")
}

func TestExtractStreamURLsCustomPattern(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<video src="http://cdn.example/feed/123.ts"></video>`))
	}))
	defer srv.Close()

	cfg := scraperConfig()
	cfg.ScrapePattern = `http://cdn\.example/feed/\d+\.ts`

	s := newTestScraper(cfg)
	urls, err := s.ExtractStreamURLs(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, []string{"http://cdn.example/feed/123.ts"}, urls)
}

func TestInvalidPatternFallsBackToDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	cfg := scraperConfig()
	cfg.ScrapePattern = `[unclosed`

	s := newTestScraper(cfg)
	urls, err := s.ExtractStreamURLs(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Len(t, urls, 2, "broken operator pattern must not break scraping")
}

func TestExtractStreamURLsNoMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>nothing here</body></html>"))
	}))
	defer srv.Close()

	s := newTestScraper(scraperConfig())
	urls, err := s.ExtractStreamURLs(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestExtractStreamURLsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := newTestScraper(scraperConfig())
	_, err := s.ExtractStreamURLs(context.Background(), srv.URL)

	assert.Error(t, err)
}

func TestFetchPageServedFromCacheWithinTTL(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	s := newTestScraper(scraperConfig())

	_, err := s.ExtractStreamURLs(context.Background(), srv.URL)
	require.NoError(t, err)
	_, err = s.ExtractStreamURLs(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits), "second scrape inside the TTL must hit the page cache")
}
