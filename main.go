package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"livetv-relay/work/buffer"
	"livetv-relay/work/cache"
	"livetv-relay/work/client"
	"livetv-relay/work/config"
	"livetv-relay/work/filter"
	"livetv-relay/work/handlers"
	"livetv-relay/work/health"
	"livetv-relay/work/listing"
	"livetv-relay/work/logger"
	"livetv-relay/work/middleware"
	"livetv-relay/work/proxy"
	"livetv-relay/work/scraper"
	"livetv-relay/work/selector"
	"livetv-relay/work/source"
	"livetv-relay/work/utils"
)

var (
	Version = "v0.1.0" // default version
)

// relayChunkSize is the pooled buffer size used by the streaming relay's
// copy loop.
const relayChunkSize = 64 * 1024

// our main app worker
func main() {

	// load our config
	cfg := config.LoadConfig()
	if cfg.Debug {
		logger.SetLogLevel("DEBUG")
	}

	// shared outbound HTTP client with source identity headers
	httpClient := client.NewHeaderSettingClient(cfg)

	// pooled buffers for the relay copy loop
	copyPool := buffer.NewCopyPool(relayChunkSize)

	// rendered-text cache, expiring on the listing TTL
	rendered := cache.NewRenderedCache(cfg.ListingTTL)
	defer rendered.Close()

	// source strategy chain: site scrape first, user playlist always merged,
	// static fallback inside the resolver itself
	resolver := source.NewResolver(cfg, []source.Strategy{
		source.NewScrapeStrategy(cfg, scraper.New(cfg, httpClient)),
		source.NewPlaylistStrategy(cfg, httpClient),
	})

	listingCache := listing.NewCache(cfg, resolver)

	prober, err := health.NewProber(cfg, httpClient, listingCache)
	if err != nil {
		log.Fatalf("Failed to create health prober: %v", err)
	}
	defer prober.Release()

	pick := selector.New(prober)
	relay := proxy.NewRelay(cfg, httpClient, copyPool)

	app := &handlers.App{
		Config:   cfg,
		Listing:  listingCache,
		Prober:   prober,
		Selector: pick,
		Relay:    relay,
		Rendered: rendered,
		IsLive:   filter.KeywordLive,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// resolve the initial listing before accepting traffic
	snap := listingCache.Get(ctx, true)

	// health prober runs on its own schedule from here on
	go prober.Run(ctx)

	// Setup HTTP routes. SkipClean keeps encoded slashes in /proxy/ targets
	// from being path-normalized away.
	router := mux.NewRouter()
	router.SkipClean(true)

	router.HandleFunc("/playlist", middleware.Gzip(handlers.HandlePlaylist(app))).Methods("GET")
	router.HandleFunc("/play/{id}", handlers.HandlePlay(app)).Methods("GET")
	router.PathPrefix("/proxy/").HandlerFunc(handlers.HandleProxy(app)).Methods("GET")
	router.HandleFunc("/api/resolve/{id}", handlers.HandleResolve(app)).Methods("GET")
	router.HandleFunc("/refresh", handlers.HandleRefresh(app)).Methods("POST")
	router.HandleFunc("/status", middleware.Gzip(handlers.HandleStatus(app))).Methods("GET")

	// Metrics handler
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// add the admin routes
	setupAdminRoutes(router, app)

	addr := fmt.Sprintf(":%d", 8080)

	// show info
	logger.Info("Starting LiveTV Relay %s", Version)
	logger.Info("Server configuration:")
	logger.Info("  - Base URL: %s", cfg.BaseURL)
	logger.Info("  - Scrape source: %s", utils.LogURL(cfg, cfg.ScrapeURL))
	logger.Info("  - Playlist source: %s", utils.LogURL(cfg, cfg.PlaylistURL))
	logger.Info("  - Static fallback channels: %d", len(cfg.StaticChannels))
	logger.Info("  - Listing TTL: %s", cfg.ListingTTL)
	logger.Info("  - Probe interval: %s (timeout %s, concurrency %d)",
		cfg.ProbeInterval, cfg.ProbeTimeout, cfg.ProbeConcurrency)
	logger.Info("  - Dedupe merged sources: %v", cfg.DedupeMerged)
	logger.Info("  - Debug Enabled: %v", cfg.Debug)
	logger.Info("  - URL Obfuscation: %v", cfg.ObfuscateUrls)
	logger.Info("Initial listing: %d channels", len(snap.Channels))

	// fire us up
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
