package config

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"sync"
	"time"
)

// Config holds all application configuration values for the live TV relay.
// It covers the listing cache policy, health probing behavior, upstream source
// definitions, and the outbound request identity used against stream hosts.
type Config struct {
	BaseURL          string          `json:"baseURL"`          // Public base URL used when building proxied stream links
	ListingTTL       time.Duration   `json:"listingTTL"`       // How long a listing snapshot stays fresh before a refresh
	ProbeInterval    time.Duration   `json:"probeInterval"`    // Period between health prober cycles
	ProbeTimeout     time.Duration   `json:"probeTimeout"`     // Per-URL reachability probe timeout
	ProbeConcurrency int             `json:"probeConcurrency"` // Maximum in-flight probes per cycle
	StreamTimeout    time.Duration   `json:"streamTimeout"`    // Upstream connect/header timeout for the streaming relay
	WorkerThreads    int             `json:"workerThreads"`    // Size of the shared background worker pool
	Debug            bool            `json:"debug"`            // Enable debug logging
	ObfuscateUrls    bool            `json:"obfuscateUrls"`    // Mask stream URLs in log output
	DedupeMerged     bool            `json:"dedupeMerged"`     // Drop duplicate primary URLs when merging source strategies
	UserAgent        string          `json:"userAgent"`        // User-Agent sent on all outbound requests
	ReqOrigin        string          `json:"reqOrigin"`        // Optional Origin header for picky stream hosts
	ReqReferrer      string          `json:"reqReferrer"`      // Optional Referer header for picky stream hosts
	ScrapeURL        string          `json:"scrapeURL"`        // Page scraped for stream URLs (highest-priority strategy)
	ScrapePattern    string          `json:"scrapePattern"`    // Regex extracting stream URLs from the scraped page
	PlaylistURL      string          `json:"playlistURL"`      // User-supplied playlist URL (always merged when set)
	StaticChannels   []StaticChannel `json:"staticChannels"`   // Fallback listing served when every source fails
}

// StaticChannel is one entry of the built-in fallback listing. It carries a
// single URL; the resolver turns it into a one-candidate channel.
type StaticChannel struct {
	Name  string `json:"name"`
	Group string `json:"group"`
	Logo  string `json:"logo"`
	URL   string `json:"url"`
}

// ConfigFile mirrors Config for JSON unmarshaling. Duration fields are kept as
// strings (e.g. "30s", "5m") and parsed into time.Duration during conversion.
type ConfigFile struct {
	BaseURL          string          `json:"baseURL"`
	ListingTTL       string          `json:"listingTTL"`
	ProbeInterval    string          `json:"probeInterval"`
	ProbeTimeout     string          `json:"probeTimeout"`
	ProbeConcurrency int             `json:"probeConcurrency"`
	StreamTimeout    string          `json:"streamTimeout"`
	WorkerThreads    int             `json:"workerThreads"`
	Debug            bool            `json:"debug"`
	ObfuscateUrls    bool            `json:"obfuscateUrls"`
	DedupeMerged     *bool           `json:"dedupeMerged,omitempty"`
	UserAgent        string          `json:"userAgent"`
	ReqOrigin        string          `json:"reqOrigin"`
	ReqReferrer      string          `json:"reqReferrer"`
	ScrapeURL        string          `json:"scrapeURL"`
	ScrapePattern    string          `json:"scrapePattern"`
	PlaylistURL      string          `json:"playlistURL"`
	StaticChannels   []StaticChannel `json:"staticChannels"`
}

var (
	configCache *Config      // Cached configuration instance (singleton)
	configMutex sync.RWMutex // Guards configCache for concurrent access
)

// LoadConfig loads the configuration from file or returns the cached instance.
//
// Process:
//   - Uses double-checked locking to avoid redundant reloads.
//   - Reads the path from CONFIG_PATH, defaulting to /settings/config.json.
//   - Falls back to the default config if the file is missing or invalid.
//   - Runs validation so every field has a safe value.
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check under write lock
	if configCache != nil {
		return configCache
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/settings/config.json"
	}

	config, err := loadFromFile(configPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", configPath, err)
		log.Printf("Falling back to default configuration...")
		config = getDefaultConfig()
	}

	validateAndSetDefaults(config)

	configCache = config

	if config.Debug {
		log.Printf("Configuration loaded:")
		log.Printf("  Scrape source: %s", obfuscateURL(config.ScrapeURL))
		log.Printf("  Playlist source: %s", obfuscateURL(config.PlaylistURL))
		log.Printf("  Static fallback channels: %d", len(config.StaticChannels))
		log.Printf("  Listing TTL: %s", config.ListingTTL)
		log.Printf("  Probe interval: %s (timeout %s, concurrency %d)",
			config.ProbeInterval, config.ProbeTimeout, config.ProbeConcurrency)
		log.Printf("  Dedupe merged sources: %v", config.DedupeMerged)
	}

	return config
}

// ClearConfigCache resets the configCache to nil.
// Forces a reload on the next LoadConfig() call.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}

// loadFromFile reads and parses the configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config,
// parsing duration strings into time.Duration.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := &Config{
		BaseURL:          cf.BaseURL,
		ProbeConcurrency: cf.ProbeConcurrency,
		WorkerThreads:    cf.WorkerThreads,
		Debug:            cf.Debug,
		ObfuscateUrls:    cf.ObfuscateUrls,
		DedupeMerged:     true,
		UserAgent:        cf.UserAgent,
		ReqOrigin:        cf.ReqOrigin,
		ReqReferrer:      cf.ReqReferrer,
		ScrapeURL:        cf.ScrapeURL,
		ScrapePattern:    cf.ScrapePattern,
		PlaylistURL:      cf.PlaylistURL,
		StaticChannels:   cf.StaticChannels,
	}

	// DedupeMerged defaults to true; only an explicit false in the file turns
	// it off, hence the pointer field on ConfigFile.
	if cf.DedupeMerged != nil {
		config.DedupeMerged = *cf.DedupeMerged
	}

	// Parse duration fields
	var err error
	if config.ListingTTL, err = time.ParseDuration(cf.ListingTTL); err != nil {
		return nil, fmt.Errorf("invalid listingTTL: %w", err)
	}
	if config.ProbeInterval, err = time.ParseDuration(cf.ProbeInterval); err != nil {
		return nil, fmt.Errorf("invalid probeInterval: %w", err)
	}
	if config.ProbeTimeout, err = time.ParseDuration(cf.ProbeTimeout); err != nil {
		return nil, fmt.Errorf("invalid probeTimeout: %w", err)
	}
	if config.StreamTimeout, err = time.ParseDuration(cf.StreamTimeout); err != nil {
		return nil, fmt.Errorf("invalid streamTimeout: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a baseline configuration
// with sensible defaults when no file is present.
func getDefaultConfig() *Config {
	return &Config{
		BaseURL:          "http://localhost:8080",
		ListingTTL:       30 * time.Minute,
		ProbeInterval:    5 * time.Minute,
		ProbeTimeout:     8 * time.Second,
		ProbeConcurrency: 10,
		StreamTimeout:    15 * time.Second,
		WorkerThreads:    4,
		Debug:            false,
		ObfuscateUrls:    true,
		DedupeMerged:     true,
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		StaticChannels: []StaticChannel{
			{
				Name:  "NASA TV",
				Group: "Science",
				URL:   "https://ntv1.akamaized.net/hls/live/2014075/NASA-NTV1-HLS/master.m3u8",
			},
			{
				Name:  "Red Bull TV",
				Group: "Sports",
				URL:   "https://rbmn-live.akamaized.net/hls/live/590964/BoRB-AT/master.m3u8",
			},
		},
	}
}

// validateAndSetDefaults fills in zero or out-of-range values so the rest of
// the application never has to re-check configuration sanity.
func validateAndSetDefaults(config *Config) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.ListingTTL <= 0 {
		config.ListingTTL = 30 * time.Minute
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 5 * time.Minute
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 8 * time.Second
	}
	if config.ProbeConcurrency <= 0 {
		config.ProbeConcurrency = 10
	}
	if config.StreamTimeout <= 0 {
		config.StreamTimeout = 15 * time.Second
	}
	if config.WorkerThreads <= 0 {
		config.WorkerThreads = 4
	}
	if config.UserAgent == "" {
		config.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if len(config.StaticChannels) == 0 {
		config.StaticChannels = getDefaultConfig().StaticChannels
	}
}

// obfuscateURL masks sensitive parts of a URL for logging.
//
// Example:
//
//	Input:  "http://example.com/secret/stream.m3u8?token=abc"
//	Output: "http://example.com/***?***"
func obfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "***OBFUSCATED***"
	}
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}
	return result
}
