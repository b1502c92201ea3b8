package main

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"livetv-relay/work/handlers"
	"livetv-relay/work/logger"
)

// adminStartTime marks process start for the uptime stat.
var adminStartTime = time.Now()

// StatsResponse is the admin stats payload.
type StatsResponse struct {
	Version        string `json:"version"`
	UptimeSeconds  int64  `json:"uptimeSeconds"`
	TotalChannels  int    `json:"totalChannels"`
	ProbedURLs     int    `json:"probedUrls"`
	ListingAgeSecs int64  `json:"listingAgeSeconds"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heapAllocBytes"`
	HeapSysBytes   uint64 `json:"heapSysBytes"`
}

// setup our admin routes
func setupAdminRoutes(router *mux.Router, app *handlers.App) {

	// api endpoints for the admin surface
	router.HandleFunc("/admin/api/stats", handleAdminStats(app)).Methods("GET")
}

// handleAdminStats reports process and listing statistics.
func handleAdminStats(app *handlers.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		stats := StatsResponse{
			Version:        Version,
			UptimeSeconds:  int64(time.Since(adminStartTime).Seconds()),
			ProbedURLs:     app.Prober.RecordCount(),
			Goroutines:     runtime.NumGoroutine(),
			HeapAllocBytes: mem.HeapAlloc,
			HeapSysBytes:   mem.HeapSys,
		}

		// current snapshot without triggering a refresh
		if snap := app.Listing.Current(); snap != nil {
			stats.TotalChannels = len(snap.Channels)
			stats.ListingAgeSecs = int64(snap.Age().Seconds())
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			logger.Error("{main - handleAdminStats} encode failed: %v", err)
		}
	}
}
