package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ListingRefreshes counts listing cache refresh attempts. The "result" label
// distinguishes successful resolutions from ones that fell back to a previous
// or empty snapshot.
var ListingRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "livetv_relay_listing_refreshes_total",
	Help: "Number of listing cache refresh attempts",
}, []string{"result"})

// ChannelsInSnapshot tracks how many channels the current listing snapshot
// holds. Updated after every successful refresh.
var ChannelsInSnapshot = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "livetv_relay_channels",
	Help: "Number of channels in the current listing snapshot",
})

// ProbesTotal counts individual health probes by outcome ("reachable",
// "unreachable"). This metric is a counter and only increases.
var ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "livetv_relay_probes_total",
	Help: "Number of health probes performed",
}, []string{"outcome"})

// ProbeCycleDuration observes the wall time of complete prober cycles.
var ProbeCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "livetv_relay_probe_cycle_seconds",
	Help:    "Duration of full health prober cycles",
	Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
})

// BytesRelayed tracks the total number of bytes relayed to clients through
// the streaming proxy. This metric is a counter and only increases.
var BytesRelayed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "livetv_relay_bytes_relayed_total",
	Help: "Total bytes relayed through the streaming proxy",
})

// RelayErrors counts streaming relay failures per error type (e.g. "connect",
// "upstream_status", "bad_target").
var RelayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "livetv_relay_relay_errors_total",
	Help: "Number of streaming relay errors",
}, []string{"error_type"})

// ActiveRelays tracks the number of client relays currently streaming.
var ActiveRelays = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "livetv_relay_active_relays",
	Help: "Number of active streaming relay clients",
})
