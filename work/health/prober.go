package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"livetv-relay/work/client"
	"livetv-relay/work/config"
	"livetv-relay/work/logger"
	"livetv-relay/work/metrics"
	"livetv-relay/work/types"
	"livetv-relay/work/utils"

	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/ratelimit"
)

// probeRatePerSec bounds how fast probe requests leave the process, on top of
// the concurrency bound. Remote hosts see at most this many new connections
// per second from a cycle.
const probeRatePerSec = 20

// ListingProvider supplies the channel listing a probe cycle enumerates.
// Satisfied by the listing cache; cycles read through it without forcing a
// refresh, so probing never triggers upstream listing fetches on its own.
type ListingProvider interface {
	Get(ctx context.Context, force bool) *types.ListingSnapshot
}

// Prober measures reachability of every distinct candidate URL referenced by
// the current listing. It runs on a fixed interval, probes with bounded
// concurrency through a dedicated worker pool, and overwrites one HealthRecord
// per URL per cycle. Records are never deleted: a URL that drops out of the
// listing keeps its last observation, and the key space stays bounded by the
// set of ever-seen URLs.
type Prober struct {
	config     *config.Config
	httpClient *client.HeaderSettingClient
	listing    ListingProvider
	pool       *ants.Pool
	records    *xsync.MapOf[string, types.HealthRecord]
	limiter    ratelimit.Limiter
	stopChan   chan struct{}
}

// NewProber builds a prober with its own worker pool sized to the configured
// probe concurrency.
func NewProber(cfg *config.Config, httpClient *client.HeaderSettingClient, provider ListingProvider) (*Prober, error) {
	pool, err := ants.NewPool(cfg.ProbeConcurrency, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("creating probe worker pool: %w", err)
	}

	return &Prober{
		config:     cfg,
		httpClient: httpClient,
		listing:    provider,
		pool:       pool,
		records:    xsync.NewMapOf[string, types.HealthRecord](),
		limiter:    ratelimit.New(probeRatePerSec),
		stopChan:   make(chan struct{}, 1),
	}, nil
}

// Run executes probe cycles forever at the configured interval, starting with
// an immediate cycle so health data exists before the first tick. It blocks
// and should be launched in its own goroutine; Stop terminates it.
func (p *Prober) Run(ctx context.Context) {
	logger.Debug("{health - Run} prober loop starting (interval: %s)", p.config.ProbeInterval)

	p.RunCycle(ctx)

	ticker := time.NewTicker(p.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			logger.Debug("{health - Run} prober loop stopped")
			return
		case <-ctx.Done():
			logger.Debug("{health - Run} prober loop context cancelled")
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		}
	}
}

// Stop signals the prober loop to terminate. Non-blocking; safe to call more
// than once.
func (p *Prober) Stop() {
	select {
	case p.stopChan <- struct{}{}:
	default:
	}
}

// Release tears down the probe worker pool. Call only after Stop.
func (p *Prober) Release() {
	p.pool.Release()
}

// RunCycle performs one complete probe pass: enumerate the distinct candidate
// URLs of the current listing, probe each through the bounded pool, and write
// one record per URL. A failed or slow probe affects only its own URL; the
// cycle completes regardless.
func (p *Prober) RunCycle(ctx context.Context) {
	start := time.Now()

	snap := p.listing.Get(ctx, false)
	if snap == nil || len(snap.Channels) == 0 {
		logger.Debug("{health - RunCycle} no channels to probe")
		return
	}

	urls := collectDistinctURLs(snap)
	logger.Debug("{health - RunCycle} probing %d distinct URLs (concurrency %d)", len(urls), p.config.ProbeConcurrency)

	done := make(chan struct{}, len(urls))
	for _, u := range urls {
		u := u
		p.limiter.Take()

		task := func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("{health - RunCycle} probe panicked for %s: %v", utils.LogURL(p.config, u), r)
					p.recordResult(u, false, 0)
				}
				done <- struct{}{}
			}()
			reachable, status := p.probe(ctx, u)
			p.recordResult(u, reachable, status)
		}

		if err := p.pool.Submit(task); err != nil {
			// pool exhausted or released: probe inline rather than skipping
			logger.Warn("{health - RunCycle} worker pool rejected probe, running inline: %v", err)
			task()
		}
	}

	for range urls {
		<-done
	}

	elapsed := time.Since(start)
	metrics.ProbeCycleDuration.Observe(elapsed.Seconds())
	logger.Debug("{health - RunCycle} cycle complete: %d URLs in %s", len(urls), elapsed.Round(time.Millisecond))
}

// probe issues one reachability check. A HEAD request is tried first since it
// moves no media bytes; hosts that reject HEAD outright get a GET whose body
// is never read. Reachable means the connection completed inside the probe
// timeout with a status in the 200-399 range.
func (p *Prober) probe(ctx context.Context, url string) (bool, int) {
	probeCtx, cancel := context.WithTimeout(ctx, p.config.ProbeTimeout)
	defer cancel()

	status, err := p.request(probeCtx, http.MethodHead, url)
	if err == nil && status >= 200 && status < 400 {
		return true, status
	}

	// 405/501 and plain confusion are common HEAD responses from stream
	// hosts; retry as GET before ruling the URL out
	if err != nil || status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = p.request(probeCtx, http.MethodGet, url)
		if err == nil && status >= 200 && status < 400 {
			return true, status
		}
	}

	if err != nil {
		logger.Debug("{health - probe} %s unreachable: %v", utils.LogURL(p.config, url), err)
		return false, 0
	}
	return false, status
}

// request performs one probe request and reports only the response status.
// The body is closed unread: reachability is being measured, not playback.
func (p *Prober) request(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// recordResult overwrites the URL's health record and bumps the outcome
// counter.
func (p *Prober) recordResult(url string, reachable bool, status int) {
	p.records.Store(url, types.HealthRecord{
		URL:        url,
		Reachable:  reachable,
		StatusCode: status,
		ObservedAt: time.Now(),
	})

	outcome := "unreachable"
	if reachable {
		outcome = "reachable"
	}
	metrics.ProbesTotal.WithLabelValues(outcome).Inc()
}

// Lookup returns the latest record for a URL, if one exists.
func (p *Prober) Lookup(url string) (types.HealthRecord, bool) {
	return p.records.Load(url)
}

// RecordCount reports how many URLs have ever been probed.
func (p *Prober) RecordCount() int {
	return p.records.Size()
}

// collectDistinctURLs gathers every candidate URL across all channels exactly
// once, preserving first-seen order. A mirror shared by two channels is probed
// once per cycle, not twice.
func collectDistinctURLs(snap *types.ListingSnapshot) []string {
	seen := make(map[string]bool)
	var urls []string
	for i := range snap.Channels {
		for _, u := range snap.Channels[i].Candidates {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls
}
