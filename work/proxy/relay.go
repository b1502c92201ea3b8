package proxy

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"livetv-relay/work/buffer"
	"livetv-relay/work/client"
	"livetv-relay/work/config"
	"livetv-relay/work/logger"
	"livetv-relay/work/metrics"
	"livetv-relay/work/parser"
	"livetv-relay/work/utils"
)

// maxPlaylistBytes bounds how much of a suspected playlist response is read
// for inspection before relaying.
const maxPlaylistBytes = 256 * 1024

// Relay is the byte-transparent streaming proxy. Given a resolved upstream
// URL it opens one upstream connection, forwards the response status and
// headers, and streams the body chunk by chunk with pooled buffers. Nothing
// is held in memory beyond one chunk, because media bodies are unbounded.
//
// Failure behavior is the relay's whole point: an unreachable upstream or a
// non-success upstream status turns into a 502 for the client immediately,
// never a hung socket, and a client that disconnects mid-stream cancels the
// upstream request through its context so no bytes are pulled for nobody.
type Relay struct {
	config     *config.Config
	httpClient *client.HeaderSettingClient
	copyPool   *buffer.CopyPool
	master     *parser.MasterPlaylistHandler
}

func NewRelay(cfg *config.Config, httpClient *client.HeaderSettingClient, copyPool *buffer.CopyPool) *Relay {
	return &Relay{
		config:     cfg,
		httpClient: httpClient,
		copyPool:   copyPool,
		master:     parser.NewMasterPlaylistHandler(cfg),
	}
}

// ServeTarget validates the already-decoded target URL and relays its content
// to the client. Malformed, relative, or non-HTTP targets are rejected with a
// client error before any upstream connection is attempted.
func (rl *Relay) ServeTarget(w http.ResponseWriter, r *http.Request, target string) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		logger.Warn("{proxy - ServeTarget} rejecting malformed target: %q", target)
		metrics.RelayErrors.WithLabelValues("bad_target").Inc()
		http.Error(w, "Invalid stream target", http.StatusBadRequest)
		return
	}

	metrics.ActiveRelays.Inc()
	defer metrics.ActiveRelays.Dec()

	rl.relay(w, r, target, 0)
}

// relay opens the upstream and streams it back. depth guards master playlist
// resolution: a master playlist is followed to its best variant exactly once,
// never into a resolution loop.
func (rl *Relay) relay(w http.ResponseWriter, r *http.Request, target string, depth int) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		metrics.RelayErrors.WithLabelValues("bad_target").Inc()
		http.Error(w, "Invalid stream target", http.StatusBadRequest)
		return
	}

	// byte-range semantics pass straight through for seekable upstreams
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := rl.httpClient.Do(req)
	if err != nil {
		logger.Warn("{proxy - relay} upstream connect failed for %s: %v", utils.LogURL(rl.config, target), err)
		metrics.RelayErrors.WithLabelValues("connect").Inc()
		http.Error(w, "Upstream unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logger.Warn("{proxy - relay} upstream returned %d for %s", resp.StatusCode, utils.LogURL(rl.config, target))
		metrics.RelayErrors.WithLabelValues("upstream_status").Inc()
		http.Error(w, "Upstream error", http.StatusBadGateway)
		return
	}

	// a master playlist where media was expected gets resolved to its best
	// variant instead of handing the client a nested playlist
	if depth == 0 && rl.shouldCheckForMasterPlaylist(resp) {
		content, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
		if err != nil {
			logger.Warn("{proxy - relay} reading suspected playlist failed: %v", err)
			metrics.RelayErrors.WithLabelValues("upstream_read").Inc()
			http.Error(w, "Upstream error", http.StatusBadGateway)
			return
		}

		if rl.master.IsMasterPlaylist(string(content)) {
			if variant, ok := rl.master.BestVariant(string(content), target); ok {
				logger.Debug("{proxy - relay} following master playlist to variant: %s", utils.LogURL(rl.config, variant))
				rl.relay(w, r, variant, depth+1)
				return
			}
		}

		// not a master playlist after all: forward the inspected bytes as-is
		copyRelayHeaders(w, resp)
		w.WriteHeader(resp.StatusCode)
		if n, werr := w.Write(content); werr == nil {
			metrics.BytesRelayed.Add(float64(n))
			rl.streamBody(w, resp.Body, target)
		}
		return
	}

	copyRelayHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	rl.streamBody(w, resp.Body, target)
}

// streamBody moves bytes from the upstream to the client one pooled chunk at
// a time, flushing after every chunk so players start rendering immediately.
// A client-side write error ends the relay; closing out of the handler drops
// the request context and with it the upstream connection.
func (rl *Relay) streamBody(w http.ResponseWriter, body io.Reader, target string) {
	flusher := resolveFlusher(w)

	buf := rl.copyPool.Get()
	defer rl.copyPool.Put(buf)
	chunk := buf.B

	var relayed int64
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			if _, werr := w.Write(chunk[:n]); werr != nil {
				logger.Debug("{proxy - streamBody} client write failed after %s, ending relay: %v",
					utils.FormatBytes(relayed), werr)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			relayed += int64(n)
			metrics.BytesRelayed.Add(float64(n))
		}

		if err != nil {
			if err != io.EOF {
				logger.Debug("{proxy - streamBody} upstream read ended for %s after %s: %v",
					utils.LogURL(rl.config, target), utils.FormatBytes(relayed), err)
			}
			return
		}
	}
}

// shouldCheckForMasterPlaylist decides from response headers alone whether the
// body is worth inspecting as an HLS master playlist: an mpegurl content type,
// or a small declared length where media would be unbounded.
func (rl *Relay) shouldCheckForMasterPlaylist(resp *http.Response) bool {
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "mpegurl") || strings.Contains(contentType, "m3u8") {
		return true
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if length, err := strconv.ParseInt(cl, 10, 64); err == nil && length > 0 && length < 100*1024 {
			return true
		}
	}

	return false
}

// copyRelayHeaders forwards the upstream headers a media client needs without
// leaking hop-by-hop noise.
func copyRelayHeaders(w http.ResponseWriter, resp *http.Response) {
	for _, name := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges"} {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.Header().Set("Cache-Control", "no-cache")
}

// resolveFlusher digs the http.Flusher out of possibly-wrapped response
// writers. Streaming still works without one, just with less immediacy.
func resolveFlusher(w http.ResponseWriter) http.Flusher {
	if crw, ok := w.(*client.CustomResponseWriter); ok {
		if flusher, ok := crw.ResponseWriter.(http.Flusher); ok {
			return flusher
		}
		return nil
	}
	if flusher, ok := w.(http.Flusher); ok {
		return flusher
	}
	return nil
}
