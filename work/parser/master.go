package parser

import (
	"bufio"
	"net/url"
	"sort"
	"strings"

	"livetv-relay/work/config"
	"livetv-relay/work/logger"
	"livetv-relay/work/utils"

	"github.com/grafov/m3u8"
)

// MasterPlaylistHandler resolves HLS master playlists down to a single variant
// URL. Some upstream channels hand out a master playlist where the relay
// expects media; handing that straight to a client would nest a playlist
// inside a playlist, so the relay asks this handler for the best variant and
// streams that instead.
type MasterPlaylistHandler struct {
	config *config.Config
}

func NewMasterPlaylistHandler(cfg *config.Config) *MasterPlaylistHandler {
	return &MasterPlaylistHandler{config: cfg}
}

// IsMasterPlaylist reports whether the content is an HLS master playlist.
// #EXT-X-STREAM-INF is the definitive marker: media playlists list segments,
// master playlists list variants.
func (mph *MasterPlaylistHandler) IsMasterPlaylist(content string) bool {
	return strings.Contains(content, "#EXT-X-STREAM-INF")
}

// BestVariant parses master playlist content and returns the absolute URL of
// the highest-bandwidth variant. Relative variant URIs are resolved against
// baseURL. Returns ("", false) when no usable variant is present.
func (mph *MasterPlaylistHandler) BestVariant(content string, baseURL string) (string, bool) {
	playlist, listType, err := m3u8.DecodeFrom(bufio.NewReader(strings.NewReader(content)), true)
	if err != nil {
		logger.Warn("{parser - BestVariant} failed to decode master playlist: %v", err)
		return "", false
	}
	if listType != m3u8.MASTER {
		return "", false
	}

	master := playlist.(*m3u8.MasterPlaylist)

	variants := make([]*m3u8.Variant, 0, len(master.Variants))
	for _, v := range master.Variants {
		if v != nil && v.URI != "" {
			variants = append(variants, v)
		}
	}
	if len(variants) == 0 {
		logger.Warn("{parser - BestVariant} master playlist contains no variants")
		return "", false
	}

	// highest bandwidth first
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})

	resolved := resolveURL(variants[0].URI, baseURL)
	logger.Debug("{parser - BestVariant} selected variant (bandwidth %d): %s",
		variants[0].Bandwidth, utils.LogURL(mph.config, resolved))
	return resolved, true
}

// resolveURL makes a possibly-relative playlist URI absolute against the base
// playlist URL. An already-absolute URI is returned untouched.
func resolveURL(raw string, baseURL string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}
