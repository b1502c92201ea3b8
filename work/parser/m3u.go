package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/grafana/regexp"
)

// Entry is one raw playlist row: the display metadata plus the unsplit URL
// field exactly as the source advertised it. Sources that list several mirror
// URLs for one channel separate them inside the URL field; splitting that is
// the normalizer's job, not the parser's.
type Entry struct {
	Name  string
	Group string
	Logo  string
	URL   string
}

var extinfAttrRe = regexp.MustCompile(`([a-zA-Z0-9-]+)="([^"]*)"`)

// ParsePlaylist reads extended M3U content and returns one Entry per
// EXTINF/URL pair. Malformed rows are skipped rather than failing the whole
// playlist: a half-broken source should still contribute its good entries.
func ParsePlaylist(r io.Reader) []Entry {
	var entries []Entry
	var current *Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#EXTINF:") {
			current = parseExtinf(line)
			continue
		}

		if strings.HasPrefix(line, "#") {
			// other directives (#EXTM3U, #EXT-X-*) carry no channel data
			continue
		}

		// a bare line following an EXTINF is the entry's URL field
		if current != nil {
			current.URL = line
			entries = append(entries, *current)
			current = nil
		}
	}

	return entries
}

// parseExtinf extracts the display name and the tvg-style attributes from a
// single #EXTINF line. The name is whatever follows the last comma of the
// directive; attributes use the key="value" form.
func parseExtinf(line string) *Entry {
	entry := &Entry{}

	for _, m := range extinfAttrRe.FindAllStringSubmatch(line, -1) {
		switch strings.ToLower(m[1]) {
		case "tvg-logo":
			entry.Logo = m[2]
		case "group-title", "tvg-group":
			if entry.Group == "" {
				entry.Group = m[2]
			}
		case "tvg-name":
			entry.Name = m[2]
		}
	}

	// display name after the final comma wins over the tvg-name attribute
	if idx := strings.LastIndex(line, ","); idx >= 0 && idx < len(line)-1 {
		name := strings.TrimSpace(line[idx+1:])
		if name != "" {
			entry.Name = name
		}
	}

	return entry
}
