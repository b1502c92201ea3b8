package parser

import (
	"strings"
	"testing"

	"livetv-relay/work/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlaylistBasic(t *testing.T) {
	playlist := `#EXTM3U
#EXTINF:-1 tvg-id="one" tvg-logo="http://logo.example/one.png" group-title="News",Channel One
http://stream.example/one.m3u8
#EXTINF:-1 group-title="Sports",Channel Two
http://stream.example/two.m3u8
`

	entries := ParsePlaylist(strings.NewReader(playlist))

	require.Len(t, entries, 2)
	assert.Equal(t, Entry{
		Name:  "Channel One",
		Group: "News",
		Logo:  "http://logo.example/one.png",
		URL:   "http://stream.example/one.m3u8",
	}, entries[0])
	assert.Equal(t, "Channel Two", entries[1].Name)
	assert.Equal(t, "Sports", entries[1].Group)
}

func TestParsePlaylistDisplayNameWinsOverTvgName(t *testing.T) {
	playlist := `#EXTM3U
#EXTINF:-1 tvg-name="Attribute Name",Display Name
http://stream.example/ch.m3u8
`

	entries := ParsePlaylist(strings.NewReader(playlist))

	require.Len(t, entries, 1)
	assert.Equal(t, "Display Name", entries[0].Name)
}

func TestParsePlaylistTvgNameUsedWhenDisplayNameMissing(t *testing.T) {
	playlist := `#EXTM3U
#EXTINF:-1 tvg-name="Attribute Name",
http://stream.example/ch.m3u8
`

	entries := ParsePlaylist(strings.NewReader(playlist))

	require.Len(t, entries, 1)
	assert.Equal(t, "Attribute Name", entries[0].Name)
}

func TestParsePlaylistSkipsMalformedRows(t *testing.T) {
	playlist := `#EXTM3U
http://orphan.example/no-extinf.m3u8
#EXTINF:-1,Good Channel
http://stream.example/good.m3u8
#EXTINF:-1,Dangling EXTINF with no URL
`

	entries := ParsePlaylist(strings.NewReader(playlist))

	require.Len(t, entries, 1)
	assert.Equal(t, "Good Channel", entries[0].Name)
}

func TestParsePlaylistIgnoresDirectivesAndBlankLines(t *testing.T) {
	playlist := `#EXTM3U

#EXT-X-SOMETHING:whatever
#EXTINF:-1,Channel
#EXT-X-ANOTHER:directive

http://stream.example/ch.m3u8
`

	entries := ParsePlaylist(strings.NewReader(playlist))

	require.Len(t, entries, 1)
	assert.Equal(t, "http://stream.example/ch.m3u8", entries[0].URL)
}

func TestParsePlaylistKeepsMultiURLFieldUnsplit(t *testing.T) {
	playlist := `#EXTM3U
#EXTINF:-1,Mirrored
http://a.example/ch.m3u8,http://b.example/ch.m3u8
`

	entries := ParsePlaylist(strings.NewReader(playlist))

	require.Len(t, entries, 1)
	assert.Equal(t, "http://a.example/ch.m3u8,http://b.example/ch.m3u8", entries[0].URL,
		"splitting mirrors is the normalizer's job, the parser passes the field through")
}

func TestParsePlaylistEmptyInput(t *testing.T) {
	assert.Empty(t, ParsePlaylist(strings.NewReader("")))
	assert.Empty(t, ParsePlaylist(strings.NewReader("#EXTM3U\n")))
}

func TestIsMasterPlaylist(t *testing.T) {
	mph := NewMasterPlaylistHandler(&config.Config{})

	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nlow.m3u8\n"
	media := "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nseg0.ts\n"

	assert.True(t, mph.IsMasterPlaylist(master))
	assert.False(t, mph.IsMasterPlaylist(media))
}

func TestBestVariantPicksHighestBandwidth(t *testing.T) {
	mph := NewMasterPlaylistHandler(&config.Config{})

	master := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\n" +
		"low/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1920x1080\n" +
		"high/index.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=1280x720\n" +
		"mid/index.m3u8\n"

	variant, ok := mph.BestVariant(master, "http://host.example/stream/master.m3u8")

	require.True(t, ok)
	assert.Equal(t, "http://host.example/stream/high/index.m3u8", variant)
}

func TestBestVariantKeepsAbsoluteURI(t *testing.T) {
	mph := NewMasterPlaylistHandler(&config.Config{})

	master := "#EXTM3U\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=2400000\n" +
		"http://cdn.example/variants/high.m3u8\n"

	variant, ok := mph.BestVariant(master, "http://host.example/master.m3u8")

	require.True(t, ok)
	assert.Equal(t, "http://cdn.example/variants/high.m3u8", variant)
}

func TestBestVariantRejectsNonMasterContent(t *testing.T) {
	mph := NewMasterPlaylistHandler(&config.Config{})

	media := "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nseg0.ts\n#EXT-X-ENDLIST\n"
	_, ok := mph.BestVariant(media, "http://host.example/media.m3u8")
	assert.False(t, ok)

	_, ok = mph.BestVariant("not a playlist at all", "http://host.example/x")
	assert.False(t, ok)
}
