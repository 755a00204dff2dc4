package hls

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
)

// playlistCacheDurationMs is the sliding window of segment duration the
// playlist keeps resident before it starts evicting the oldest entry on
// every new segment added.
const playlistCacheDurationMs = 30_000

type segment struct {
	uri        string
	durationMs int64
}

// Playlist is one app's M3U8 media playlist writer. It is owned by exactly
// one hls writer goroutine and is not safe for concurrent use.
type Playlist struct {
	dir    string
	path   string
	cleanr *FileCleaner
	log    *slog.Logger

	targetDurationSec int
	mediaSequence     uint64
	segments          []segment
	currentDurationMs int64
	cleanupStarted    bool
	endList           bool
}

// NewPlaylist returns a Playlist that writes playlist.m3u8 into dir (which
// must already exist).
func NewPlaylist(dir string, cleaner *FileCleaner, log *slog.Logger) *Playlist {
	return &Playlist{
		dir:               dir,
		path:              filepath.Join(dir, "playlist.m3u8"),
		cleanr:            cleaner,
		log:               log,
		targetDurationSec: 1,
	}
}

// SetTargetDuration sets the #EXT-X-TARGETDURATION advertised in the
// playlist. Callers set this once, from the second keyframe's measured
// interval.
func (p *Playlist) SetTargetDuration(sec int) {
	if sec > p.targetDurationSec {
		p.targetDurationSec = sec
	}
}

// AddMediaSegment appends a newly flushed segment file to the playlist,
// evicting the oldest segment first once the cache window has filled, then
// rewrites the playlist file atomically.
func (p *Playlist) AddMediaSegment(uri string, durationMs int64) error {
	if p.cleanupStarted {
		p.evict(1)
	} else if p.currentDurationMs >= playlistCacheDurationMs {
		p.cleanupStarted = true
	}

	p.segments = append(p.segments, segment{uri: uri, durationMs: durationMs})
	p.currentDurationMs += durationMs

	return p.writeAtomic()
}

// evict drops the n oldest segments, schedules their backing files for
// deletion via the file cleaner, and advances the media sequence number.
func (p *Playlist) evict(n int) {
	if n > len(p.segments) {
		n = len(p.segments)
	}
	if n == 0 {
		return
	}

	paths := make([]string, 0, n)
	for _, seg := range p.segments[:n] {
		paths = append(paths, filepath.Join(p.dir, seg.uri))
		p.currentDurationMs -= seg.durationMs
	}
	p.cleanr.Schedule(playlistCacheDurationMs, paths)

	p.segments = p.segments[n:]
	p.mediaSequence += uint64(n)
}

// Close schedules every remaining segment for deletion after the playlist's
// current total duration and writes a final, closed (#EXT-X-ENDLIST)
// playlist. Called once the upstream session ends.
func (p *Playlist) Close() error {
	if len(p.segments) > 0 {
		paths := make([]string, 0, len(p.segments))
		for _, seg := range p.segments {
			paths = append(paths, filepath.Join(p.dir, seg.uri))
		}
		p.cleanr.Schedule(p.currentDurationMs, paths)
	}
	p.endList = true
	return p.writeAtomic()
}

func (p *Playlist) writeAtomic() error {
	var b strings.Builder
	fmt.Fprintf(&b, "#EXTM3U\n")
	fmt.Fprintf(&b, "#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", p.targetDurationSec)
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", p.mediaSequence)
	for _, seg := range p.segments {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n%s\n", float64(seg.durationMs)/1000, seg.uri)
	}
	if p.endList {
		fmt.Fprintf(&b, "#EXT-X-ENDLIST\n")
	}

	tmp, err := os.CreateTemp(p.dir, ".playlist-*.m3u8.tmp")
	if err != nil {
		return rtmperrors.NewProtocolError("hls.playlist.write", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return rtmperrors.NewProtocolError("hls.playlist.write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return rtmperrors.NewProtocolError("hls.playlist.write", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0o644); err != nil {
			os.Remove(tmpPath)
			return rtmperrors.NewProtocolError("hls.playlist.write", err)
		}
	}

	if err := os.Rename(tmpPath, p.path); err != nil {
		os.Remove(tmpPath)
		return rtmperrors.NewProtocolError("hls.playlist.write", err)
	}
	return nil
}
