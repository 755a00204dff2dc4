package hls

import (
	"log/slog"
	"os"
	"time"

	"github.com/alxayo/go-rtmp/internal/logger"
)

// FileCleaner is the single goroutine owning every pending HLS segment
// deletion across all apps. Schedule enqueues a batch of paths with a
// nominal lifetime in milliseconds; the effective expiry is 1.5x that,
// absorbing playback latency so a player mid-segment doesn't 404.
type FileCleaner struct {
	reqs chan cleanRequest
	log  *slog.Logger
}

type cleanRequest struct {
	delayMs int64
	paths   []string
}

// NewFileCleaner starts the cleaner's dispatch goroutine and returns a
// handle. One FileCleaner is shared by every app's hls writer.
func NewFileCleaner() *FileCleaner {
	fc := &FileCleaner{
		reqs: make(chan cleanRequest, 256),
		log:  logger.Logger().With("component", "hls.file_cleaner"),
	}
	go fc.run()
	return fc
}

// Schedule queues paths for deletion after the effective expiry derived
// from delayMs. Non-blocking up to the request channel's buffer; a writer
// that floods scheduling requests faster than the dispatch goroutine can
// arm timers will block briefly rather than drop a deletion.
func (fc *FileCleaner) Schedule(delayMs int64, paths []string) {
	if len(paths) == 0 {
		return
	}
	fc.reqs <- cleanRequest{delayMs: delayMs, paths: paths}
}

// effectiveExpiry scales the nominal segment lifetime by 1.5x.
func effectiveExpiry(delayMs int64) time.Duration {
	return time.Duration(delayMs/100*150) * time.Millisecond
}

func (fc *FileCleaner) run() {
	for req := range fc.reqs {
		wait := effectiveExpiry(req.delayMs)
		paths := req.paths
		time.AfterFunc(wait, func() { fc.deleteAll(paths) })
	}
}

func (fc *FileCleaner) deleteAll(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			fc.log.Warn("failed to remove hls segment", "path", p, "error", err)
		}
	}
}
