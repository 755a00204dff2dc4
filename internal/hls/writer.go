// Package hls converts a session's FLV-wrapped H.264/AAC broadcast into
// keyframe-aligned MPEG-TS segments and an M3U8 media playlist, the way the
// reference javelin implementation's hls::Writer/M3U8Writer/FileCleaner do.
// One Writer is spawned per live app (triggered by the session manager's
// "create_session" event) and runs until its subscription closes.
package hls

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/alxayo/go-rtmp/internal/codec/aac"
	"github.com/alxayo/go-rtmp/internal/codec/avc"
	"github.com/alxayo/go-rtmp/internal/codec/flv"
	"github.com/alxayo/go-rtmp/internal/codec/mpegts"
	"github.com/alxayo/go-rtmp/internal/logger"
	"github.com/alxayo/go-rtmp/internal/packet"
	"github.com/alxayo/go-rtmp/internal/session"
)

const defaultWriteIntervalMs = 2000

// Writer owns one app's segment buffer, playlist, and the AVC/AAC coders
// needed to translate its FLV wire format into AnnexB/ADTS for MPEG-TS. Not
// safe for concurrent use; the owning goroutine (run) is its only caller.
type Writer struct {
	app string
	dir string
	log *slog.Logger

	avcCoder *avc.Coder
	aacCoder *aac.Coder
	playlist *Playlist

	writeIntervalMs int64
	nextWriteMs     int64
	lastKeyframeMs  int64
	keyframeCounter int

	buf   *bytes.Buffer
	muxer *mpegts.Muxer
}

// NewWriter creates dir/app (if missing) and returns a Writer ready to
// consume a session's broadcast packets.
func NewWriter(root, app string, cleaner *FileCleaner) (*Writer, error) {
	dir := filepath.Join(root, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("hls: create segment directory: %w", err)
	}
	log := logger.Logger().With("component", "hls.writer", "app", app)
	return &Writer{
		app:             app,
		dir:             dir,
		log:             log,
		avcCoder:        avc.NewCoder(),
		aacCoder:        aac.NewCoder(),
		playlist:        NewPlaylist(dir, cleaner, log),
		writeIntervalMs: defaultWriteIntervalMs,
		nextWriteMs:     defaultWriteIntervalMs,
	}, nil
}

// Run consumes sub until it closes (the session ended), then closes the
// playlist. Meant to be called from its own goroutine.
func (w *Writer) Run(sub *session.Subscription) {
	defer func() {
		if err := w.playlist.Close(); err != nil {
			w.log.Warn("failed to close playlist", "error", err)
		}
		w.log.Info("hls writer stopped")
	}()

	for pkt := range sub.Packets {
		w.handlePacket(pkt)
	}
}

func (w *Writer) handlePacket(pkt packet.Packet) {
	switch pkt.Kind() {
	case packet.KindVideo:
		w.handleVideo(pkt)
	case packet.KindAudio:
		w.handleAudio(pkt)
	}
}

func (w *Writer) handleVideo(pkt packet.Packet) {
	tag, err := flv.ParseVideoTag(pkt.Payload())
	if err != nil {
		w.log.Warn("dropping unparseable video packet", "error", err)
		return
	}
	if tag.PacketType == flv.PacketTypeSequenceHeader {
		if err := w.avcCoder.SetSequenceHeader(tag.Payload); err != nil {
			w.log.Warn("failed to set avc sequence header", "error", err)
		}
		return
	}

	timestamp := int64(pkt.Timestamp())

	if tag.IsKeyFrame() {
		keyframeDuration := timestamp - w.lastKeyframeMs
		if w.keyframeCounter == 1 {
			w.playlist.SetTargetDuration(int(math.Round(float64(3*keyframeDuration) / 1000)))
		}
		if timestamp >= w.nextWriteMs {
			w.flushSegment(keyframeDuration)
			w.nextWriteMs += w.writeIntervalMs
			w.lastKeyframeMs = timestamp
		}
		w.keyframeCounter++
	}

	if w.avcCoder.State() != avc.Ready {
		return
	}
	units, err := w.avcCoder.ReadAvcc(tag.Payload)
	if err != nil {
		w.log.Warn("failed to parse avcc payload", "error", err)
		return
	}
	annexB, err := w.avcCoder.WriteAnnexB(units)
	if err != nil {
		w.log.Warn("failed to write annexb frame", "error", err)
		return
	}

	w.ensureSegment()
	pts := timestamp + int64(tag.CompositionTime)
	if err := w.muxer.PushVideo(pts, timestamp, tag.IsKeyFrame(), annexB); err != nil {
		w.log.Warn("failed to push video pes", "error", err)
	}
}

func (w *Writer) handleAudio(pkt packet.Packet) {
	tag, err := flv.ParseAudioTag(pkt.Payload())
	if err != nil {
		w.log.Warn("dropping unparseable audio packet", "error", err)
		return
	}
	if tag.PacketType == flv.PacketTypeSequenceHeader {
		if err := w.aacCoder.SetSequenceHeader(tag.Payload); err != nil {
			w.log.Warn("failed to set aac sequence header", "error", err)
		}
		return
	}
	if w.keyframeCounter == 0 {
		// No segment has started yet; don't open one on audio alone.
		return
	}
	if w.aacCoder.State() != aac.Ready {
		return
	}

	adts, err := w.aacCoder.WriteADTS(tag.Payload)
	if err != nil {
		w.log.Warn("failed to write adts frame", "error", err)
		return
	}

	w.ensureSegment()
	if err := w.muxer.PushAudio(int64(pkt.Timestamp()), adts); err != nil {
		w.log.Warn("failed to push audio pes", "error", err)
	}
}

// ensureSegment lazily opens the in-memory buffer and muxer for the
// segment currently being assembled, writing PAT/PMT immediately so a
// player tuning in mid-segment still finds its tables up front.
func (w *Writer) ensureSegment() {
	if w.muxer != nil {
		return
	}
	w.buf = &bytes.Buffer{}
	w.muxer = mpegts.NewMuxer(w.buf, true, w.aacCoder.State() == aac.Ready)
	if err := w.muxer.WriteTables(); err != nil {
		w.log.Warn("failed to write mpegts tables", "error", err)
	}
}

// flushSegment writes the buffer assembled so far to disk under a
// keyframe-counter-stamped filename and registers it with the playlist,
// then clears the buffer so the next pushed frame starts a fresh segment.
func (w *Writer) flushSegment(keyframeDurationMs int64) {
	var data []byte
	if w.buf != nil {
		data = w.buf.Bytes()
	}

	filename := fmt.Sprintf("%d-%d.mpegts", time.Now().Unix(), w.keyframeCounter)
	fullPath := filepath.Join(w.dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		w.log.Warn("failed to write hls segment", "path", fullPath, "error", err)
	} else if err := w.playlist.AddMediaSegment(filename, keyframeDurationMs); err != nil {
		w.log.Warn("failed to update playlist", "error", err)
	}

	w.buf = nil
	w.muxer = nil
}
