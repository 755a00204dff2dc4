// Package mpegts assembles MPEG-TS packets (PAT, PMT, and H.264/AAC PES
// streams) for the HLS segment writer. It wraps github.com/asticode/go-astits,
// registering the video elementary stream on PID 257 and the audio elementary
// stream on PID 258. The PMT is written on the PID astits assigns itself;
// pmtPID (256) is not passed to the muxer.
package mpegts

import (
	"context"
	"fmt"
	"io"

	"github.com/asticode/go-astits"

	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
)

const (
	pmtPID   = 256
	videoPID = 257
	audioPID = 258

	videoStreamID = 224
	audioStreamID = 192

	// clock90k is the MPEG-TS clock rate; RTMP/FLV timestamps arrive in
	// milliseconds and must be scaled by this factor before being placed in
	// a PCR/PTS/DTS field.
	clock90k = 90
)

// Muxer writes a single MPEG-TS elementary stream pair (H.264 video + AAC
// audio, either may be absent) to an underlying io.Writer. One Muxer backs
// one HLS segment file; a new Muxer is created per segment.
type Muxer struct {
	w        io.Writer
	m        *astits.Muxer
	hasVideo bool
	hasAudio bool
}

// NewMuxer creates a Muxer writing to w. hasVideo/hasAudio select which
// elementary streams are registered in the PMT.
func NewMuxer(w io.Writer, hasVideo, hasAudio bool) *Muxer {
	mx := &Muxer{w: w, hasVideo: hasVideo, hasAudio: hasAudio}
	mx.m = astits.NewMuxer(context.Background(), w)

	if hasVideo {
		mx.m.AddElementaryStream(astits.PMTElementaryStream{
			ElementaryPID: videoPID,
			StreamType:    astits.StreamTypeH264Video,
		})
	}
	if hasAudio {
		mx.m.AddElementaryStream(astits.PMTElementaryStream{
			ElementaryPID: audioPID,
			StreamType:    astits.StreamTypeAACAudio,
		})
	}

	if hasVideo {
		mx.m.SetPCRPID(videoPID)
	} else {
		mx.m.SetPCRPID(audioPID)
	}

	return mx
}

// WriteTables forces an immediate PAT/PMT write; called once at the start of
// every segment so a player tuning into the segment mid-stream always finds
// its tables in the first packets.
func (m *Muxer) WriteTables() error {
	if _, err := m.m.WriteTables(); err != nil {
		return rtmperrors.NewTSError("mpegts.write_tables", err)
	}
	return nil
}

// PushVideo writes one AnnexB-encoded access unit as a video PES packet.
// pts/dts are RTMP timestamps in milliseconds; the PCR is derived from dts.
// keyframe marks the packet with random_access_indicator for segment/player
// seeking and forces a PCR refresh. The whole access unit goes to astits in
// one WriteData call and astits splits the PES across TS packets itself; the
// first TS packet's payload is not limited to 153 bytes.
func (m *Muxer) PushVideo(ptsMS, dtsMS int64, keyframe bool, payload []byte) error {
	if !m.hasVideo {
		return rtmperrors.NewTSError("mpegts.push_video", fmt.Errorf("muxer has no video stream"))
	}

	var af *astits.PacketAdaptationField
	if keyframe {
		af = &astits.PacketAdaptationField{
			RandomAccessIndicator: true,
			HasPCR:                true,
			PCR:                   &astits.ClockReference{Base: dtsMS * clock90k},
		}
	}

	oh := &astits.PESOptionalHeader{MarkerBits: 2}
	if ptsMS == dtsMS {
		oh.PTSDTSIndicator = astits.PTSDTSIndicatorOnlyPTS
		oh.PTS = &astits.ClockReference{Base: ptsMS * clock90k}
	} else {
		oh.PTSDTSIndicator = astits.PTSDTSIndicatorBothPresent
		oh.PTS = &astits.ClockReference{Base: ptsMS * clock90k}
		oh.DTS = &astits.ClockReference{Base: dtsMS * clock90k}
	}

	_, err := m.m.WriteData(&astits.MuxerData{
		PID:             videoPID,
		AdaptationField: af,
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				OptionalHeader: oh,
				StreamID:       videoStreamID,
			},
			Data: payload,
		},
	})
	if err != nil {
		return rtmperrors.NewTSError("mpegts.push_video", err)
	}
	return nil
}

// PushAudio writes one ADTS-framed AAC frame as an audio PES packet. ptsMS is
// an RTMP timestamp in milliseconds.
func (m *Muxer) PushAudio(ptsMS int64, payload []byte) error {
	if !m.hasAudio {
		return rtmperrors.NewTSError("mpegts.push_audio", fmt.Errorf("muxer has no audio stream"))
	}

	var af *astits.PacketAdaptationField
	if !m.hasVideo {
		af = &astits.PacketAdaptationField{
			RandomAccessIndicator: true,
			HasPCR:                true,
			PCR:                   &astits.ClockReference{Base: ptsMS * clock90k},
		}
	}

	_, err := m.m.WriteData(&astits.MuxerData{
		PID:             audioPID,
		AdaptationField: af,
		PES: &astits.PESData{
			Header: &astits.PESHeader{
				OptionalHeader: &astits.PESOptionalHeader{
					MarkerBits:      2,
					PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
					PTS:             &astits.ClockReference{Base: ptsMS * clock90k},
				},
				PacketLength: uint16(len(payload) + 8),
				StreamID:     audioStreamID,
			},
			Data: payload,
		},
	})
	if err != nil {
		return rtmperrors.NewTSError("mpegts.push_audio", err)
	}
	return nil
}
