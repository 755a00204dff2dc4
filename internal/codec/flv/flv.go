// Package flv parses the FLV tag bodies carried inside RTMP audio (type 8)
// and video (type 9) messages. Only H.264/AVC video and AAC audio are
// accepted: the MPEG-TS packager this module feeds has no muxer for any
// other codec, so anything else is a hard parse error rather than a
// passthrough.
package flv

import (
	"fmt"

	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
)

// FrameType is the video tag's frame type nibble.
type FrameType uint8

const (
	FrameTypeKey FrameType = 1
	FrameTypeInter FrameType = 2
)

// PacketType distinguishes the sequence header (codec config) from coded
// frame data, for both AVC video and AAC audio tags.
type PacketType uint8

const (
	PacketTypeSequenceHeader PacketType = 0
	PacketTypeData           PacketType = 1
)

const (
	videoCodecAVC = 7
	audioCodecAAC = 10
)

// VideoTag is a parsed RTMP video message (FLV VIDEODATA).
//
// Tag layout: [frame_type(4 bits) codec_id(4 bits)] [avc_packet_type]
// [composition_time(3 bytes, signed, milliseconds; PTS = timestamp + composition_time)]
// [payload...]
type VideoTag struct {
	FrameType       FrameType
	PacketType      PacketType
	CompositionTime int32
	Payload         []byte
}

// IsKeyFrame reports whether the tag carries an IDR/key frame.
func (t VideoTag) IsKeyFrame() bool { return t.FrameType == FrameTypeKey }

// ParseVideoTag parses the payload of an RTMP video message. Only
// codec_id == 7 (AVC) is accepted.
func ParseVideoTag(data []byte) (VideoTag, error) {
	if len(data) < 2 {
		return VideoTag{}, rtmperrors.NewCodecError("flv.parse_video", fmt.Errorf("short video tag: %d bytes", len(data)))
	}
	b0 := data[0]
	frameTypeID := (b0 >> 4) & 0x0F
	codecID := b0 & 0x0F

	if codecID != videoCodecAVC {
		return VideoTag{}, rtmperrors.NewCodecError("flv.parse_video", fmt.Errorf("unsupported video codec id %d", codecID))
	}

	var frameType FrameType
	switch frameTypeID {
	case 1:
		frameType = FrameTypeKey
	case 2:
		frameType = FrameTypeInter
	default:
		return VideoTag{}, rtmperrors.NewCodecError("flv.parse_video", fmt.Errorf("unsupported frame type %d", frameTypeID))
	}

	if len(data) < 5 {
		return VideoTag{}, rtmperrors.NewCodecError("flv.parse_video", fmt.Errorf("avc tag truncated, need packet type + composition time"))
	}
	pt := data[1]
	var packetType PacketType
	switch pt {
	case 0x00:
		packetType = PacketTypeSequenceHeader
	case 0x01:
		packetType = PacketTypeData
	default:
		return VideoTag{}, rtmperrors.NewCodecError("flv.parse_video", fmt.Errorf("unsupported avc packet type %d", pt))
	}

	composition := int32(data[2])<<16 | int32(data[3])<<8 | int32(data[4])
	if composition&0x800000 != 0 {
		composition |= ^int32(0xFFFFFF)
	}

	return VideoTag{
		FrameType:       frameType,
		PacketType:      packetType,
		CompositionTime: composition,
		Payload:         data[5:],
	}, nil
}

// AudioTag is a parsed RTMP audio message (FLV AUDIODATA).
//
// Tag layout: [sound_format(4 bits) sound_rate(2 bits) sound_size(1 bit)
// sound_type(1 bit)] [aac_packet_type] [payload...]
type AudioTag struct {
	PacketType PacketType
	Payload    []byte
}

// ParseAudioTag parses the payload of an RTMP audio message. Only
// sound_format == 10 (AAC) is accepted.
func ParseAudioTag(data []byte) (AudioTag, error) {
	if len(data) == 0 {
		return AudioTag{}, rtmperrors.NewCodecError("flv.parse_audio", fmt.Errorf("empty audio tag"))
	}
	soundFormat := (data[0] >> 4) & 0x0F
	if soundFormat != audioCodecAAC {
		return AudioTag{}, rtmperrors.NewCodecError("flv.parse_audio", fmt.Errorf("unsupported audio codec id %d", soundFormat))
	}
	if len(data) < 2 {
		return AudioTag{}, rtmperrors.NewCodecError("flv.parse_audio", fmt.Errorf("aac tag truncated, need packet type"))
	}
	pt := data[1]
	var packetType PacketType
	switch pt {
	case 0x00:
		packetType = PacketTypeSequenceHeader
	case 0x01:
		packetType = PacketTypeData
	default:
		return AudioTag{}, rtmperrors.NewCodecError("flv.parse_audio", fmt.Errorf("unsupported aac packet type %d", pt))
	}
	return AudioTag{PacketType: packetType, Payload: data[2:]}, nil
}
