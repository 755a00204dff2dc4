// Package packet defines the common envelope that flows between the session
// manager, session instances, the HLS writer, and relay destinations.
package packet

import (
	"encoding/binary"
	"fmt"
)

// Kind identifies what a Packet carries.
type Kind uint8

const (
	KindMeta Kind = iota
	KindVideo
	KindAudio
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindMeta:
		return "meta"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Packet is an immutable envelope. Payload is never mutated after
// construction; callers that need to modify bytes must copy first. This
// mirrors the teacher's chunk.Message field shape (CSID/Timestamp/Payload)
// while adding the tagged Kind the session/HLS layers need.
type Packet struct {
	kind      Kind
	timestamp uint32
	hasTime   bool
	payload   []byte
}

// NewMeta builds a Meta packet. Meta carries no timestamp requirement.
func NewMeta(payload []byte) Packet {
	return Packet{kind: KindMeta, payload: payload}
}

// NewVideo builds a Video packet with an RTMP timestamp in milliseconds.
func NewVideo(timestamp uint32, payload []byte) Packet {
	return Packet{kind: KindVideo, timestamp: timestamp, hasTime: true, payload: payload}
}

// NewAudio builds an Audio packet with an RTMP timestamp in milliseconds.
func NewAudio(timestamp uint32, payload []byte) Packet {
	return Packet{kind: KindAudio, timestamp: timestamp, hasTime: true, payload: payload}
}

// NewBytes builds an opaque Bytes packet (used by the SRT publish path, which
// has no FLV framing to classify kind from).
func NewBytes(timestamp uint32, payload []byte) Packet {
	return Packet{kind: KindBytes, timestamp: timestamp, hasTime: true, payload: payload}
}

func (p Packet) Kind() Kind       { return p.kind }
func (p Packet) Payload() []byte  { return p.payload }
func (p Packet) HasTimestamp() bool { return p.hasTime }

// Timestamp returns the packet's RTMP timestamp in milliseconds. Zero if
// HasTimestamp is false.
func (p Packet) Timestamp() uint32 { return p.timestamp }

// IsSequenceHeader is a convenience used by the HLS writer and session
// instance to detect cacheable init packets without re-parsing the FLV tag.
// Video: packet_type byte (second byte) == 0. Audio: AACPacketType byte
// (second byte) == 0. Non-AVC/AAC payloads never satisfy this.
func (p Packet) IsSequenceHeader() bool {
	if p.kind != KindVideo && p.kind != KindAudio {
		return false
	}
	if len(p.payload) < 2 {
		return false
	}
	if p.kind == KindVideo && p.payload[0]&0x0F != 7 {
		return false
	}
	if p.kind == KindAudio && p.payload[0]>>4 != 10 {
		return false
	}
	return p.payload[1] == 0x00
}

// Encode produces a length-free binary layout used by the SRT byte
// transport: 1 byte kind | 1 byte hasTime | 4 bytes timestamp (big endian,
// zero if absent) | remaining bytes payload.
func (p Packet) Encode() []byte {
	out := make([]byte, 6+len(p.payload))
	out[0] = byte(p.kind)
	if p.hasTime {
		out[1] = 1
	}
	binary.BigEndian.PutUint32(out[2:6], p.timestamp)
	copy(out[6:], p.payload)
	return out
}

// Decode parses the layout produced by Encode.
func Decode(b []byte) (Packet, error) {
	if len(b) < 6 {
		return Packet{}, fmt.Errorf("packet: short buffer len=%d", len(b))
	}
	k := Kind(b[0])
	if k > KindBytes {
		return Packet{}, fmt.Errorf("packet: unknown kind %d", b[0])
	}
	hasTime := b[1] == 1
	ts := binary.BigEndian.Uint32(b[2:6])
	payload := append([]byte(nil), b[6:]...)
	return Packet{kind: k, timestamp: ts, hasTime: hasTime, payload: payload}, nil
}
