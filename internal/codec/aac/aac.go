// Package aac implements the AudioSpecificConfiguration (ASC) parser and the
// ADTS (Audio Data Transport Stream) header writer used to turn raw AAC
// payloads carried in RTMP audio messages into the self-framed form the
// MPEG-TS packager requires.
package aac

import (
	"fmt"

	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
)

// AudioObjectType is the MPEG-4 audio object type field of an ASC.
type AudioObjectType uint8

const (
	AacMain               AudioObjectType = 1
	AacLowComplexity      AudioObjectType = 2
	AacScalableSampleRate AudioObjectType = 3
	AacLongTermPrediction AudioObjectType = 4
)

func parseAudioObjectType(v uint8) (AudioObjectType, error) {
	switch v {
	case 1:
		return AacMain, nil
	case 2:
		return AacLowComplexity, nil
	case 3:
		return AacScalableSampleRate, nil
	case 4:
		return AacLongTermPrediction, nil
	default:
		return 0, rtmperrors.NewCodecError("aac.object_type", fmt.Errorf("unsupported audio object type %d", v))
	}
}

// SamplingFrequencyIndex is the ASC's sampling_frequency_index field.
// Values 13 and 14 are reserved; the full valid range is 0-12 and 15
// (15 means an explicit frequency follows, which this module does not
// carry since ASCs on RTMP/FLV streams are always implicit-rate).
type SamplingFrequencyIndex uint8

func parseSamplingFrequencyIndex(v uint8) (SamplingFrequencyIndex, error) {
	if v <= 12 || v == 15 {
		return SamplingFrequencyIndex(v), nil
	}
	return 0, rtmperrors.NewCodecError("aac.sampling_frequency_index", fmt.Errorf("unsupported sampling frequency index %d", v))
}

// ChannelConfiguration is the ASC's channel_configuration field (0-7).
type ChannelConfiguration uint8

func parseChannelConfiguration(v uint8) (ChannelConfiguration, error) {
	if v <= 7 {
		return ChannelConfiguration(v), nil
	}
	return 0, rtmperrors.NewCodecError("aac.channel_configuration", fmt.Errorf("unsupported channel configuration %d", v))
}

// AudioSpecificConfiguration is the AAC sequence header payload (FLV
// AACPacketType 0).
//
// Bits | Description
// ---- | -----------
// 5    | Audio object type
// 4    | Sampling frequency index
// 4    | Channel configuration
// 1    | Frame length flag
// 1    | Depends on core coder
// 1    | Extension flag
type AudioSpecificConfiguration struct {
	ObjectType            AudioObjectType
	SamplingFrequencyIndex SamplingFrequencyIndex
	ChannelConfiguration  ChannelConfiguration
	FrameLengthFlag       bool
	DependsOnCoreCoder    bool
	ExtensionFlag         bool
}

// ParseASC decodes an AudioSpecificConfiguration from its first two bytes.
// Extension fields beyond the base 16 bits are ignored; none of this
// module's callers need them.
func ParseASC(b []byte) (AudioSpecificConfiguration, error) {
	if len(b) < 2 {
		return AudioSpecificConfiguration{}, rtmperrors.NewCodecError("aac.parse_asc", fmt.Errorf("short buffer: %d bytes", len(b)))
	}
	a := b[0]
	c := b[1]

	objectType, err := parseAudioObjectType((a & 0xF8) >> 3)
	if err != nil {
		return AudioSpecificConfiguration{}, err
	}
	sfIdx, err := parseSamplingFrequencyIndex(((a & 0x07) << 1) | (c >> 7))
	if err != nil {
		return AudioSpecificConfiguration{}, err
	}
	chanCfg, err := parseChannelConfiguration((c >> 3) & 0x0F)
	if err != nil {
		return AudioSpecificConfiguration{}, err
	}

	return AudioSpecificConfiguration{
		ObjectType:             objectType,
		SamplingFrequencyIndex: sfIdx,
		ChannelConfiguration:   chanCfg,
		FrameLengthFlag:        c&0x04 == 0x04,
		DependsOnCoreCoder:     c&0x02 == 0x02,
		ExtensionFlag:          c&0x01 == 0x01,
	}, nil
}

// State tracks whether a Coder has consumed its ASC yet.
type State int

const (
	Initializing State = iota
	Ready
)

// Coder converts raw AAC payloads carried over RTMP into ADTS frames for the
// MPEG-TS packager. Not safe for concurrent use.
type Coder struct {
	asc   AudioSpecificConfiguration
	state State
}

// NewCoder returns a Coder awaiting its first sequence header.
func NewCoder() *Coder {
	return &Coder{state: Initializing}
}

func (c *Coder) State() State { return c.state }

// SetSequenceHeader consumes an AAC sequence header payload (the ASC).
func (c *Coder) SetSequenceHeader(raw []byte) error {
	asc, err := ParseASC(raw)
	if err != nil {
		return err
	}
	c.asc = asc
	c.state = Ready
	return nil
}

// WriteADTS wraps a raw AAC payload in a 7-byte ADTS header (CRC protection
// is never present, so the header is always 7 bytes).
//
// Bits | Description
// ---- | -----------
// 12   | Sync word, constant 0xFFF
// 1    | MPEG version
// 2    | Layer, constant 0x00
// 1    | Protection flag
// 2    | Profile
// 4    | MPEG-4 sampling frequency index
// 1    | Private, constant 0x00
// 3    | MPEG-4 channel configuration
// 1    | Originality
// 1    | Home
// 1    | Copyrighted ID
// 1    | Copyrighted ID start
// 13   | Frame length
// 11   | Buffer fullness
// 2    | Number of AAC frames - 1
func (c *Coder) WriteADTS(payload []byte) ([]byte, error) {
	if c.state != Ready {
		return nil, rtmperrors.NewCodecError("aac.write_adts", fmt.Errorf("coder not initialized"))
	}

	sfIdx := uint8(c.asc.SamplingFrequencyIndex)
	if sfIdx == 0x0F {
		return nil, rtmperrors.NewCodecError("aac.write_adts", fmt.Errorf("forbidden sampling frequency index"))
	}

	out := make([]byte, 7+len(payload))

	// Syncword (12 bits) | MPEG version (1 bit = 0) | layer (2 bits = 0)
	// | protection absent (1 bit = 1)
	out[0] = 0xFF
	out[1] = 0xF1

	profile := (uint8(c.asc.ObjectType) - 1) << 6
	out[2] = profile | (sfIdx << 2) | ((uint8(c.asc.ChannelConfiguration) & 0x07) >> 2)

	chanCfg2 := (uint8(c.asc.ChannelConfiguration) & 0x03) << 6

	frameLength := uint16(len(payload) + 7)
	frameLength1 := byte((frameLength & 0x1FFF) >> 11)
	out[3] = chanCfg2 | frameLength1

	frameLength2 := (frameLength & 0x7FF) << 5
	out[4] = byte(frameLength2 >> 8)
	out[5] = byte(frameLength2) | 0x1F

	out[6] = 0xFC

	copy(out[7:], payload)
	return out, nil
}
