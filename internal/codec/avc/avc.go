// Package avc implements the AVC (H.264) decoder configuration record, the
// Avcc (length-prefixed NALU) reader used by RTMP video messages, and the
// AnnexB (start-code prefixed) writer used by the MPEG-TS packager. A
// Coder carries the Initializing/Ready state machine: the first video
// message on a stream is always the sequence header (the DCR), and every
// later message is a coded frame that can only be converted once a DCR has
// been seen.
package avc

import (
	"fmt"

	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
	"github.com/alxayo/go-rtmp/internal/codec/nal"
)

// DecoderConfigurationRecord is the AVCDecoderConfigurationRecord carried in
// the AVC sequence header (FLV AVCPacketType 0).
//
// Bits | Name
// ---- | ----
// 8    | Version
// 8    | Profile Indication
// 8    | Profile Compatibility
// 8    | Level Indication
// 6    | Reserved
// 2    | NALU Length Size - 1
// 3    | Reserved
// 5    | SPS Count
// 16   | SPS Length
// var  | SPS
// 8    | PPS Count
// 16   | PPS Length
// var  | PPS
type DecoderConfigurationRecord struct {
	Version              uint8
	ProfileIndication    uint8
	ProfileCompatibility uint8
	LevelIndication      uint8
	NALUSize             uint8
	SPS                  []nal.Unit
	PPS                  []nal.Unit
}

// ParseDCR decodes an AVCDecoderConfigurationRecord.
func ParseDCR(b []byte) (DecoderConfigurationRecord, error) {
	if len(b) < 7 {
		return DecoderConfigurationRecord{}, rtmperrors.NewCodecError("avc.parse_dcr", fmt.Errorf("short record: %d bytes", len(b)))
	}
	pos := 0
	version := b[pos]
	pos++
	if version != 1 {
		return DecoderConfigurationRecord{}, rtmperrors.NewCodecError("avc.parse_dcr", fmt.Errorf("unsupported configuration record version %d", version))
	}
	profileIndication := b[pos]
	pos++
	profileCompat := b[pos]
	pos++
	levelIndication := b[pos]
	pos++
	naluSize := (b[pos] & 0x03) + 1
	pos++

	spsCount := int(b[pos] & 0x1F)
	pos++

	sps, n, err := parseUnitList(b[pos:], spsCount, "sps")
	if err != nil {
		return DecoderConfigurationRecord{}, err
	}
	pos += n

	if pos >= len(b) {
		return DecoderConfigurationRecord{}, rtmperrors.NewCodecError("avc.parse_dcr", fmt.Errorf("missing pps count"))
	}
	ppsCount := int(b[pos])
	pos++

	pps, n, err := parseUnitList(b[pos:], ppsCount, "pps")
	if err != nil {
		return DecoderConfigurationRecord{}, err
	}
	pos += n

	return DecoderConfigurationRecord{
		Version:              version,
		ProfileIndication:    profileIndication,
		ProfileCompatibility: profileCompat,
		LevelIndication:      levelIndication,
		NALUSize:             naluSize,
		SPS:                  sps,
		PPS:                  pps,
	}, nil
}

func parseUnitList(b []byte, count int, label string) ([]nal.Unit, int, error) {
	pos := 0
	units := make([]nal.Unit, 0, count)
	for i := 0; i < count; i++ {
		if len(b)-pos < 2 {
			return nil, 0, rtmperrors.NewCodecError("avc.parse_dcr", fmt.Errorf("missing %s length", label))
		}
		length := int(b[pos])<<8 | int(b[pos+1])
		pos += 2
		if len(b)-pos < length {
			return nil, 0, rtmperrors.NewCodecError("avc.parse_dcr", fmt.Errorf("missing %s data", label))
		}
		u, err := nal.Parse(b[pos : pos+length])
		if err != nil {
			return nil, 0, err
		}
		units = append(units, u)
		pos += length
	}
	return units, pos, nil
}

// State tracks whether a Coder has received its sequence header yet.
type State int

const (
	Initializing State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "initializing"
}

// Coder converts between the RTMP/FLV Avcc wire format and AnnexB, the
// start-code prefixed format MPEG-TS segments require. It is not safe for
// concurrent use; each publishing session owns one.
type Coder struct {
	dcr   DecoderConfigurationRecord
	state State
}

// NewCoder returns a Coder awaiting its first sequence header.
func NewCoder() *Coder {
	return &Coder{state: Initializing}
}

// State reports whether the coder has consumed a sequence header yet.
func (c *Coder) State() State { return c.state }

// SetSequenceHeader consumes an AVC sequence header payload (the DCR), after
// which ReadAvcc/WriteAnnexB become usable.
func (c *Coder) SetSequenceHeader(raw []byte) error {
	dcr, err := ParseDCR(raw)
	if err != nil {
		return err
	}
	c.dcr = dcr
	c.state = Ready
	return nil
}

// ReadAvcc parses a length-prefixed NALU sequence (an RTMP video message
// body with AVCPacketType 1) using the nalu length size recorded in the DCR.
func (c *Coder) ReadAvcc(input []byte) ([]nal.Unit, error) {
	if c.state != Ready {
		return nil, rtmperrors.NewCodecError("avc.read_avcc", fmt.Errorf("coder not initialized"))
	}
	unitSize := int(c.dcr.NALUSize)
	var units []nal.Unit
	pos := 0
	for pos < len(input) {
		if len(input)-pos < unitSize {
			return nil, rtmperrors.NewCodecError("avc.read_avcc", fmt.Errorf("not enough data for nalu size"))
		}
		length := 0
		for i := 0; i < unitSize; i++ {
			length = (length << 8) | int(input[pos+i])
		}
		pos += unitSize
		if len(input)-pos < length {
			return nil, rtmperrors.NewCodecError("avc.read_avcc", fmt.Errorf("not enough data for nalu payload"))
		}
		u, err := nal.Parse(input[pos : pos+length])
		if err != nil {
			return nil, err
		}
		units = append(units, u)
		pos += length
	}
	return units, nil
}

var (
	delimiter1             = []byte{0x00, 0x00, 0x01}
	delimiter2             = []byte{0x00, 0x00, 0x00, 0x01}
	accessUnitDelimiter    = []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0xF0}
)

// WriteAnnexB converts a frame's NAL units into AnnexB: an access unit
// delimiter is inserted once per call, and SPS/PPS from the stored DCR are
// inserted ahead of the first IDR slice. SPS/PPS/AUD units already present
// in the input are dropped since they're re-synthesized from the DCR.
func (c *Coder) WriteAnnexB(units []nal.Unit) ([]byte, error) {
	if c.state != Ready {
		return nil, rtmperrors.NewCodecError("avc.write_annexb", fmt.Errorf("coder not initialized"))
	}
	var out []byte
	audAppended := false
	spsPPSAppended := false

	for _, u := range units {
		switch u.Kind {
		case nal.SequenceParameterSet, nal.PictureParameterSet, nal.AccessUnitDelimiter:
			continue
		case nal.NonIdrPicture, nal.SupplementaryEnhancementInformation:
			if !audAppended {
				out = append(out, accessUnitDelimiter...)
				audAppended = true
			}
		case nal.IdrPicture:
			if !audAppended {
				out = append(out, accessUnitDelimiter...)
				audAppended = true
			}
			if !spsPPSAppended {
				if len(c.dcr.SPS) > 0 {
					out = append(out, delimiter2...)
					out = append(out, c.dcr.SPS[0].Bytes()...)
				}
				if len(c.dcr.PPS) > 0 {
					out = append(out, delimiter2...)
					out = append(out, c.dcr.PPS[0].Bytes()...)
				}
				spsPPSAppended = true
			}
		}

		out = append(out, delimiter1...)
		out = append(out, u.Bytes()...)
	}

	return out, nil
}
