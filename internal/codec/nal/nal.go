// Package nal implements H.264 Network Abstraction Layer unit parsing:
// the single-byte header (forbidden_zero_bit/nal_ref_idc/nal_unit_type) and
// the raw byte sequence payload that follows it.
package nal

import (
	"fmt"

	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
)

// UnitType is the nal_unit_type field of a NAL unit header.
type UnitType uint8

const (
	NonIdrPicture                        UnitType = 1
	DataPartitionA                       UnitType = 2
	DataPartitionB                       UnitType = 3
	DataPartitionC                       UnitType = 4
	IdrPicture                           UnitType = 5
	SupplementaryEnhancementInformation  UnitType = 6
	SequenceParameterSet                 UnitType = 7
	PictureParameterSet                  UnitType = 8
	AccessUnitDelimiter                  UnitType = 9
	SequenceEnd                          UnitType = 10
	StreamEnd                            UnitType = 11
	FillerData                           UnitType = 12
	SequenceParameterSetExtension        UnitType = 13
	Prefix                               UnitType = 14
	SequenceParameterSubset              UnitType = 15
	NotAuxiliaryCoded                    UnitType = 19
	CodedSliceExtension                  UnitType = 20
)

func (t UnitType) String() string {
	switch t {
	case NonIdrPicture:
		return "non_idr_picture"
	case DataPartitionA:
		return "data_partition_a"
	case DataPartitionB:
		return "data_partition_b"
	case DataPartitionC:
		return "data_partition_c"
	case IdrPicture:
		return "idr_picture"
	case SupplementaryEnhancementInformation:
		return "sei"
	case SequenceParameterSet:
		return "sps"
	case PictureParameterSet:
		return "pps"
	case AccessUnitDelimiter:
		return "aud"
	case SequenceEnd:
		return "sequence_end"
	case StreamEnd:
		return "stream_end"
	case FillerData:
		return "filler_data"
	case SequenceParameterSetExtension:
		return "sps_ext"
	case Prefix:
		return "prefix"
	case SequenceParameterSubset:
		return "sps_subset"
	case NotAuxiliaryCoded:
		return "not_aux_coded"
	case CodedSliceExtension:
		return "coded_slice_ext"
	default:
		return fmt.Sprintf("unit_type(%d)", uint8(t))
	}
}

func isKnownType(v uint8) bool {
	switch UnitType(v) {
	case NonIdrPicture, DataPartitionA, DataPartitionB, DataPartitionC, IdrPicture,
		SupplementaryEnhancementInformation, SequenceParameterSet, PictureParameterSet,
		AccessUnitDelimiter, SequenceEnd, StreamEnd, FillerData, SequenceParameterSetExtension,
		Prefix, SequenceParameterSubset, NotAuxiliaryCoded, CodedSliceExtension:
		return true
	default:
		return false
	}
}

// Unit is one NAL unit: header fields plus its raw byte sequence payload.
// The payload excludes the one-byte header and is not emulation-prevention
// unescaped; callers that need RBSP semantics must strip 0x03 bytes
// themselves.
type Unit struct {
	RefIDC uint8
	Kind   UnitType
	Data   []byte
}

// Parse decodes a single NAL unit (header + payload) from b.
func Parse(b []byte) (Unit, error) {
	if len(b) < 1 {
		return Unit{}, rtmperrors.NewCodecError("nal.parse", fmt.Errorf("empty buffer"))
	}
	header := b[0]
	if header>>7 != 0 {
		return Unit{}, rtmperrors.NewCodecError("nal.parse", fmt.Errorf("forbidden_zero_bit set"))
	}
	refIDC := (header >> 5) & 0x03
	typeVal := header & 0x1F
	if !isKnownType(typeVal) {
		return Unit{}, rtmperrors.NewCodecError("nal.parse", fmt.Errorf("unsupported nal unit type %d", typeVal))
	}
	data := append([]byte(nil), b[1:]...)
	return Unit{RefIDC: refIDC, Kind: UnitType(typeVal), Data: data}, nil
}

// Bytes reassembles the unit into its wire form: one header byte followed by
// the raw payload.
func (u Unit) Bytes() []byte {
	out := make([]byte, 1+len(u.Data))
	out[0] = (u.RefIDC << 5) | byte(u.Kind)
	copy(out[1:], u.Data)
	return out
}

// IsSlice reports whether the unit carries picture data (IDR or non-IDR).
func (u Unit) IsSlice() bool {
	return u.Kind == IdrPicture || u.Kind == NonIdrPicture
}
