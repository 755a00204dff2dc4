package avc

import (
	"bytes"
	"testing"

	"github.com/alxayo/go-rtmp/internal/codec/nal"
)

func buildDCR(naluSizeMinusOne uint8, sps, pps []byte) []byte {
	buf := []byte{
		1,    // version
		0x42, // profile indication
		0x00, // profile compatibility
		0x1e, // level indication
		0xFC | (naluSizeMinusOne & 0x03),
		0xE0 | 1, // sps count = 1
	}
	buf = append(buf, byte(len(sps)>>8), byte(len(sps)))
	buf = append(buf, sps...)
	buf = append(buf, 1) // pps count = 1
	buf = append(buf, byte(len(pps)>>8), byte(len(pps)))
	buf = append(buf, pps...)
	return buf
}

func TestParseDCR(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1e}
	pps := []byte{0x68, 0xce, 0x38, 0x80}
	dcr, err := ParseDCR(buildDCR(3, sps, pps))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dcr.NALUSize != 4 {
		t.Fatalf("expected nalu size 4, got %d", dcr.NALUSize)
	}
	if len(dcr.SPS) != 1 || dcr.SPS[0].Kind != nal.SequenceParameterSet {
		t.Fatalf("expected 1 sps unit, got %+v", dcr.SPS)
	}
	if len(dcr.PPS) != 1 || dcr.PPS[0].Kind != nal.PictureParameterSet {
		t.Fatalf("expected 1 pps unit, got %+v", dcr.PPS)
	}
}

func TestParseDCRBadVersion(t *testing.T) {
	buf := buildDCR(3, []byte{0x67}, []byte{0x68})
	buf[0] = 2
	if _, err := ParseDCR(buf); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}

func TestParseDCRTooShort(t *testing.T) {
	if _, err := ParseDCR([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestCoderReadAvccBeforeInit(t *testing.T) {
	c := NewCoder()
	if _, err := c.ReadAvcc([]byte{0, 0, 0, 1, 0x65}); err == nil {
		t.Fatalf("expected error reading before sequence header")
	}
}

func TestCoderRoundTrip(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1e}
	pps := []byte{0x68, 0xce, 0x38, 0x80}
	c := NewCoder()
	if err := c.SetSequenceHeader(buildDCR(3, sps, pps)); err != nil {
		t.Fatalf("unexpected error setting sequence header: %v", err)
	}
	if c.State() != Ready {
		t.Fatalf("expected ready state after sequence header")
	}

	idrPayload := []byte{0x65, 0xAA, 0xBB}
	avcc := make([]byte, 4+len(idrPayload))
	avcc[3] = byte(len(idrPayload))
	copy(avcc[4:], idrPayload)

	units, err := c.ReadAvcc(avcc)
	if err != nil {
		t.Fatalf("unexpected error reading avcc: %v", err)
	}
	if len(units) != 1 || units[0].Kind != nal.IdrPicture {
		t.Fatalf("expected single idr unit, got %+v", units)
	}

	out, err := c.WriteAnnexB(units)
	if err != nil {
		t.Fatalf("unexpected error writing annexb: %v", err)
	}
	if !bytes.Contains(out, []byte{0x00, 0x00, 0x00, 0x01, 0x09, 0xF0}) {
		t.Fatalf("expected access unit delimiter in output: %x", out)
	}
	if !bytes.Contains(out, sps) {
		t.Fatalf("expected sps inserted ahead of idr slice: %x", out)
	}
	if !bytes.Contains(out, pps) {
		t.Fatalf("expected pps inserted ahead of idr slice: %x", out)
	}
	if !bytes.Contains(out, idrPayload) {
		t.Fatalf("expected idr payload present: %x", out)
	}
}

func TestCoderWriteAnnexBBeforeInit(t *testing.T) {
	c := NewCoder()
	if _, err := c.WriteAnnexB(nil); err == nil {
		t.Fatalf("expected error writing before sequence header")
	}
}
