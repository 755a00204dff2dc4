package packet

import "testing"

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindMeta:  "meta",
		KindVideo: "video",
		KindAudio: "audio",
		KindBytes: "bytes",
		Kind(99):  "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestMetaHasNoTimestampRequirement(t *testing.T) {
	p := NewMeta([]byte("onMetaData"))
	if p.HasTimestamp() {
		t.Fatalf("meta packet should not carry a timestamp")
	}
	if p.Kind() != KindMeta {
		t.Fatalf("expected meta kind")
	}
}

func TestVideoAudioCarryTimestamp(t *testing.T) {
	v := NewVideo(1234, []byte{0x17, 0x01})
	if !v.HasTimestamp() || v.Timestamp() != 1234 {
		t.Fatalf("video packet should carry timestamp 1234, got hasTime=%v ts=%d", v.HasTimestamp(), v.Timestamp())
	}
	a := NewAudio(5678, []byte{0xAF, 0x01})
	if !a.HasTimestamp() || a.Timestamp() != 5678 {
		t.Fatalf("audio packet should carry timestamp 5678")
	}
}

func TestIsSequenceHeader(t *testing.T) {
	seq := NewVideo(0, []byte{0x17, 0x00, 0x00, 0x00, 0x00})
	if !seq.IsSequenceHeader() {
		t.Fatalf("expected sequence header true")
	}
	nalu := NewVideo(0, []byte{0x27, 0x01, 0x00, 0x00, 0x00})
	if nalu.IsSequenceHeader() {
		t.Fatalf("expected sequence header false for NALU packet type")
	}
	meta := NewMeta([]byte("x"))
	if meta.IsSequenceHeader() {
		t.Fatalf("meta packets are never sequence headers")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := NewVideo(42, []byte{0x01, 0x02, 0x03, 0x04})
	enc := orig.Encode()
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.Kind() != orig.Kind() || got.Timestamp() != orig.Timestamp() || !got.HasTimestamp() {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, orig)
	}
	if string(got.Payload()) != string(orig.Payload()) {
		t.Fatalf("payload mismatch after round trip")
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	if _, err := Decode([]byte{0x00, 0x01}); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	buf := make([]byte, 6)
	buf[0] = 0xFF
	if _, err := Decode(buf); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
