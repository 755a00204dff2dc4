package mpegts

import (
	"bytes"
	"testing"
)

func TestPushVideoWritesPackets(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, true, true)
	if err := m.WriteTables(); err != nil {
		t.Fatalf("unexpected error writing tables: %v", err)
	}
	if err := m.PushVideo(1000, 990, true, []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0xAA}); err != nil {
		t.Fatalf("unexpected error pushing video: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected bytes written to underlying writer")
	}
	if buf.Len()%188 != 0 {
		t.Fatalf("expected output length to be a multiple of the 188-byte TS packet size, got %d", buf.Len())
	}
}

func TestPushAudioWritesPackets(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, false, true)
	if err := m.PushAudio(1000, []byte{0xFF, 0xF1, 0x00, 0x00, 0x00, 0x00, 0x00, 0xAA}); err != nil {
		t.Fatalf("unexpected error pushing audio: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected bytes written to underlying writer")
	}
}

func TestPushVideoWithoutVideoStreamErrors(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, false, true)
	if err := m.PushVideo(0, 0, true, []byte{0x01}); err == nil {
		t.Fatalf("expected error pushing video on audio-only muxer")
	}
}

func TestPushAudioWithoutAudioStreamErrors(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf, true, false)
	if err := m.PushAudio(0, []byte{0x01}); err == nil {
		t.Fatalf("expected error pushing audio on video-only muxer")
	}
}
