package engine

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/alxayo/go-rtmp/internal/rtmp/amf"
	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
	"github.com/alxayo/go-rtmp/internal/rtmp/handshake"
)

func clientC0C1(t *testing.T) []byte {
	t.Helper()
	out := make([]byte, 1+handshake.PacketSize)
	out[0] = handshake.Version
	if _, err := rand.Read(out[1:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	return out
}

func runHandshake(t *testing.T, p *Protocol) {
	t.Helper()
	c0c1 := clientC0C1(t)

	// Feed the handshake opener split across two calls to exercise partial
	// buffering.
	events, err := p.Feed(c0c1[:10])
	if err != nil {
		t.Fatalf("feed partial c0c1: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events from a partial handshake feed, got %d", len(events))
	}
	events, err = p.Feed(c0c1[10:])
	if err != nil {
		t.Fatalf("feed rest of c0c1: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events yet (awaiting C2), got %d", len(events))
	}

	out := p.Output()
	if len(out) != 1+2*handshake.PacketSize {
		t.Fatalf("expected S0+S1+S2 output of %d bytes, got %d", 1+2*handshake.PacketSize, len(out))
	}
	if out[0] != handshake.Version {
		t.Fatalf("expected S0 version byte 0x03, got 0x%02x", out[0])
	}

	c2 := make([]byte, handshake.PacketSize)
	if _, err := rand.Read(c2); err != nil {
		t.Fatalf("rand c2: %v", err)
	}
	events, err = p.Feed(c2)
	if err != nil {
		t.Fatalf("feed c2: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventHandshakeComplete {
		t.Fatalf("expected single handshake_complete event, got %v", events)
	}

	burst := p.Output()
	if len(burst) == 0 {
		t.Fatalf("expected control burst bytes after handshake completion")
	}
}

// encodeClientMessage builds the raw chunk bytes a client would send for a
// single command message, using the teacher's own Writer against a fresh
// CSID/stream state so the bytes are representative of real wire traffic.
func encodeClientMessage(t *testing.T, csid uint32, typeID uint8, msid uint32, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := chunk.NewWriter(&buf, 128)
	msg := &chunk.Message{
		CSID:            csid,
		TypeID:          typeID,
		MessageStreamID: msid,
		Payload:         payload,
	}
	if err := w.WriteMessage(msg); err != nil {
		t.Fatalf("encode client message: %v", err)
	}
	return buf.Bytes()
}

func TestFeedHandshakeAndCommandSequence(t *testing.T) {
	p := NewProtocol()
	runHandshake(t, p)

	connectPayload, err := amf.EncodeAll("connect", float64(1), map[string]interface{}{
		"app":            "live",
		"tcUrl":          "rtmp://localhost/live",
		"objectEncoding": float64(0),
	})
	if err != nil {
		t.Fatalf("encode connect: %v", err)
	}
	events, err := p.Feed(encodeClientMessage(t, 3, 20, 0, connectPayload))
	if err != nil {
		t.Fatalf("feed connect: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventConnect {
		t.Fatalf("expected single connect event, got %v", events)
	}
	if events[0].Connect.App != "live" {
		t.Fatalf("expected app %q, got %q", "live", events[0].Connect.App)
	}
	if len(p.Output()) == 0 {
		t.Fatalf("expected a connect _result to be queued for output")
	}

	createStreamPayload, err := amf.EncodeAll("createStream", float64(2), nil)
	if err != nil {
		t.Fatalf("encode createStream: %v", err)
	}
	events, err = p.Feed(encodeClientMessage(t, 3, 20, 0, createStreamPayload))
	if err != nil {
		t.Fatalf("feed createStream: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventCreateStream {
		t.Fatalf("expected single create_stream event, got %v", events)
	}
	streamID := events[0].StreamID
	if streamID == 0 {
		t.Fatalf("expected a non-zero allocated stream id")
	}
	if len(p.Output()) == 0 {
		t.Fatalf("expected a createStream _result plus StreamBegin to be queued for output")
	}

	publishPayload, err := amf.EncodeAll("publish", float64(0), nil, "mystream", "live")
	if err != nil {
		t.Fatalf("encode publish: %v", err)
	}
	events, err = p.Feed(encodeClientMessage(t, 3, 20, streamID, publishPayload))
	if err != nil {
		t.Fatalf("feed publish: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventPublish {
		t.Fatalf("expected single publish event, got %v", events)
	}
	if events[0].Publish.StreamKey != "live/mystream" {
		t.Fatalf("expected stream key %q, got %q", "live/mystream", events[0].Publish.StreamKey)
	}
	if len(p.Output()) == 0 {
		t.Fatalf("expected an onStatus NetStream.Publish.Start to be queued for output")
	}

	videoPayload := []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0xAA, 0xBB}
	events, err = p.Feed(encodeClientMessage(t, 6, videoMessageTypeID, streamID, videoPayload))
	if err != nil {
		t.Fatalf("feed video: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventVideo {
		t.Fatalf("expected single video event, got %v", events)
	}
	if !bytes.Equal(events[0].Packet.Payload(), videoPayload) {
		t.Fatalf("expected video payload to round-trip unchanged")
	}

	audioPayload := []byte{0xAF, 0x01, 0xCC, 0xDD}
	events, err = p.Feed(encodeClientMessage(t, 7, audioMessageTypeID, streamID, audioPayload))
	if err != nil {
		t.Fatalf("feed audio: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventAudio {
		t.Fatalf("expected single audio event, got %v", events)
	}
}

func TestFeedPartialMessageWaitsForMoreData(t *testing.T) {
	p := NewProtocol()
	runHandshake(t, p)

	connectPayload, err := amf.EncodeAll("connect", float64(1), map[string]interface{}{
		"app": "live",
	})
	if err != nil {
		t.Fatalf("encode connect: %v", err)
	}
	full := encodeClientMessage(t, 3, 20, 0, connectPayload)

	events, err := p.Feed(full[:len(full)-1])
	if err != nil {
		t.Fatalf("feed partial message: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events from an incomplete message, got %d", len(events))
	}

	events, err = p.Feed(full[len(full)-1:])
	if err != nil {
		t.Fatalf("feed remaining byte: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventConnect {
		t.Fatalf("expected the connect event once the message completed, got %v", events)
	}
}
