// Package engine is the pure, byte-in/event-out RTMP protocol state machine.
// It owns no socket: Feed([]byte) consumes inbound bytes and returns the
// protocol-level Events they produced, and Output() drains bytes that must be
// written back to the peer (handshake responses, control messages, command
// replies). This lets the same engine be driven by a network connection, a
// test harness, or a relay client with no branching in the parsing/dispatch
// logic itself.
//
// The machinery here is the teacher's: handshake.Handshake, chunk.Reader/
// Writer, amf, and rpc.Dispatcher are reused almost verbatim. What's new is
// the buffering strategy (feedBuffer) that lets the teacher's blocking-style
// parsers run against data delivered in arbitrary chunks, and the Event
// translation layer in place of the teacher's direct handler callbacks.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
	"github.com/alxayo/go-rtmp/internal/packet"
	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
	"github.com/alxayo/go-rtmp/internal/rtmp/control"
	"github.com/alxayo/go-rtmp/internal/rtmp/handshake"
	"github.com/alxayo/go-rtmp/internal/rtmp/rpc"
)

const (
	windowAckSizeValue     uint32 = 2_500_000
	peerBandwidthValue     uint32 = 2_500_000
	peerBandwidthLimitType uint8  = 2 // Dynamic
	serverChunkSize        uint32 = 4096

	videoMessageTypeID   uint8 = 9
	audioMessageTypeID   uint8 = 8
	dataMessageTypeID    uint8 = 18
	commandMessageTypeID uint8 = 20
)

type phase int

const (
	phaseHandshake phase = iota
	phaseChunks
)

// Protocol is one connection's RTMP protocol engine. It is not safe for
// concurrent use; the owning peer goroutine drives it serially.
type Protocol struct {
	phase phase

	in  feedBuffer
	out bytes.Buffer

	hs *handshake.Handshake

	reader *chunk.Reader
	writer *chunk.Writer

	dispatcher *rpc.Dispatcher
	app        string
	nextStream uint32

	pendingEvents []Event
}

// NewProtocol returns a Protocol awaiting the client's C0+C1.
func NewProtocol() *Protocol {
	p := &Protocol{hs: handshake.New(), nextStream: 1}
	p.dispatcher = rpc.NewDispatcher(func() string { return p.app })
	p.dispatcher.OnConnect = p.onConnect
	p.dispatcher.OnCreateStream = p.onCreateStream
	p.dispatcher.OnPublish = p.onPublish
	p.dispatcher.OnPlay = p.onPlay
	p.dispatcher.OnDeleteStream = p.onDeleteStream
	return p
}

// Feed consumes newly-arrived bytes and returns every Event they produced.
// It never blocks: when the buffered bytes don't yet contain a full
// handshake step or RTMP message, it returns the events found so far and
// waits for the next Feed call to supply the rest.
func (p *Protocol) Feed(data []byte) ([]Event, error) {
	p.in.append(data)
	var events []Event

	for {
		checkpoint := p.in.checkpoint()

		if p.phase == phaseHandshake {
			ev, progressed, err := p.stepHandshake()
			if err != nil {
				return events, err
			}
			if !progressed {
				p.in.restore(checkpoint)
				p.in.compact()
				return events, nil
			}
			events = append(events, ev...)
			continue
		}

		msg, err := p.reader.ReadMessage()
		if err != nil {
			if needsMoreData(err) {
				p.in.restore(checkpoint)
				p.in.compact()
				return events, nil
			}
			return events, err
		}
		ev, err := p.handleMessage(msg)
		if err != nil {
			return events, err
		}
		events = append(events, ev...)
	}
}

// Output drains bytes queued for the peer (handshake responses, control
// burst, command replies). The caller is responsible for writing them to the
// transport.
func (p *Protocol) Output() []byte {
	if p.out.Len() == 0 {
		return nil
	}
	b := p.out.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	p.out.Reset()
	return out
}

func needsMoreData(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (p *Protocol) stepHandshake() ([]Event, bool, error) {
	switch p.hs.State() {
	case handshake.StateInitial:
		need := 1 + handshake.PacketSize
		if p.in.remaining() < need {
			return nil, false, nil
		}
		start := p.in.off
		c0 := p.in.buf[start]
		c1 := p.in.buf[start+1 : start+need]
		if err := p.hs.AcceptC0C1(c0, c1); err != nil {
			return nil, false, err
		}
		p.in.off += need

		var s1 [handshake.PacketSize]byte
		ts := nowTimestamp()
		s1[0] = byte(ts >> 24)
		s1[1] = byte(ts >> 16)
		s1[2] = byte(ts >> 8)
		s1[3] = byte(ts)
		if err := randFill(s1[8:]); err != nil {
			return nil, false, rtmperrors.NewHandshakeError("engine.make_s1", err)
		}
		if err := p.hs.SetS1(s1[:]); err != nil {
			return nil, false, err
		}
		s2 := p.hs.C1()

		out := make([]byte, 1+2*handshake.PacketSize)
		out[0] = handshake.Version
		copy(out[1:1+handshake.PacketSize], s1[:])
		copy(out[1+handshake.PacketSize:], s2)
		p.out.Write(out)
		return nil, true, nil

	case handshake.StateSentS0S1S2:
		if p.in.remaining() < handshake.PacketSize {
			return nil, false, nil
		}
		start := p.in.off
		c2 := p.in.buf[start : start+handshake.PacketSize]
		if err := p.hs.AcceptC2(c2); err != nil {
			return nil, false, err
		}
		p.in.off += handshake.PacketSize
		if err := p.hs.Complete(); err != nil {
			return nil, false, err
		}

		p.phase = phaseChunks
		p.reader = chunk.NewReader(&p.in, 128)
		p.writer = chunk.NewWriter(&p.out, 128)
		if err := p.sendControlBurst(); err != nil {
			return nil, false, err
		}
		return []Event{{Kind: EventHandshakeComplete}}, true, nil

	default:
		return nil, false, fmt.Errorf("engine: unexpected handshake state %s", p.hs.State())
	}
}

// sendControlBurst emits the standard post-handshake sequence: Window
// Acknowledgement Size, Set Peer Bandwidth, Set Chunk Size. Order matters to
// every RTMP client implementation observed in the wild.
func (p *Protocol) sendControlBurst() error {
	msgs := []*chunk.Message{
		control.EncodeWindowAcknowledgementSize(windowAckSizeValue),
		control.EncodeSetPeerBandwidth(peerBandwidthValue, peerBandwidthLimitType),
		control.EncodeSetChunkSize(serverChunkSize),
	}
	for _, m := range msgs {
		if err := p.writer.WriteMessage(m); err != nil {
			return rtmperrors.NewProtocolError("engine.control_burst", err)
		}
	}
	p.writer.SetChunkSize(serverChunkSize)
	return nil
}

func (p *Protocol) handleMessage(msg *chunk.Message) ([]Event, error) {
	switch msg.TypeID {
	case commandMessageTypeID:
		return p.dispatchCommand(msg)
	case dataMessageTypeID:
		return []Event{{Kind: EventMetadata, Packet: packet.NewMeta(msg.Payload)}}, nil
	case videoMessageTypeID:
		return []Event{{Kind: EventVideo, Packet: packet.NewVideo(msg.Timestamp, msg.Payload)}}, nil
	case audioMessageTypeID:
		return []Event{{Kind: EventAudio, Packet: packet.NewAudio(msg.Timestamp, msg.Payload)}}, nil
	default:
		// Protocol control messages (1-6) and anything else uninteresting to
		// the session layer are consumed silently; chunk.Reader already
		// applies Set Chunk Size internally via maybeHandleControl.
		return nil, nil
	}
}

// dispatchCommand routes through rpc.Dispatcher, whose registered handlers
// (in handlers.go) append to pendingEvents instead of performing I/O
// directly.
func (p *Protocol) dispatchCommand(msg *chunk.Message) ([]Event, error) {
	p.pendingEvents = nil
	if err := p.dispatcher.Dispatch(msg); err != nil {
		return nil, err
	}
	return p.pendingEvents, nil
}
