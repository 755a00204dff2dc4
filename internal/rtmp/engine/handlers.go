package engine

import (
	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
	"github.com/alxayo/go-rtmp/internal/rtmp/amf"
	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
	"github.com/alxayo/go-rtmp/internal/rtmp/control"
	"github.com/alxayo/go-rtmp/internal/rtmp/rpc"
)

// commandCSID is the chunk stream used for command/response traffic, matching
// the conventional assignment observed across RTMP server implementations.
const commandCSID = 3

// onStatusCSID is the chunk stream used for onStatus notifications following
// publish/play, mirroring the teacher's publish/play handler convention.
const onStatusCSID = 5

// These handlers are registered on the Dispatcher at construction time. They
// perform no I/O themselves: command replies are queued onto the outbound
// chunk writer immediately (so Output() picks them up on the next drain), and
// the session-facing occurrence is appended to pendingEvents for Feed to
// return to the caller.

func (p *Protocol) onConnect(cc *rpc.ConnectCommand, msg *chunk.Message) error {
	p.app = cc.App

	resp, err := rpc.BuildConnectResponse(cc.TransactionID, "Connection succeeded.")
	if err != nil {
		return err
	}
	resp.CSID = commandCSID
	if err := p.writer.WriteMessage(resp); err != nil {
		return rtmperrors.NewProtocolError("engine.connect_response", err)
	}

	p.pendingEvents = append(p.pendingEvents, Event{Kind: EventConnect, Connect: cc})
	return nil
}

func (p *Protocol) onCreateStream(cs *rpc.CreateStreamCommand, msg *chunk.Message) error {
	streamID := p.nextStream
	p.nextStream++

	payload, err := amf.EncodeAll("_result", cs.TransactionID, nil, float64(streamID))
	if err != nil {
		return rtmperrors.NewProtocolError("engine.create_stream_response.encode", err)
	}
	resp := &chunk.Message{
		CSID:            commandCSID,
		TypeID:          msg.TypeID,
		MessageStreamID: 0,
		MessageLength:   uint32(len(payload)),
		Payload:         payload,
	}
	if err := p.writer.WriteMessage(resp); err != nil {
		return rtmperrors.NewProtocolError("engine.create_stream_response", err)
	}

	streamBegin := control.EncodeUserControlStreamBegin(streamID)
	if err := p.writer.WriteMessage(streamBegin); err != nil {
		return rtmperrors.NewProtocolError("engine.stream_begin", err)
	}

	p.pendingEvents = append(p.pendingEvents, Event{Kind: EventCreateStream, CreateStream: cs, StreamID: streamID})
	return nil
}

func (p *Protocol) onPublish(pc *rpc.PublishCommand, msg *chunk.Message) error {
	resp, err := buildOnStatus(msg.MessageStreamID, pc.StreamKey, "NetStream.Publish.Start",
		"Publishing "+pc.StreamKey+".")
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessage(resp); err != nil {
		return rtmperrors.NewProtocolError("engine.publish_response", err)
	}

	p.pendingEvents = append(p.pendingEvents, Event{Kind: EventPublish, Publish: pc, StreamID: msg.MessageStreamID})
	return nil
}

func (p *Protocol) onPlay(pl *rpc.PlayCommand, msg *chunk.Message) error {
	resp, err := buildOnStatus(msg.MessageStreamID, pl.StreamKey, "NetStream.Play.Start",
		"Started playing "+pl.StreamKey+".")
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessage(resp); err != nil {
		return rtmperrors.NewProtocolError("engine.play_response", err)
	}

	p.pendingEvents = append(p.pendingEvents, Event{Kind: EventPlay, Play: pl, StreamID: msg.MessageStreamID})
	return nil
}

func (p *Protocol) onDeleteStream(values []interface{}, msg *chunk.Message) error {
	var streamID uint32
	if len(values) >= 3 {
		if v, ok := values[2].(float64); ok {
			streamID = uint32(v)
		}
	}
	p.pendingEvents = append(p.pendingEvents, Event{Kind: EventDeleteStream, StreamID: streamID})
	return nil
}

func buildOnStatus(streamID uint32, streamKey, code, description string) (*chunk.Message, error) {
	info := map[string]interface{}{
		"level":       "status",
		"code":        code,
		"description": description,
		"details":     streamKey,
	}
	payload, err := amf.EncodeAll("onStatus", float64(0), nil, info)
	if err != nil {
		return nil, rtmperrors.NewProtocolError("engine.on_status.encode", err)
	}
	return &chunk.Message{
		CSID:            onStatusCSID,
		TypeID:          commandMessageTypeID,
		MessageStreamID: streamID,
		MessageLength:   uint32(len(payload)),
		Payload:         payload,
	}, nil
}
