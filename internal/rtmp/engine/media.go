package engine

import (
	"fmt"

	rtmperrors "github.com/alxayo/go-rtmp/internal/errors"
	"github.com/alxayo/go-rtmp/internal/packet"
	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
)

// Chunk streams conventionally used for server-to-client media delivery,
// kept distinct from the command (3) and onStatus (5) streams so a
// subscriber's media never competes with its own command replies for FMT
// compression state.
const (
	videoDeliveryCSID = 6
	audioDeliveryCSID = 7
	metaDeliveryCSID  = 4
)

// SendMedia queues pkt for delivery to this connection's peer on streamID,
// translating its Kind back into the RTMP message type/chunk stream the
// teacher's writer expects. Callers (the session fan-out) must only invoke
// this after the handshake has completed; calling it earlier is a
// programming error since no chunk.Writer yet exists.
func (p *Protocol) SendMedia(streamID uint32, pkt packet.Packet) error {
	if p.writer == nil {
		return rtmperrors.NewProtocolError("engine.send_media", fmt.Errorf("writer not ready (handshake incomplete)"))
	}

	var typeID uint8
	var csid uint32
	switch pkt.Kind() {
	case packet.KindVideo:
		typeID, csid = videoMessageTypeID, videoDeliveryCSID
	case packet.KindAudio:
		typeID, csid = audioMessageTypeID, audioDeliveryCSID
	case packet.KindMeta:
		typeID, csid = dataMessageTypeID, metaDeliveryCSID
	default:
		return rtmperrors.NewProtocolError("engine.send_media", fmt.Errorf("unsupported packet kind %s for RTMP delivery", pkt.Kind()))
	}

	msg := &chunk.Message{
		CSID:            csid,
		Timestamp:       pkt.Timestamp(),
		TypeID:          typeID,
		MessageStreamID: streamID,
		Payload:         pkt.Payload(),
	}
	if err := p.writer.WriteMessage(msg); err != nil {
		return rtmperrors.NewProtocolError("engine.send_media", err)
	}
	return nil
}
