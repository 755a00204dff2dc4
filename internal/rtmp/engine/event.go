package engine

import (
	"github.com/alxayo/go-rtmp/internal/packet"
	"github.com/alxayo/go-rtmp/internal/rtmp/rpc"
)

// EventKind identifies what a Protocol.Feed call observed.
type EventKind int

const (
	EventHandshakeComplete EventKind = iota
	EventConnect
	EventCreateStream
	EventPublish
	EventPlay
	EventDeleteStream
	EventMetadata
	EventVideo
	EventAudio
	EventUnknownCommand
)

func (k EventKind) String() string {
	switch k {
	case EventHandshakeComplete:
		return "handshake_complete"
	case EventConnect:
		return "connect"
	case EventCreateStream:
		return "create_stream"
	case EventPublish:
		return "publish"
	case EventPlay:
		return "play"
	case EventDeleteStream:
		return "delete_stream"
	case EventMetadata:
		return "metadata"
	case EventVideo:
		return "video"
	case EventAudio:
		return "audio"
	case EventUnknownCommand:
		return "unknown_command"
	default:
		return "unknown"
	}
}

// Event is one protocol-level occurrence surfaced by Feed. Exactly one of
// the typed fields is populated, selected by Kind.
type Event struct {
	Kind EventKind

	Connect      *rpc.ConnectCommand
	CreateStream *rpc.CreateStreamCommand
	Publish      *rpc.PublishCommand
	Play         *rpc.PlayCommand
	StreamID     uint32 // allocated ID for CreateStream; message stream ID for Publish/Play; target for DeleteStream
	CommandName  string // populated for EventUnknownCommand

	Packet packet.Packet // populated for Metadata/Video/Audio
}
