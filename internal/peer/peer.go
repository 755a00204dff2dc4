// Package peer runs one goroutine-pair per accepted connection (RTMP over
// TCP or SRT, both exposed as net.Conn): a read loop drives the protocol
// engine from inbound bytes and reacts to the Events it produces, and —
// while the peer is in the Playing role — a forward loop relays packets
// broadcast by the session it joined back out over the same connection.
//
// This generalizes the teacher's internal/rtmp/conn.Connection, which wires
// a net.Conn directly to chunk.Reader/Writer and a local stream registry.
// Here the parsing/dispatch logic lives in engine.Protocol and the registry
// lives in session.Manager; Peer's job is solely to own the net.Conn and
// bridge the two.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alxayo/go-rtmp/internal/bufpool"
	"github.com/alxayo/go-rtmp/internal/hooks"
	"github.com/alxayo/go-rtmp/internal/logger"
	"github.com/alxayo/go-rtmp/internal/packet"
	"github.com/alxayo/go-rtmp/internal/rtmp/engine"
	"github.com/alxayo/go-rtmp/internal/session"
)

// Role is the peer's position in the session it has joined, if any.
type Role int32

const (
	Initializing Role = iota
	Publishing
	Playing
	Disconnecting
)

func (r Role) String() string {
	switch r {
	case Initializing:
		return "initializing"
	case Publishing:
		return "publishing"
	case Playing:
		return "playing"
	case Disconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

const readBufferSize = 4096

var connCounter uint64

func nextID() string {
	return fmt.Sprintf("p%06d", atomic.AddUint64(&connCounter, 1))
}

// Peer owns one accepted connection end to end: handshake, command dispatch,
// media fan-in while publishing, and media fan-out while playing.
type Peer struct {
	id   string
	conn net.Conn
	log  *slog.Logger

	manager *session.Manager
	hooks   *hooks.Manager // nil-safe: TriggerEvent no-ops on a nil Manager

	mu    sync.Mutex // guards proto and writes to conn
	proto *engine.Protocol

	role      atomic.Int32
	app       string
	streamKey string
	streamID  uint32

	handle *session.Handle       // set while Publishing
	sub    *session.Subscription // set while Playing

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wraps an accepted connection. conn may be a TCP net.Conn or any other
// net.Conn-compatible transport (e.g. a gosrt.Conn); the protocol engine and
// session plumbing are transport-agnostic.
func New(conn net.Conn, manager *session.Manager) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	id := nextID()
	return &Peer{
		id:      id,
		conn:    conn,
		log:     logger.WithConn(logger.Logger(), id, conn.RemoteAddr().String()),
		manager: manager,
		proto:   engine.NewProtocol(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Stop forcibly closes the underlying connection, unblocking Serve's read
// loop so it can run teardown. Safe to call from any goroutine.
func (p *Peer) Stop() {
	p.cancel()
	_ = p.conn.Close()
}

// SetHooks attaches the operational hook manager this peer reports
// lifecycle events to. Call before Serve; a peer with no hooks attached
// skips every fireEvent call for free (TriggerEvent is nil-safe).
func (p *Peer) SetHooks(hm *hooks.Manager) {
	p.hooks = hm
}

func (p *Peer) fireEvent(typ hooks.EventType, data map[string]string) {
	ev := hooks.NewEvent(typ).WithConnID(p.id)
	if p.app != "" {
		ev.WithStreamKey(p.app + "/" + p.streamKey)
	}
	for k, v := range data {
		ev.WithData(k, v)
	}
	// A hook may still need to run after teardown cancels p.ctx (e.g. the
	// connection_close event itself), so hooks get an independent context
	// rather than one tied to the peer's own lifetime.
	p.hooks.TriggerEvent(context.Background(), *ev)
}

// Serve runs the peer's read loop until the connection closes or a
// protocol error occurs, then tears down any session membership. It blocks
// until the peer is fully done and is meant to be called from its own
// goroutine by the listener's accept loop.
func (p *Peer) Serve() {
	defer p.teardown()
	p.role.Store(int32(Initializing))
	p.fireEvent(hooks.EventConnectionAccept, map[string]string{"remote_addr": p.conn.RemoteAddr().String()})

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		buf := bufpool.Get(readBufferSize)
		n, err := p.conn.Read(buf)
		if n > 0 {
			if ferr := p.feed(buf[:n]); ferr != nil {
				bufpool.Put(buf)
				p.log.Warn("protocol error, closing connection", "error", ferr)
				return
			}
		}
		bufpool.Put(buf)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				p.log.Debug("connection closed by peer")
			} else {
				p.log.Warn("read error", "error", err)
			}
			return
		}
	}
}

// feed pushes newly read bytes through the protocol engine, flushes any
// bytes the engine queued for the peer, and dispatches the resulting
// events against the session manager.
func (p *Peer) feed(data []byte) error {
	p.mu.Lock()
	events, err := p.proto.Feed(data)
	out := p.proto.Output()
	p.mu.Unlock()

	if len(out) > 0 {
		if _, werr := p.conn.Write(out); werr != nil {
			return werr
		}
	}
	if err != nil {
		return err
	}

	for _, ev := range events {
		if derr := p.dispatch(ev); derr != nil {
			return derr
		}
	}
	return nil
}

func (p *Peer) dispatch(ev engine.Event) error {
	switch ev.Kind {
	case engine.EventHandshakeComplete:
		p.fireEvent(hooks.EventHandshakeComplete, nil)

	case engine.EventConnect:
		p.app = ev.Connect.App
		p.log.Info("connect", "app", p.app)

	case engine.EventCreateStream:
		p.streamID = ev.StreamID
		p.fireEvent(hooks.EventStreamCreate, nil)

	case engine.EventPublish:
		return p.startPublishing(ev)

	case engine.EventPlay:
		return p.startPlaying(ev)

	case engine.EventDeleteStream, engine.EventUnknownCommand:
		// No session-state change: deleteStream on a publisher is handled by
		// the peer's own teardown when the connection closes, matching the
		// teacher's treatment of deleteStream as advisory.
		if ev.Kind == engine.EventDeleteStream {
			p.fireEvent(hooks.EventStreamDelete, nil)
		}

	case engine.EventMetadata, engine.EventVideo, engine.EventAudio:
		if ev.Packet.IsSequenceHeader() {
			p.fireEvent(hooks.EventCodecDetected, map[string]string{"kind": ev.Packet.Kind().String()})
		}
		if Role(p.role.Load()) == Publishing && p.handle != nil {
			if perr := p.handle.Publish(ev.Packet); perr != nil {
				p.log.Warn("dropping packet, session mailbox full", "error", perr)
			}
		}
	}
	return nil
}

// streamKeyParts strips any "?query" suffix from publishingName and returns
// the remaining key component used for authentication.
func streamKeyParts(publishingName string) string {
	if idx := strings.IndexByte(publishingName, '?'); idx >= 0 {
		return publishingName[:idx]
	}
	return publishingName
}

func (p *Peer) startPublishing(ev engine.Event) error {
	key := streamKeyParts(ev.Publish.PublishingName)
	handle, err := p.manager.CreateSession(p.app, key)
	if err != nil {
		p.log.Warn("publish rejected", "app", p.app, "error", err)
		return nil
	}
	p.handle = handle
	p.streamKey = ev.Publish.StreamKey
	p.role.Store(int32(Publishing))
	p.log.Info("publishing", "stream_key", p.streamKey)
	p.fireEvent(hooks.EventPublishStart, nil)
	return nil
}

func (p *Peer) startPlaying(ev engine.Event) error {
	handle, sub, ok := p.manager.JoinSession(p.app)
	if !ok {
		p.log.Warn("play failed, no such stream", "app", p.app)
		return nil
	}
	p.sub = sub
	p.role.Store(int32(Playing))
	p.log.Info("playing", "app", p.app)
	p.fireEvent(hooks.EventPlayStart, nil)

	p.sendInit(handle.GetInitData())

	p.wg.Add(1)
	go p.forwardLoop()
	return nil
}

// sendInit primes a newly joined subscriber with the session's cached
// metadata and sequence headers so decoding can start without waiting for
// the next keyframe/metadata event on the live stream.
func (p *Peer) sendInit(init session.InitData) {
	send := func(pkt *packet.Packet) {
		if pkt == nil {
			return
		}
		p.mu.Lock()
		err := p.proto.SendMedia(p.streamID, *pkt)
		out := p.proto.Output()
		p.mu.Unlock()
		if len(out) > 0 {
			_, _ = p.conn.Write(out)
		}
		if err != nil {
			p.log.Warn("failed to send init packet", "error", err)
		}
	}
	send(init.Metadata)
	send(init.VideoHeader)
	send(init.AudioHeader)
}

// forwardLoop relays broadcast packets from the joined session back to this
// connection while the peer is in the Playing role. It exits when the
// subscription closes (the session ended) or the peer's context is
// cancelled (the connection is going away).
func (p *Peer) forwardLoop() {
	defer p.wg.Done()
	for {
		select {
		case pkt, ok := <-p.sub.Packets:
			if !ok {
				p.log.Info("session closed, ending playback")
				_ = p.conn.Close()
				return
			}
			p.mu.Lock()
			err := p.proto.SendMedia(p.streamID, pkt)
			out := p.proto.Output()
			p.mu.Unlock()
			if len(out) > 0 {
				if _, werr := p.conn.Write(out); werr != nil {
					return
				}
			}
			if err != nil {
				p.log.Warn("failed to forward packet", "error", err)
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Peer) teardown() {
	p.cancel()
	role := Role(p.role.Load())
	p.role.Store(int32(Disconnecting))

	if role == Publishing && p.handle != nil {
		p.handle.Disconnect()
		p.manager.ReleaseSession(p.app)
		p.fireEvent(hooks.EventPublishStop, nil)
	}
	if p.sub != nil {
		p.sub.Close()
		p.fireEvent(hooks.EventPlayStop, nil)
	}
	_ = p.conn.Close()
	p.wg.Wait()
	p.fireEvent(hooks.EventConnectionClose, nil)
	p.log.Info("connection closed", "final_role", role)
}
