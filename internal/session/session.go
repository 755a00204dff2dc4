// Package session implements the actor-style session manager and
// per-application session instance described for the RTMP ingest pipeline:
// one manager goroutine owns the app registry, and one session-instance
// goroutine per live app fans incoming packets out to subscribers (HLS
// writer, relay destinations, playback peers) while caching the most recent
// sequence-header/metadata packets for late joiners.
//
// This generalizes the teacher's direct, mutex-guarded `server.Registry` (a
// synchronous map of stream key to *Stream) into the mailbox/broadcast model;
// the broadcast-with-codec-awareness behavior of the teacher's
// `Stream.BroadcastMessage` survives as Instance.dispatch's per-Kind cache
// update plus fan-out.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/alxayo/go-rtmp/internal/logger"
	"github.com/alxayo/go-rtmp/internal/packet"
)

// errMailboxFull is returned by Handle.Publish when the session instance
// isn't draining its mailbox quickly enough to keep up with the publisher.
var errMailboxFull = errors.New("session: instance mailbox full")

// UserRepository authenticates a publish attempt. internal/userdb implements
// the full repository (UserByName, AddUserWithKey); session only depends on
// the narrow UserHasKey method it needs, to avoid an import cycle with the
// credential store's own dependencies.
type UserRepository interface {
	// UserHasKey reports whether name (the app being published to) has key
	// as its current stream key. False on any lookup error or absence.
	UserHasKey(name, key string) bool
}

// InitData is the set of cached packets a newly joined subscriber needs
// before live packets will make sense to it: the most recent metadata
// packet and each track's sequence header.
type InitData struct {
	Metadata    *packet.Packet
	VideoHeader *packet.Packet
	AudioHeader *packet.Packet
}

// Handle lets a publishing peer push packets into its session and tear the
// session down on disconnect. It does not expose subscription; publishers
// never consume their own fan-out.
type Handle struct {
	App     string
	mailbox chan instanceMsg
}

// Publish enqueues a packet for fan-out and cache update. Never blocks
// indefinitely: the mailbox is buffered, and a full mailbox indicates the
// session instance has stalled, which is itself reported as an error so the
// publisher peer can decide whether to drop the connection.
func (h *Handle) Publish(pkt packet.Packet) error {
	select {
	case h.mailbox <- packetMsg{pkt: pkt}:
		return nil
	default:
		return errMailboxFull
	}
}

// GetInitData requests the session's cached init packets. Blocks until the
// session instance answers or has already exited (in which case it returns
// a zero InitData).
func (h *Handle) GetInitData() InitData {
	reply := make(chan InitData, 1)
	select {
	case h.mailbox <- getInitDataMsg{reply: reply}:
		return <-reply
	default:
		return InitData{}
	}
}

// Disconnect tells the session instance the publisher is gone. The instance
// drains any queued messages then exits.
func (h *Handle) Disconnect() {
	select {
	case h.mailbox <- disconnectMsg{}:
	default:
	}
}

type instanceMsg interface{ isInstanceMsg() }

type packetMsg struct{ pkt packet.Packet }
type getInitDataMsg struct{ reply chan InitData }
type disconnectMsg struct{}

func (packetMsg) isInstanceMsg()      {}
func (getInitDataMsg) isInstanceMsg() {}
func (disconnectMsg) isInstanceMsg()  {}

// Subscription is a live handle to a session's packet fan-out, returned to
// joiners (playback peers, the HLS writer, relay destinations). Packets is
// closed when the session instance exits; a subscriber that falls behind has
// packets silently dropped for it (at-most-once, matching the teacher's
// broadcast-without-backpressure design) rather than stalling the publisher.
type Subscription struct {
	Packets <-chan packet.Packet
	id      uint64
	b       *broadcaster
}

// Close unsubscribes; safe to call more than once.
func (s *Subscription) Close() {
	if s.b != nil {
		s.b.unsubscribe(s.id)
	}
}

const subscriberBufferSize = 64

type broadcaster struct {
	mu        sync.Mutex
	nextID    uint64
	receivers map[uint64]chan packet.Packet
}

func newBroadcaster() *broadcaster {
	return &broadcaster{receivers: make(map[uint64]chan packet.Packet)}
}

func (b *broadcaster) subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	ch := make(chan packet.Packet, subscriberBufferSize)
	b.receivers[id] = ch
	return &Subscription{Packets: ch, id: id, b: b}
}

func (b *broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.receivers[id]; ok {
		delete(b.receivers, id)
		close(ch)
	}
}

// send fans pkt out to every current subscriber without blocking; a
// subscriber whose channel is full simply misses this packet (Lagged).
func (b *broadcaster) send(pkt packet.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.receivers {
		select {
		case ch <- pkt:
		default:
			log := logger.Logger().With("component", "session.broadcast")
			log.Warn("subscriber lagged, dropping packet", "subscriber_id", id, "kind", pkt.Kind())
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.receivers {
		delete(b.receivers, id)
		close(ch)
	}
}

// Instance is one live application's packet fan-out and init-packet cache. It
// owns no network I/O; peers interact with it only through Handle and
// Subscription.
type Instance struct {
	app     string
	mailbox chan instanceMsg
	subs    *broadcaster
	log     *slog.Logger

	cache InitData
}

const instanceMailboxSize = 256

func newInstance(app string) *Instance {
	return &Instance{
		app:     app,
		mailbox: make(chan instanceMsg, instanceMailboxSize),
		subs:    newBroadcaster(),
		log:     logger.Logger().With("component", "session.instance", "app", app),
	}
}

// run is the instance's goroutine body. It exits when it processes a
// disconnectMsg or the mailbox is closed.
func (inst *Instance) run() {
	for msg := range inst.mailbox {
		switch m := msg.(type) {
		case packetMsg:
			inst.updateCache(m.pkt)
			inst.subs.send(m.pkt)
		case getInitDataMsg:
			m.reply <- inst.cache
			close(m.reply)
		case disconnectMsg:
			inst.log.Info("closing session")
			inst.subs.closeAll()
			return
		}
	}
}

// updateCache records the metadata packet and each track's sequence header
// on their first occurrence only; the cache is immutable for the rest of the
// session's lifetime so late joiners and early joiners see the same init
// data via GetInitData.
func (inst *Instance) updateCache(pkt packet.Packet) {
	switch pkt.Kind() {
	case packet.KindMeta:
		if inst.cache.Metadata == nil {
			p := pkt
			inst.cache.Metadata = &p
		}
	case packet.KindVideo:
		if pkt.IsSequenceHeader() && inst.cache.VideoHeader == nil {
			p := pkt
			inst.cache.VideoHeader = &p
		}
	case packet.KindAudio:
		if pkt.IsSequenceHeader() && inst.cache.AudioHeader == nil {
			p := pkt
			inst.cache.AudioHeader = &p
		}
	}
}
