package srt

import (
	"fmt"
	"log/slog"
	"time"

	srt "github.com/datarhei/gosrt"

	"github.com/alxayo/go-rtmp/internal/logger"
	"github.com/alxayo/go-rtmp/internal/packet"
	"github.com/alxayo/go-rtmp/internal/session"
)

// Listener accepts SRT connections, authorizes each by its StreamID ACL,
// and bridges accepted connections directly to the session manager as
// Bytes packets (no RTMP framing on this transport).
//
// Grounded on the teacher's internal/rtmp/server.Server's accept-loop shape
// (own listener handle, closing flag, one goroutine per accepted
// connection) adapted to gosrt's callback-based accept, which decides the
// connection's mode (publish/request/reject) before the connection is
// handed back to the caller.
type Listener struct {
	addr    string
	manager *session.Manager
	log     *slog.Logger

	ln      srt.Listener
	closing bool
}

// NewListener constructs an unstarted SRT listener for addr (e.g.
// ":3001"), bridging accepted connections into manager.
func NewListener(addr string, manager *session.Manager) *Listener {
	return &Listener{
		addr:    addr,
		manager: manager,
		log:     logger.Logger().With("component", "srt.listener"),
	}
}

// ListenAndServe binds addr and runs the accept loop until Close is called
// or an unrecoverable listener error occurs.
func (l *Listener) ListenAndServe() error {
	config := srt.DefaultConfig()
	ln, err := srt.Listen("srt", l.addr, config)
	if err != nil {
		return fmt.Errorf("srt: listen %s: %w", l.addr, err)
	}
	l.ln = ln
	l.log.Info("listening for SRT connections", "addr", l.addr)

	for {
		var decision authDecision
		conn, mode, err := ln.Accept(func(req srt.ConnRequest) srt.ConnType {
			decision = l.authorize(req)
			if decision.rejectReason != 0 {
				req.SetRejectionReason(decision.rejectReason)
			}
			return decision.connType
		})
		if err != nil {
			if l.closing {
				return nil
			}
			l.log.Warn("srt accept error", "error", err)
			continue
		}
		if mode == srt.REJECT {
			continue
		}

		switch mode {
		case srt.PUBLISH:
			go l.handlePublish(conn, decision)
		case srt.SUBSCRIBE:
			go l.handleSubscribe(conn, decision)
		default:
			_ = conn.Close()
		}
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	l.closing = true
	if l.ln != nil {
		l.ln.Close()
	}
	return nil
}

type authDecision struct {
	connType     srt.ConnType
	rejectReason srt.RejectionReason
	acl          ACL
	handle       *session.Handle
	sub          *session.Subscription
}

// authorize runs synchronously inside gosrt's Accept callback, so the
// session-manager round trip (itself a synchronous channel call) completes
// before the connection's mode is decided — matching the original
// implementation's authorize-then-accept ordering.
func (l *Listener) authorize(req srt.ConnRequest) authDecision {
	streamID := req.StreamId()
	acl, err := ParseStreamID(streamID)
	if err != nil {
		reason := srt.RejectionReasonBadRequest
		if err == ErrBadMode {
			reason = srt.RejectionReasonBadMode
		}
		l.log.Warn("srt connection rejected", "reason", err, "remote", req.RemoteAddr().String())
		return authDecision{connType: srt.REJECT, rejectReason: reason}
	}

	switch acl.Mode {
	case ModePublish:
		handle, err := l.manager.CreateSession(acl.ResourceName, acl.UserName)
		if err != nil {
			l.log.Warn("srt publish rejected", "app", acl.ResourceName, "error", err)
			return authDecision{connType: srt.REJECT, rejectReason: srt.RejectionReasonUnauthorized}
		}
		return authDecision{connType: srt.PUBLISH, acl: acl, handle: handle}

	case ModeRequest:
		handle, sub, ok := l.manager.JoinSession(acl.ResourceName)
		if !ok {
			l.log.Warn("srt play rejected, no such stream", "app", acl.ResourceName)
			return authDecision{connType: srt.REJECT, rejectReason: srt.RejectionReasonUnauthorized}
		}
		return authDecision{connType: srt.SUBSCRIBE, acl: acl, handle: handle, sub: sub}

	default:
		return authDecision{connType: srt.REJECT, rejectReason: srt.RejectionReasonBadMode}
	}
}

// handlePublish reads raw payload chunks off the accepted connection and
// pushes each as a Bytes packet into the session, until the connection
// closes or the session rejects the packet (mailbox full).
func (l *Listener) handlePublish(conn srt.Conn, decision authDecision) {
	defer conn.Close()
	defer l.manager.ReleaseSession(decision.acl.ResourceName)
	defer decision.handle.Disconnect()

	buf := make([]byte, 1316) // one SRT payload MTU's worth
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			pkt := packet.NewBytes(uint32(time.Now().UnixMilli()), payload)
			if perr := decision.handle.Publish(pkt); perr != nil {
				l.log.Warn("dropping srt packet, session mailbox full", "error", perr)
			}
		}
		if err != nil {
			return
		}
	}
}

// handleSubscribe relays the joined session's live broadcast back over the
// connection as raw payload bytes; packet timestamps are not sent (SRT
// carries no RTMP-style timestamp of its own).
func (l *Listener) handleSubscribe(conn srt.Conn, decision authDecision) {
	defer conn.Close()
	defer decision.sub.Close()

	for pkt := range decision.sub.Packets {
		if _, err := conn.Write(pkt.Payload()); err != nil {
			return
		}
	}
}
