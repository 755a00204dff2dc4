// Package relay forwards a live app's broadcast to configured downstream
// RTMP destinations, generalizing the teacher's direct registry-to-relay
// wiring onto the session manager's create_session trigger.
package relay

import (
	"log/slog"

	"github.com/alxayo/go-rtmp/internal/logger"
	"github.com/alxayo/go-rtmp/internal/session"
)

// Manager holds the configured relay destinations and spawns one
// destination goroutine per (app, URL) pair whenever a session starts.
type Manager struct {
	urls    []string
	factory ClientFactory
	log     *slog.Logger
}

// NewManager returns a Manager that relays every future live app to urls
// using factory to dial outbound connections.
func NewManager(urls []string, factory ClientFactory) *Manager {
	if factory == nil {
		factory = DialClient
	}
	return &Manager{
		urls:    urls,
		factory: factory,
		log:     logger.Logger().With("component", "relay.manager"),
	}
}

// Run registers a create_session trigger with sm and dispatches forwarded
// packets to this app's destinations for as long as its session lives.
// Meant to be called from its own goroutine for the life of the process.
func (m *Manager) Run(sm *session.Manager) {
	if len(m.urls) == 0 {
		return
	}
	events := make(chan session.TriggerEvent, 16)
	sm.RegisterTrigger("create_session", events)
	for ev := range events {
		go m.relaySession(ev)
	}
}

func (m *Manager) relaySession(ev session.TriggerEvent) {
	dests := make([]*destination, 0, len(m.urls))
	for _, url := range m.urls {
		d := newDestination(ev.App, url, m.factory, m.log)
		dests = append(dests, d)
		go d.run()
	}
	defer func() {
		for _, d := range dests {
			d.closeQueue()
		}
	}()

	for pkt := range ev.Subscription.Packets {
		for _, d := range dests {
			d.forward(pkt)
		}
	}
}
