package session

import (
	"fmt"
	"log/slog"

	"github.com/alxayo/go-rtmp/internal/logger"
)

// TriggerEvent is delivered to a registered trigger channel when the named
// event fires. The only event currently fired is "create_session", carrying
// the newly created app's name and a fresh Subscription so the trigger's
// consumer (the HLS writer, a relay destination) can start reading packets
// from the very first one published.
type TriggerEvent struct {
	App          string
	Subscription *Subscription
}

type createSessionReq struct {
	app, key string
	reply    chan createSessionResult
}

type createSessionResult struct {
	handle *Handle
	err    error
}

type joinSessionReq struct {
	app   string
	reply chan joinSessionResult
}

type joinSessionResult struct {
	handle *Handle
	sub    *Subscription
	ok     bool
}

type releaseSessionReq struct {
	app string
}

type registerTriggerReq struct {
	event string
	ch    chan TriggerEvent
}

// Manager is the single actor owning the registry of live applications. All
// registry mutation happens on its own goroutine (run), so CreateSession,
// JoinSession, ReleaseSession and RegisterTrigger are safe to call
// concurrently from any number of peer goroutines.
type Manager struct {
	users UserRepository
	reqs  chan interface{}
	log   *slog.Logger
}

// NewManager constructs a Manager and starts its actor goroutine. users
// authenticates publish attempts; a nil users always refuses CreateSession.
func NewManager(users UserRepository) *Manager {
	m := &Manager{
		users: users,
		reqs:  make(chan interface{}, 64),
		log:   logger.Logger().With("component", "session.manager"),
	}
	go m.run()
	return m
}

// CreateSession authenticates (app, key) against the user repository and, on
// success, allocates a new live session for app — replacing any existing one
// of the same name (a republish). It fires "create_session" triggers with a
// fresh Subscription so existing trigger consumers never miss the first
// packet of the new session.
func (m *Manager) CreateSession(app, key string) (*Handle, error) {
	reply := make(chan createSessionResult, 1)
	m.reqs <- createSessionReq{app: app, key: key, reply: reply}
	res := <-reply
	return res.handle, res.err
}

// JoinSession looks up a live app for playback or relay and returns a handle
// plus a fresh Subscription. ok is false when no such app is currently live.
func (m *Manager) JoinSession(app string) (handle *Handle, sub *Subscription, ok bool) {
	reply := make(chan joinSessionResult, 1)
	m.reqs <- joinSessionReq{app: app, reply: reply}
	res := <-reply
	return res.handle, res.sub, res.ok
}

// ReleaseSession removes app from the registry. It does not stop the session
// instance: the instance's goroutine returns on its own once it processes
// its Handle's Disconnect, so ReleaseSession only needs to forget the
// registry entry.
func (m *Manager) ReleaseSession(app string) {
	m.reqs <- releaseSessionReq{app: app}
}

// RegisterTrigger subscribes ch to fire on event. ch should be buffered by
// the caller if it cannot always receive immediately; the manager sends
// without blocking and drops the event with a warning log otherwise.
func (m *Manager) RegisterTrigger(event string, ch chan TriggerEvent) {
	m.reqs <- registerTriggerReq{event: event, ch: ch}
}

type registryEntry struct {
	handle *Handle
	inst   *Instance
}

func (m *Manager) run() {
	registry := make(map[string]registryEntry)
	triggers := make(map[string][]chan TriggerEvent)

	for req := range m.reqs {
		switch r := req.(type) {
		case createSessionReq:
			m.handleCreateSession(r, registry, triggers)
		case joinSessionReq:
			m.handleJoinSession(r, registry)
		case releaseSessionReq:
			delete(registry, r.app)
		case registerTriggerReq:
			triggers[r.event] = append(triggers[r.event], r.ch)
		}
	}
}

func (m *Manager) handleCreateSession(r createSessionReq, registry map[string]registryEntry, triggers map[string][]chan TriggerEvent) {
	if m.users == nil || !m.users.UserHasKey(r.app, r.key) {
		r.reply <- createSessionResult{err: fmt.Errorf("session: create %q: authentication failed", r.app)}
		return
	}

	if old, exists := registry[r.app]; exists {
		m.log.Info("replacing existing session on republish", "app", r.app)
		old.handle.Disconnect()
	}

	inst := newInstance(r.app)
	go inst.run()
	handle := &Handle{App: r.app, mailbox: inst.mailbox}
	registry[r.app] = registryEntry{handle: handle, inst: inst}

	m.fireTrigger(triggers, "create_session", r.app, inst)

	r.reply <- createSessionResult{handle: handle}
}

func (m *Manager) handleJoinSession(r joinSessionReq, registry map[string]registryEntry) {
	entry, ok := registry[r.app]
	if !ok {
		r.reply <- joinSessionResult{ok: false}
		return
	}
	r.reply <- joinSessionResult{handle: entry.handle, sub: entry.inst.subs.subscribe(), ok: true}
}

func (m *Manager) fireTrigger(triggers map[string][]chan TriggerEvent, event, app string, inst *Instance) {
	for _, ch := range triggers[event] {
		ev := TriggerEvent{App: app, Subscription: inst.subs.subscribe()}
		select {
		case ch <- ev:
		default:
			m.log.Warn("trigger channel full, dropping event", "event", event, "app", app)
			ev.Subscription.Close()
		}
	}
}
