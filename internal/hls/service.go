package hls

import (
	"log/slog"

	"github.com/alxayo/go-rtmp/internal/logger"
	"github.com/alxayo/go-rtmp/internal/session"
)

// Service owns the shared FileCleaner and the trigger channel registered
// with the session manager. One Service per process; it spawns a fresh
// Writer goroutine for every app that starts publishing.
type Service struct {
	root    string
	cleaner *FileCleaner
	log     *slog.Logger
	events  chan session.TriggerEvent
}

// NewService registers an HLS trigger with manager and returns a Service
// that writes segments under root (one subdirectory per app). Call Run to
// start dispatching.
func NewService(manager *session.Manager, root string) *Service {
	s := &Service{
		root:    root,
		cleaner: NewFileCleaner(),
		log:     logger.Logger().With("component", "hls.service"),
		events:  make(chan session.TriggerEvent, 16),
	}
	manager.RegisterTrigger("create_session", s.events)
	return s
}

// Run blocks, spawning a Writer per TriggerEvent received, until the
// manager's trigger channel is closed. Meant to be run from its own
// goroutine for the lifetime of the process.
func (s *Service) Run() {
	for ev := range s.events {
		w, err := NewWriter(s.root, ev.App, s.cleaner)
		if err != nil {
			s.log.Warn("failed to start hls writer", "app", ev.App, "error", err)
			ev.Subscription.Close()
			continue
		}
		go w.Run(ev.Subscription)
	}
}
