package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager registers hooks per event type and dispatches them onto a bounded
// worker pool so no slow backend ever blocks the task that raised the event.
type Manager struct {
	hooks     map[EventType][]Hook
	stdioHook *StdioHook
	mu        sync.RWMutex
	pool      *executionPool
	logger    *slog.Logger
	config    Config
}

// NewManager constructs a Manager from config.
func NewManager(config Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := time.ParseDuration(config.Timeout); err != nil {
		logger.Warn("invalid hook timeout, using default", "timeout", config.Timeout, "error", err)
	}

	m := &Manager{
		hooks:  make(map[EventType][]Hook),
		logger: logger,
		config: config,
		pool:   newExecutionPool(config.Concurrency, logger),
	}
	if config.StdioFormat != "" {
		if err := m.EnableStdioOutput(config.StdioFormat); err != nil {
			logger.Warn("invalid stdio format, stdio hook disabled", "format", config.StdioFormat, "error", err)
		}
	}
	return m
}

// RegisterHook registers hook for eventType.
func (m *Manager) RegisterHook(eventType EventType, hook Hook) error {
	if hook == nil {
		return fmt.Errorf("cannot register nil hook")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[eventType] = append(m.hooks[eventType], hook)
	m.logger.Info("hook registered", "event_type", eventType, "hook_type", hook.Type(), "hook_id", hook.ID())
	return nil
}

// TriggerEvent dispatches event to every hook registered for its type, plus
// the stdio hook if enabled. Nil-receiver safe so callers can carry an
// unconfigured *Manager without a nil check at every call site.
func (m *Manager) TriggerEvent(ctx context.Context, event Event) {
	if m == nil {
		return
	}

	m.mu.RLock()
	hooks := make([]Hook, len(m.hooks[event.Type]))
	copy(hooks, m.hooks[event.Type])
	if m.stdioHook != nil {
		hooks = append(hooks, m.stdioHook)
	}
	m.mu.RUnlock()

	if len(hooks) == 0 {
		return
	}

	m.logger.Debug("triggering event", "event_type", event.Type, "hook_count", len(hooks), "event", event.String())
	for _, hook := range hooks {
		m.pool.execute(ctx, hook, event)
	}
}

// EnableStdioOutput turns on structured stdio output in the given format.
func (m *Manager) EnableStdioOutput(format string) error {
	if format != "json" && format != "env" {
		return fmt.Errorf("unsupported stdio format: %s", format)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdioHook = NewStdioHook("stdio", format)
	m.logger.Info("stdio hook output enabled", "format", format)
	return nil
}

// Close waits for any in-flight hook executions to finish.
func (m *Manager) Close() error {
	if m.pool != nil {
		m.pool.close()
	}
	return nil
}

// executionPool bounds concurrent hook executions to size workers.
type executionPool struct {
	workers chan struct{}
	size    int
	active  int
	mu      sync.Mutex
	logger  *slog.Logger
}

func newExecutionPool(size int, logger *slog.Logger) *executionPool {
	if size <= 0 {
		size = 10
	}
	return &executionPool{workers: make(chan struct{}, size), size: size, logger: logger}
}

func (ep *executionPool) execute(ctx context.Context, hook Hook, event Event) {
	go func() {
		ep.workers <- struct{}{}
		defer func() { <-ep.workers }()

		ep.mu.Lock()
		ep.active++
		ep.mu.Unlock()
		defer func() {
			ep.mu.Lock()
			ep.active--
			ep.mu.Unlock()
		}()

		start := time.Now()
		err := hook.Execute(ctx, event)
		duration := time.Since(start)
		if err != nil {
			ep.logger.Error("hook execution failed", "hook_type", hook.Type(), "hook_id", hook.ID(), "event_type", event.Type, "duration_ms", duration.Milliseconds(), "error", err)
		} else {
			ep.logger.Debug("hook executed", "hook_type", hook.Type(), "hook_id", hook.ID(), "event_type", event.Type, "duration_ms", duration.Milliseconds())
		}
	}()
}

func (ep *executionPool) close() {
	for i := 0; i < cap(ep.workers); i++ {
		ep.workers <- struct{}{}
	}
}
