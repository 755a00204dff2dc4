package hooks

import "context"

// Hook is a backend that runs in response to an Event.
type Hook interface {
	Execute(ctx context.Context, event Event) error
	Type() string
	ID() string
}

// Config controls the hook manager's concurrency and stdio behavior.
type Config struct {
	Timeout     string `json:"timeout"`
	Concurrency int    `json:"concurrency"`
	StdioFormat string `json:"stdio_format"` // "json", "env", or ""
}

// DefaultConfig returns sensible defaults matching the teacher's hook
// manager's defaults: 30s timeout, 10-worker pool, stdio output disabled.
func DefaultConfig() Config {
	return Config{Timeout: "30s", Concurrency: 10}
}
