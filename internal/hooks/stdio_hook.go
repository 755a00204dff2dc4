package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// StdioHook writes event data to the process's own stderr, for supervisors
// that scrape child stdio rather than configuring a separate backend.
type StdioHook struct {
	id     string
	format string // "json" or "env"
	output *os.File
}

// NewStdioHook builds a hook writing to stderr in the given format.
func NewStdioHook(id, format string) *StdioHook {
	return &StdioHook{id: id, format: format, output: os.Stderr}
}

func (h *StdioHook) Execute(ctx context.Context, event Event) error {
	switch h.format {
	case "json":
		return h.outputJSON(event)
	case "env":
		return h.outputEnv(event)
	default:
		return fmt.Errorf("stdio hook %s: unsupported format %q", h.id, h.format)
	}
}

func (h *StdioHook) Type() string { return "stdio" }
func (h *StdioHook) ID() string   { return h.id }

func (h *StdioHook) outputJSON(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("stdio hook %s: marshal: %w", h.id, err)
	}
	_, err = fmt.Fprintf(h.output, "RTMP_EVENT: %s\n", data)
	return err
}

func (h *StdioHook) outputEnv(event Event) error {
	lines := []string{
		"# event: " + string(event.Type),
		fmt.Sprintf("RTMP_EVENT_TYPE=%s", event.Type),
		fmt.Sprintf("RTMP_TIMESTAMP=%d", event.Timestamp),
	}
	if event.ConnID != "" {
		lines = append(lines, "RTMP_CONN_ID="+event.ConnID)
	}
	if event.StreamKey != "" {
		lines = append(lines, "RTMP_STREAM_KEY="+event.StreamKey)
	}
	for key, value := range event.Data {
		lines = append(lines, "RTMP_"+strings.ToUpper(key)+"="+fmt.Sprintf("%v", value))
	}
	lines = append(lines, "")

	for _, line := range lines {
		if _, err := fmt.Fprintln(h.output, line); err != nil {
			return fmt.Errorf("stdio hook %s: %w", h.id, err)
		}
	}
	return nil
}
