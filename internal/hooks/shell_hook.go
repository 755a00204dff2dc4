package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellHook runs a script, passing event fields as environment variables
// (and optionally the full event as JSON on stdin).
type ShellHook struct {
	id       string
	command  string
	args     []string
	env      []string
	passJSON bool
	timeout  time.Duration
}

// NewShellHook builds a hook that runs scriptPath with /bin/bash.
func NewShellHook(id, scriptPath string, timeout time.Duration) *ShellHook {
	return &ShellHook{id: id, command: "/bin/bash", args: []string{scriptPath}, timeout: timeout}
}

// NewShellHookWithCommand builds a hook running an arbitrary command.
func NewShellHookWithCommand(id, command string, args []string, timeout time.Duration) *ShellHook {
	return &ShellHook{id: id, command: command, args: args, timeout: timeout}
}

func (h *ShellHook) SetPassJSON(passJSON bool) *ShellHook {
	h.passJSON = passJSON
	return h
}

func (h *ShellHook) SetEnv(env []string) *ShellHook {
	h.env = env
	return h
}

func (h *ShellHook) Execute(ctx context.Context, event Event) error {
	execCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, h.command, h.args...)
	cmd.Env = append(cmd.Env, h.buildEnvironment(event)...)

	if h.passJSON {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("shell hook %s: stdin pipe: %w", h.id, err)
		}
		go func() {
			defer stdin.Close()
			_ = json.NewEncoder(stdin).Encode(event)
		}()
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("shell hook %s: %w", h.id, err)
	}
	return nil
}

func (h *ShellHook) Type() string { return "shell" }
func (h *ShellHook) ID() string   { return h.id }

func (h *ShellHook) buildEnvironment(event Event) []string {
	env := append([]string{}, h.env...)
	env = append(env, "RTMP_EVENT_TYPE="+string(event.Type))
	env = append(env, fmt.Sprintf("RTMP_TIMESTAMP=%d", event.Timestamp))
	if event.ConnID != "" {
		env = append(env, "RTMP_CONN_ID="+event.ConnID)
	}
	if event.StreamKey != "" {
		env = append(env, "RTMP_STREAM_KEY="+event.StreamKey)
	}
	for key, value := range event.Data {
		env = append(env, "RTMP_"+strings.ToUpper(key)+"="+fmt.Sprintf("%v", value))
	}
	return env
}
