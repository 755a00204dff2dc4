package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// runFlags holds the CLI overrides for the run subcommand. Any flag left at
// its zero value defers to the matching key loaded from javelin.yml,
// preserving the teacher's flag-precedence convention of flags winning over
// the config file.
type runFlags struct {
	configDir string

	listenAddr string
	logLevel   string
	chunkSize  uint

	relayDestinations []string
	hookScripts       []string
	hookWebhooks      []string
	hookStdioFormat   string
	hookTimeout       string
	hookConcurrency   int

	showVersion bool
}

func parseRunFlags(args []string) (*runFlags, error) {
	fs := flag.NewFlagSet("rtmp-server run", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &runFlags{}
	var relayDests stringSliceFlag
	var hookScripts stringSliceFlag
	var hookWebhooks stringSliceFlag

	fs.StringVar(&cfg.configDir, "config-dir", "./config", "Directory containing javelin.yml")
	fs.StringVar(&cfg.listenAddr, "listen", "", "TCP listen address, overrides rtmp.addr (e.g. :1935)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.UintVar(&cfg.chunkSize, "chunk-size", 4096, "Outbound chunk size, validated (1-65536) but not applied; the server always uses 4096")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	fs.Var(&relayDests, "relay-to", "RTMP destination URL, appended to relay.destinations (can be specified multiple times)")
	fs.Var(&hookScripts, "hook-script", "Hook script in format event_type=script_path (can be specified multiple times)")
	fs.Var(&hookWebhooks, "hook-webhook", "Hook webhook in format event_type=webhook_url (can be specified multiple times)")
	fs.StringVar(&cfg.hookStdioFormat, "hook-stdio-format", "", "Enable structured stdio output: json|env (empty=disabled)")
	fs.StringVar(&cfg.hookTimeout, "hook-timeout", "", "Timeout for hook execution, overrides hooks.timeout")
	fs.IntVar(&cfg.hookConcurrency, "hook-concurrency", 0, "Maximum concurrent hook executions, overrides hooks.concurrency")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.relayDestinations = relayDests
	cfg.hookScripts = hookScripts
	cfg.hookWebhooks = hookWebhooks

	if cfg.chunkSize == 0 || cfg.chunkSize > 65536 {
		return nil, errors.New("chunk-size must be between 1 and 65536")
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	if err := validateHookConfig(cfg); err != nil {
		return nil, err
	}
	for _, dest := range cfg.relayDestinations {
		if err := validateRelayDestination(dest); err != nil {
			return nil, fmt.Errorf("invalid relay destination %q: %w", dest, err)
		}
	}

	return cfg, nil
}

// stringSliceFlag implements flag.Value for multiple string values.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func validateRelayDestination(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "rtmp" {
		return fmt.Errorf("URL must use rtmp:// scheme, got %s", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func validateHookConfig(cfg *runFlags) error {
	if cfg.hookStdioFormat != "" && cfg.hookStdioFormat != "json" && cfg.hookStdioFormat != "env" {
		return fmt.Errorf("invalid hook-stdio-format %q, must be 'json' or 'env'", cfg.hookStdioFormat)
	}
	if cfg.hookTimeout != "" {
		if _, err := parseTimeDuration(cfg.hookTimeout); err != nil {
			return fmt.Errorf("invalid hook-timeout %q: %w", cfg.hookTimeout, err)
		}
	}
	if cfg.hookConcurrency < 0 || cfg.hookConcurrency > 100 {
		return fmt.Errorf("hook-concurrency must be between 0 and 100, got %d", cfg.hookConcurrency)
	}
	for _, script := range cfg.hookScripts {
		if err := validateHookAssignment("hook-script", script); err != nil {
			return err
		}
	}
	for _, webhook := range cfg.hookWebhooks {
		if err := validateHookAssignment("hook-webhook", webhook); err != nil {
			return err
		}
	}
	return nil
}

// parseTimeDuration does a light syntactic check (full parsing happens in
// hooks.NewManager via time.ParseDuration); it exists so the CLI can reject
// an obviously wrong value before anything else starts.
func parseTimeDuration(s string) (string, error) {
	if len(s) < 2 {
		return "", fmt.Errorf("duration too short")
	}
	suffix := s[len(s)-1:]
	if suffix != "s" && suffix != "m" && suffix != "h" {
		return "", fmt.Errorf("duration must end with s, m, or h")
	}
	return s, nil
}

var validHookEventTypes = map[string]bool{
	"connection_accept":  true,
	"connection_close":   true,
	"handshake_complete": true,
	"stream_create":      true,
	"stream_delete":      true,
	"publish_start":      true,
	"publish_stop":       true,
	"play_start":         true,
	"play_stop":          true,
	"codec_detected":     true,
}

func validateHookAssignment(flagName, assignment string) error {
	parts := strings.SplitN(assignment, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid %s format %q, expected event_type=value", flagName, assignment)
	}
	eventType, value := parts[0], parts[1]
	if eventType == "" {
		return fmt.Errorf("invalid %s: event type cannot be empty", flagName)
	}
	if value == "" {
		return fmt.Errorf("invalid %s: value cannot be empty", flagName)
	}
	if !validHookEventTypes[eventType] {
		return fmt.Errorf("invalid %s: unknown event type %q", flagName, eventType)
	}
	return nil
}
