package main

import "testing"

func TestParseRunFlagsDefaults(t *testing.T) {
	cfg, err := parseRunFlags(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.configDir != "./config" {
		t.Errorf("expected default config-dir, got %q", cfg.configDir)
	}
	if cfg.logLevel != "info" {
		t.Errorf("expected default log-level info, got %q", cfg.logLevel)
	}
}

func TestParseRunFlagsRejectsBadLogLevel(t *testing.T) {
	if _, err := parseRunFlags([]string{"-log-level", "bogus"}); err == nil {
		t.Fatalf("expected an error for an invalid log level")
	}
}

func TestParseRunFlagsRejectsBadChunkSize(t *testing.T) {
	if _, err := parseRunFlags([]string{"-chunk-size", "0"}); err == nil {
		t.Fatalf("expected an error for a zero chunk size")
	}
	if _, err := parseRunFlags([]string{"-chunk-size", "100000"}); err == nil {
		t.Fatalf("expected an error for an oversized chunk size")
	}
}

func TestParseRunFlagsRejectsNonRTMPRelayDestination(t *testing.T) {
	if _, err := parseRunFlags([]string{"-relay-to", "http://example.com/live"}); err == nil {
		t.Fatalf("expected an error for a non-rtmp relay destination")
	}
}

func TestParseRunFlagsAcceptsValidRelayDestination(t *testing.T) {
	cfg, err := parseRunFlags([]string{"-relay-to", "rtmp://example.com/live/stream"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.relayDestinations) != 1 || cfg.relayDestinations[0] != "rtmp://example.com/live/stream" {
		t.Errorf("unexpected relay destinations %+v", cfg.relayDestinations)
	}
}

func TestParseRunFlagsRejectsMalformedHookAssignment(t *testing.T) {
	if _, err := parseRunFlags([]string{"-hook-script", "no-equals-sign"}); err == nil {
		t.Fatalf("expected an error for a malformed hook-script assignment")
	}
	if _, err := parseRunFlags([]string{"-hook-script", "unknown_event=foo.sh"}); err == nil {
		t.Fatalf("expected an error for an unknown hook event type")
	}
}

func TestParseRunFlagsAcceptsValidHookAssignment(t *testing.T) {
	cfg, err := parseRunFlags([]string{"-hook-script", "publish_start=./on-publish.sh"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.hookScripts) != 1 || cfg.hookScripts[0] != "publish_start=./on-publish.sh" {
		t.Errorf("unexpected hook scripts %+v", cfg.hookScripts)
	}
}
