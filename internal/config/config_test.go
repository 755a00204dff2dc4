package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RTMP.Addr != ":1935" {
		t.Errorf("expected default rtmp addr, got %q", cfg.RTMP.Addr)
	}
	if cfg.Hooks.Concurrency != 10 {
		t.Errorf("expected default hook concurrency 10, got %d", cfg.Hooks.Concurrency)
	}
}

func TestLoadParsesYAMLAndAppliesDefaultsForOmittedKeys(t *testing.T) {
	dir := t.TempDir()
	yamlBody := `
rtmp:
  addr: ":9935"
  tls:
    enabled: true
    cert_path: /etc/javelin/cert.pem
srt:
  addr: ":9001"
relay:
  destinations:
    - "rtmp://example.com/live/copy"
hooks:
  stdio_format: json
  webhooks:
    - "publish_start=https://example.com/hook"
database:
  sqlite:
    path: /var/lib/javelin/users.db
`
	if err := os.WriteFile(filepath.Join(dir, "javelin.yml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RTMP.Addr != ":9935" {
		t.Errorf("expected overridden rtmp addr, got %q", cfg.RTMP.Addr)
	}
	if !cfg.RTMP.TLS.Enabled || cfg.RTMP.TLS.CertPath != "/etc/javelin/cert.pem" {
		t.Errorf("expected tls config to be parsed, got %+v", cfg.RTMP.TLS)
	}
	if cfg.RTMP.TLS.Addr != ":1936" {
		t.Errorf("expected default tls addr for omitted key, got %q", cfg.RTMP.TLS.Addr)
	}
	if cfg.SRT.Addr != ":9001" {
		t.Errorf("expected overridden srt addr, got %q", cfg.SRT.Addr)
	}
	if len(cfg.Relay.Destinations) != 1 || cfg.Relay.Destinations[0] != "rtmp://example.com/live/copy" {
		t.Errorf("expected one relay destination, got %+v", cfg.Relay.Destinations)
	}
	if cfg.Hooks.StdioFormat != "json" {
		t.Errorf("expected stdio format json, got %q", cfg.Hooks.StdioFormat)
	}
	if cfg.Database.SQLite.Path != "/var/lib/javelin/users.db" {
		t.Errorf("expected overridden sqlite path, got %q", cfg.Database.SQLite.Path)
	}
	if cfg.HLS.RootDir != "./data/hls" {
		t.Errorf("expected default hls root dir for omitted key, got %q", cfg.HLS.RootDir)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "javelin.yml"), []byte("rtmp: [this is not a mapping"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected an error parsing malformed yaml")
	}
}
