// Package config loads the YAML configuration file that backs cmd/rtmp-server's
// run subcommand. CLI flags retained from the teacher (-listen, relay/hook
// flags) override or extend the matching YAML key, preserving the teacher's
// existing flag-precedence convention of "flags win, file fills in the rest".
// -log-level has no YAML key and sets the logger level directly; -chunk-size
// has no YAML key and its value is validated but not applied.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// TLSConfig describes the optional RTMPS listener.
type TLSConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr"`
	CertPath     string `yaml:"cert_path"`
	CertPassword string `yaml:"cert_password"`
}

// RTMPConfig describes the plain RTMP listener and its optional TLS sibling.
type RTMPConfig struct {
	Addr              string    `yaml:"addr"`
	TLS               TLSConfig `yaml:"tls"`
	ConnectionTimeout string    `yaml:"connection_timeout"`
}

// SRTConfig describes the SRT listener.
type SRTConfig struct {
	Addr string `yaml:"addr"`
}

// HLSWebConfig describes the HTTP static file server over the HLS output
// directory.
type HLSWebConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// HLSConfig describes HLS segment/playlist writing.
type HLSConfig struct {
	RootDir string       `yaml:"root_dir"`
	Enabled bool         `yaml:"enabled"`
	Web     HLSWebConfig `yaml:"web"`
}

// SQLiteConfig describes the credential database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig wraps the credential store configuration.
type DatabaseConfig struct {
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// RelayConfig describes outbound RTMP relay destinations.
type RelayConfig struct {
	Destinations []string `yaml:"destinations"`
}

// HooksConfig describes the operational hook backends.
type HooksConfig struct {
	Scripts     []string `yaml:"scripts"`
	Webhooks    []string `yaml:"webhooks"`
	StdioFormat string   `yaml:"stdio_format"`
	Timeout     string   `yaml:"timeout"`
	Concurrency int      `yaml:"concurrency"`
}

// Config is the full contents of javelin.yml.
type Config struct {
	RTMP     RTMPConfig     `yaml:"rtmp"`
	SRT      SRTConfig      `yaml:"srt"`
	HLS      HLSConfig      `yaml:"hls"`
	Database DatabaseConfig `yaml:"database"`
	Relay    RelayConfig    `yaml:"relay"`
	Hooks    HooksConfig    `yaml:"hooks"`
}

// applyDefaults fills in zero values with the same defaults the teacher's
// flag package used, so a missing or partial javelin.yml still produces a
// runnable configuration.
func (c *Config) applyDefaults() {
	if c.RTMP.Addr == "" {
		c.RTMP.Addr = ":1935"
	}
	if c.RTMP.TLS.Addr == "" {
		c.RTMP.TLS.Addr = ":1936"
	}
	if c.RTMP.ConnectionTimeout == "" {
		c.RTMP.ConnectionTimeout = "30s"
	}
	if c.SRT.Addr == "" {
		c.SRT.Addr = ":3001"
	}
	if c.HLS.RootDir == "" {
		c.HLS.RootDir = "./data/hls"
	}
	if c.HLS.Web.Addr == "" {
		c.HLS.Web.Addr = ":8080"
	}
	if c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = "javelin.db"
	}
	if c.Hooks.Timeout == "" {
		c.Hooks.Timeout = "30s"
	}
	if c.Hooks.Concurrency == 0 {
		c.Hooks.Concurrency = 10
	}
}

// Load reads and parses <configDir>/javelin.yml. A missing file is not an
// error: Load returns a default Config so the server can still run with
// CLI flags alone.
func Load(configDir string) (*Config, error) {
	path := filepath.Join(configDir, "javelin.yml")
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}
