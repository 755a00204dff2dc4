package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/alxayo/go-rtmp/internal/config"
	"github.com/alxayo/go-rtmp/internal/hls"
	"github.com/alxayo/go-rtmp/internal/hooks"
	"github.com/alxayo/go-rtmp/internal/logger"
	"github.com/alxayo/go-rtmp/internal/peer"
	"github.com/alxayo/go-rtmp/internal/relay"
	"github.com/alxayo/go-rtmp/internal/session"
	"github.com/alxayo/go-rtmp/internal/srt"
	"github.com/alxayo/go-rtmp/internal/userdb"
)

// run wires together every service the server offers (RTMP/RTMPS/SRT
// ingress, HLS writing, relay, operational hooks, HLS static serving) and
// blocks until a shutdown signal arrives. Generalizes the teacher's
// Server.Start/Stop pair, which owned only a single TCP listener and a
// connection registry; here each service is its own goroutine reachable
// through the shared session.Manager, matching SPEC_FULL's actor-per-app
// design instead of the teacher's single mutex-guarded registry.
func run(flags *runFlags) error {
	cfg, err := config.Load(flags.configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cfg, flags)

	logger.Init()
	if err := logger.SetLevel(flags.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", flags.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	db, err := userdb.Open(cfg.Database.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open credential database: %w", err)
	}
	defer db.Close()

	manager := session.NewManager(db)

	hookManager, err := buildHookManager(cfg)
	if err != nil {
		return fmt.Errorf("configure hooks: %w", err)
	}
	defer hookManager.Close()

	relayManager := relay.NewManager(cfg.Relay.Destinations, nil)
	go relayManager.Run(manager)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HLS.Enabled {
		hlsService := hls.NewService(manager, cfg.HLS.RootDir)
		go hlsService.Run()

		if cfg.HLS.Web.Enabled {
			webSrv := newHLSWebServer(cfg.HLS.Web.Addr, cfg.HLS.RootDir)
			go func() {
				log.Info("hls web server listening", "addr", cfg.HLS.Web.Addr, "root", cfg.HLS.RootDir)
				if err := webSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("hls web server stopped", "error", err)
				}
			}()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = webSrv.Shutdown(shutdownCtx)
			}()
		}
	}

	rtmpLn, err := net.Listen("tcp", cfg.RTMP.Addr)
	if err != nil {
		return fmt.Errorf("listen rtmp %s: %w", cfg.RTMP.Addr, err)
	}
	log.Info("rtmp listening", "addr", rtmpLn.Addr().String())
	go acceptLoop(rtmpLn, manager, hookManager)

	var tlsLn net.Listener
	if cfg.RTMP.TLS.Enabled {
		cert, err := loadPKCS12Certificate(cfg.RTMP.TLS.CertPath, cfg.RTMP.TLS.CertPassword)
		if err != nil {
			return fmt.Errorf("load rtmps certificate: %w", err)
		}
		tlsLn, err = tls.Listen("tcp", cfg.RTMP.TLS.Addr, &tls.Config{Certificates: []tls.Certificate{cert}})
		if err != nil {
			return fmt.Errorf("listen rtmps %s: %w", cfg.RTMP.TLS.Addr, err)
		}
		log.Info("rtmps listening", "addr", tlsLn.Addr().String())
		go acceptLoop(tlsLn, manager, hookManager)
	}

	var srtLn *srt.Listener
	if cfg.SRT.Addr != "" {
		srtLn = srt.NewListener(cfg.SRT.Addr, manager)
		go func() {
			if err := srtLn.ListenAndServe(); err != nil {
				log.Error("srt listener stopped", "error", err)
			}
		}()
	}

	log.Info("server started", "version", version)
	<-ctx.Done()
	log.Info("shutdown signal received")

	_ = rtmpLn.Close()
	if tlsLn != nil {
		_ = tlsLn.Close()
	}
	if srtLn != nil {
		_ = srtLn.Close()
	}
	log.Info("server stopped cleanly")
	return nil
}

// acceptLoop accepts connections on ln until it is closed, spawning one
// Peer goroutine per connection. Works identically for the plain TCP and
// TLS listeners since both satisfy net.Listener.
func acceptLoop(ln net.Listener, manager *session.Manager, hookManager *hooks.Manager) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		p := peer.New(conn, manager)
		p.SetHooks(hookManager)
		go p.Serve()
	}
}

// loadPKCS12Certificate decodes a PKCS#12 bundle into a tls.Certificate.
// Grounded on original_source/javelin-rtmp/src/service.rs, which loads the
// RTMPS cert the same way (native_tls::Identity::from_pkcs12 there,
// golang.org/x/crypto/pkcs12 here — Go's crypto/tls has no built-in PKCS#12
// support, so this is the one out-of-pack dependency this module adds).
func loadPKCS12Certificate(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("read %s: %w", path, err)
	}
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode pkcs12: %w", err)
	}
	return tls.Certificate{Certificate: [][]byte{cert.Raw}, PrivateKey: key}, nil
}

// newHLSWebServer builds the static file server over the HLS output
// directory, per SPEC_FULL's "HTTP: HLS static serving" external
// collaborator.
func newHLSWebServer(addr, rootDir string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(rootDir)))
	return &http.Server{Addr: addr, Handler: mux}
}

func applyFlagOverrides(cfg *config.Config, flags *runFlags) {
	if flags.listenAddr != "" {
		cfg.RTMP.Addr = flags.listenAddr
	}
	if flags.hookStdioFormat != "" {
		cfg.Hooks.StdioFormat = flags.hookStdioFormat
	}
	if flags.hookTimeout != "" {
		cfg.Hooks.Timeout = flags.hookTimeout
	}
	if flags.hookConcurrency != 0 {
		cfg.Hooks.Concurrency = flags.hookConcurrency
	}
	cfg.Relay.Destinations = append(cfg.Relay.Destinations, flags.relayDestinations...)
	cfg.Hooks.Scripts = append(cfg.Hooks.Scripts, flags.hookScripts...)
	cfg.Hooks.Webhooks = append(cfg.Hooks.Webhooks, flags.hookWebhooks...)
}

// buildHookManager constructs a hooks.Manager from cfg, registering one
// ShellHook per "event_type=script_path" entry and one WebhookHook per
// "event_type=webhook_url" entry, mirroring the teacher's
// registerShellHooks/registerWebhookHooks.
func buildHookManager(cfg *config.Config) (*hooks.Manager, error) {
	hookConfig := hooks.Config{
		Timeout:     cfg.Hooks.Timeout,
		Concurrency: cfg.Hooks.Concurrency,
		StdioFormat: cfg.Hooks.StdioFormat,
	}
	timeout, err := time.ParseDuration(hookConfig.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	manager := hooks.NewManager(hookConfig, slog.Default())

	for i, script := range cfg.Hooks.Scripts {
		eventType, path, err := splitAssignment(script)
		if err != nil {
			return nil, fmt.Errorf("hook script %q: %w", script, err)
		}
		hook := hooks.NewShellHook(fmt.Sprintf("shell_%d", i), path, timeout)
		if err := manager.RegisterHook(hooks.EventType(eventType), hook); err != nil {
			return nil, fmt.Errorf("register shell hook %q: %w", script, err)
		}
	}

	for i, webhook := range cfg.Hooks.Webhooks {
		eventType, url, err := splitAssignment(webhook)
		if err != nil {
			return nil, fmt.Errorf("hook webhook %q: %w", webhook, err)
		}
		hook := hooks.NewWebhookHook(fmt.Sprintf("webhook_%d", i), url, timeout)
		if err := manager.RegisterHook(hooks.EventType(eventType), hook); err != nil {
			return nil, fmt.Errorf("register webhook hook %q: %w", webhook, err)
		}
	}

	return manager, nil
}

func splitAssignment(s string) (key, value string, err error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected event_type=value")
	}
	return parts[0], parts[1], nil
}
