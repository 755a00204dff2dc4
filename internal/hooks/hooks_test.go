package hooks

import (
	"context"
	"testing"
	"time"
)

func TestEvent(t *testing.T) {
	event := NewEvent(EventConnectionAccept).
		WithConnID("test-conn").
		WithStreamKey("test/stream").
		WithData("client_ip", "192.168.1.100")

	if event.Type != EventConnectionAccept {
		t.Errorf("expected event type %s, got %s", EventConnectionAccept, event.Type)
	}
	if event.ConnID != "test-conn" {
		t.Errorf("expected conn id 'test-conn', got %s", event.ConnID)
	}
	if event.StreamKey != "test/stream" {
		t.Errorf("expected stream key 'test/stream', got %s", event.StreamKey)
	}
	if event.Data["client_ip"] != "192.168.1.100" {
		t.Errorf("expected client_ip '192.168.1.100', got %v", event.Data["client_ip"])
	}
	if str := event.String(); str != "connection_accept:test/stream" {
		t.Errorf("expected string 'connection_accept:test/stream', got %s", str)
	}
}

func TestShellHook(t *testing.T) {
	hook := NewShellHook("test-hook", "/bin/echo", 10*time.Second)
	if hook.Type() != "shell" {
		t.Errorf("expected hook type 'shell', got %s", hook.Type())
	}
	if hook.ID() != "test-hook" {
		t.Errorf("expected hook id 'test-hook', got %s", hook.ID())
	}

	custom := NewShellHookWithCommand("custom", "/bin/true", nil, 5*time.Second)
	if custom.command != "/bin/true" {
		t.Errorf("expected command '/bin/true', got %s", custom.command)
	}
}

func TestShellHookExecutes(t *testing.T) {
	hook := NewShellHook("runs-true", "", 5*time.Second)
	hook.command = "/bin/true"
	hook.args = nil
	if err := hook.Execute(context.Background(), *NewEvent(EventPublishStart)); err != nil {
		t.Fatalf("expected /bin/true to succeed: %v", err)
	}
}

func TestManagerDispatchesRegisteredHook(t *testing.T) {
	config := DefaultConfig()
	manager := NewManager(config, nil)
	defer manager.Close()

	hook := NewShellHook("true-hook", "", time.Second)
	hook.command, hook.args = "/bin/true", nil
	if err := manager.RegisterHook(EventPublishStart, hook); err != nil {
		t.Fatalf("register hook: %v", err)
	}

	// TriggerEvent dispatches asynchronously onto the worker pool; there is
	// nothing observable to poll here beyond it not blocking or panicking.
	manager.TriggerEvent(context.Background(), *NewEvent(EventPublishStart))
}

func TestManagerTriggerEventWithNoHooksIsNoop(t *testing.T) {
	manager := NewManager(DefaultConfig(), nil)
	defer manager.Close()
	manager.TriggerEvent(context.Background(), *NewEvent(EventStreamCreate))
}

func TestManagerNilReceiverIsSafe(t *testing.T) {
	var manager *Manager
	manager.TriggerEvent(context.Background(), *NewEvent(EventStreamCreate))
}

func TestStdioHook(t *testing.T) {
	hook := NewStdioHook("stdio-test", "json")
	if hook.Type() != "stdio" {
		t.Errorf("expected hook type 'stdio', got %s", hook.Type())
	}
	if hook.ID() != "stdio-test" {
		t.Errorf("expected hook id 'stdio-test', got %s", hook.ID())
	}
	if hook.format != "json" {
		t.Errorf("expected format 'json', got %s", hook.format)
	}
}

func TestWebhookHook(t *testing.T) {
	hook := NewWebhookHook("webhook-test", "https://example.com/webhook", 30*time.Second)
	if hook.Type() != "webhook" {
		t.Errorf("expected hook type 'webhook', got %s", hook.Type())
	}
	if hook.url != "https://example.com/webhook" {
		t.Errorf("expected url 'https://example.com/webhook', got %s", hook.url)
	}

	hook.AddHeader("Authorization", "Bearer token")
	if hook.headers["Authorization"] != "Bearer token" {
		t.Errorf("expected authorization header 'Bearer token', got %s", hook.headers["Authorization"])
	}
}
