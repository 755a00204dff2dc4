package session

import (
	"testing"
	"time"

	"github.com/alxayo/go-rtmp/internal/packet"
)

type stubUsers struct {
	keys map[string]string
}

func (s *stubUsers) UserHasKey(app, key string) bool {
	return s.keys[app] == key
}

func TestCreateSessionRejectsBadKey(t *testing.T) {
	m := NewManager(&stubUsers{keys: map[string]string{"live": "secret"}})
	if _, err := m.CreateSession("live", "wrong"); err == nil {
		t.Fatalf("expected authentication failure")
	}
}

func TestCreateSessionThenJoinReceivesPackets(t *testing.T) {
	m := NewManager(&stubUsers{keys: map[string]string{"live": "secret"}})
	handle, err := m.CreateSession("live", "secret")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	_, sub, ok := m.JoinSession("live")
	if !ok {
		t.Fatalf("expected to join the just-created session")
	}
	defer sub.Close()

	if err := handle.Publish(packet.NewVideo(0, []byte{0x17, 0x01, 0xAA})); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case pkt := <-sub.Packets:
		if pkt.Kind() != packet.KindVideo {
			t.Fatalf("expected video packet, got %v", pkt.Kind())
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for published packet")
	}
}

func TestJoinSessionMissingAppFails(t *testing.T) {
	m := NewManager(&stubUsers{})
	if _, _, ok := m.JoinSession("nope"); ok {
		t.Fatalf("expected join of nonexistent app to fail")
	}
}

func TestCreateSessionReplacesExisting(t *testing.T) {
	m := NewManager(&stubUsers{keys: map[string]string{"live": "secret"}})
	first, err := m.CreateSession("live", "secret")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	second, err := m.CreateSession("live", "secret")
	if err != nil {
		t.Fatalf("republish create session: %v", err)
	}
	if first == second {
		t.Fatalf("expected a new handle on republish")
	}

	_, sub, ok := m.JoinSession("live")
	if !ok {
		t.Fatalf("expected the replacement session to be joinable")
	}
	sub.Close()
}

func TestGetInitDataReturnsCachedSequenceHeaders(t *testing.T) {
	m := NewManager(&stubUsers{keys: map[string]string{"live": "secret"}})
	handle, err := m.CreateSession("live", "secret")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	videoHeader := packet.NewVideo(0, []byte{0x17, 0x00, 0x00, 0x00, 0x00})
	if err := handle.Publish(videoHeader); err != nil {
		t.Fatalf("publish video header: %v", err)
	}

	// Publish is async relative to the mailbox; give the instance goroutine a
	// moment to process before asking for the cache.
	time.Sleep(10 * time.Millisecond)

	init := handle.GetInitData()
	if init.VideoHeader == nil {
		t.Fatalf("expected a cached video sequence header")
	}
}

func TestRegisterTriggerFiresOnCreateSession(t *testing.T) {
	m := NewManager(&stubUsers{keys: map[string]string{"live": "secret"}})
	ch := make(chan TriggerEvent, 1)
	m.RegisterTrigger("create_session", ch)

	if _, err := m.CreateSession("live", "secret"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.App != "live" {
			t.Fatalf("expected trigger for app %q, got %q", "live", ev.App)
		}
		ev.Subscription.Close()
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for create_session trigger")
	}
}
