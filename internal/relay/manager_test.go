package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/alxayo/go-rtmp/internal/packet"
	"github.com/alxayo/go-rtmp/internal/session"
)

type stubUsers struct{ keys map[string]string }

func (s *stubUsers) UserHasKey(app, key string) bool { return s.keys[app] == key }

func TestManagerForwardsToConfiguredDestinations(t *testing.T) {
	var mu sync.Mutex
	clients := make([]*fakeClient, 0, 2)
	factory := func(string) (RTMPClient, error) {
		fc := &fakeClient{}
		mu.Lock()
		clients = append(clients, fc)
		mu.Unlock()
		return fc, nil
	}

	sm := session.NewManager(&stubUsers{keys: map[string]string{"live": "secret"}})
	m := NewManager([]string{"rtmp://a.example.com/out/one", "rtmp://b.example.com/out/two"}, factory)
	go m.Run(sm)

	// Give the trigger registration a moment to land before the session is
	// created, the same way the HLS service's registration must race-free
	// precede any publish.
	time.Sleep(20 * time.Millisecond)

	handle, err := sm.CreateSession("live", "secret")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := handle.Publish(packet.NewVideo(0, []byte{0x17, 0x01, 0xAA})); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(clients)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(clients) != 2 {
		t.Fatalf("expected 2 relay clients dialed, got %d", len(clients))
	}
}

func TestManagerWithNoDestinationsDoesNotRegisterTrigger(t *testing.T) {
	sm := session.NewManager(&stubUsers{keys: map[string]string{"live": "secret"}})
	m := NewManager(nil, nil)
	done := make(chan struct{})
	go func() {
		m.Run(sm)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return immediately with no configured destinations")
	}
}
