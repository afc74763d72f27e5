package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medrevise/medrevise/internal/events"
)

// dialPair spins up a server that registers the incoming socket under
// userID and returns the client side.
func dialPair(t *testing.T, h *Hub, userID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		h.Add(userID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	// Wait for the server side to land in the hub.
	deadline := time.Now().Add(2 * time.Second)
	for h.Count(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("socket never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return client
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e events.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read: %v", err)
	}
	return e
}

func TestSendReachesOnlyThatUser(t *testing.T) {
	h := NewHub()
	defer h.CloseAll()
	alice := dialPair(t, h, "alice")
	bob := dialPair(t, h, "bob")

	h.Send("alice", events.Event{Type: events.TypePinToggled, UserID: "alice"})

	if e := readEvent(t, alice); e.Type != events.TypePinToggled {
		t.Fatalf("alice got %v", e.Type)
	}
	_ = bob.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var e events.Event
	if err := bob.ReadJSON(&e); err == nil {
		t.Fatalf("bob should not receive alice's event, got %+v", e)
	}
}

func TestBroadcast(t *testing.T) {
	h := NewHub()
	defer h.CloseAll()
	alice := dialPair(t, h, "alice")
	bob := dialPair(t, h, "bob")

	h.Broadcast(events.Event{Type: events.TypeLectureImported})

	if e := readEvent(t, alice); e.Type != events.TypeLectureImported {
		t.Fatalf("alice got %v", e.Type)
	}
	if e := readEvent(t, bob); e.Type != events.TypeLectureImported {
		t.Fatalf("bob got %v", e.Type)
	}
}

func TestRunPumpsBusEvents(t *testing.T) {
	h := NewHub()
	defer h.CloseAll()
	bus := events.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, bus)

	alice := dialPair(t, h, "alice")
	// Give Run a beat to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)
	bus.Publish(events.Event{Type: events.TypeSessionComplete, UserID: "alice"})

	if e := readEvent(t, alice); e.Type != events.TypeSessionComplete {
		t.Fatalf("got %v", e.Type)
	}
}

func TestRemoveDropsSocket(t *testing.T) {
	h := NewHub()
	client := dialPair(t, h, "alice")
	_ = client

	h.mu.Lock()
	var server *websocket.Conn
	for c := range h.users["alice"] {
		server = c
	}
	h.mu.Unlock()

	h.Remove("alice", server)
	if h.Count("alice") != 0 {
		t.Fatalf("count = %d, want 0", h.Count("alice"))
	}
}
