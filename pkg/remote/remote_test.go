package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/metalblueberry/chordsnake/pkg/command"
	"github.com/metalblueberry/chordsnake/pkg/dispatch"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("Unmarshal %s: %v", msg, err)
	}
	return ev
}

func TestHubBroadcastsMoves(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)

	h.SubmitMove(command.Up)
	ev := readEvent(t, conn)
	if ev.Type != "move" || ev.Direction != "up" {
		t.Errorf("event = %+v, want move up", ev)
	}

	h.SetMode(dispatch.Pause)
	ev = readEvent(t, conn)
	if ev.Type != "mode" || ev.Mode != "pause" {
		t.Errorf("event = %+v, want mode pause", ev)
	}
}

func TestHubRemovesClosedClients(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not removed after close")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Broadcasting with no clients must not panic or block.
	h.SubmitMove(command.Left)
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	c := &client{send: make(chan []byte, 1)}
	h.add(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.SubmitMove(command.Down)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client")
	}
	if len(c.send) != 1 {
		t.Errorf("client buffer holds %d events, want 1", len(c.send))
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "example.com", true},
		{"http://localhost:3000", "example.com", true},
		{"http://127.0.0.1:8080", "example.com", true},
		{"http://192.168.1.20", "example.com", true},
		{"http://game.example.com", "game.example.com:8080", true},
		{"http://evil.example.org", "game.example.com", false},
		{"::::", "game.example.com", false},
	}
	for _, tt := range tests {
		r := &http.Request{Header: http.Header{}, Host: tt.host}
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := checkOrigin(r); got != tt.want {
			t.Errorf("checkOrigin(%q, host %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}
