package http_test

import (
	"context"
	"net"
	"testing"
	"time"

	wsclient "github.com/fasthttp/websocket"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_ClientsShareSessionTickLoop(t *testing.T) {
	deps := makeDeps()
	session, err := deps.Sessions.Create(context.Background(), []domain.FlightLeg{
		{FlightID: "BA117", OriginName: "London", DestinationName: "New York"},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	app := setupApp(deps)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	url := "ws://" + ln.Addr().String() + "/ws?session=" + session.ID()
	clients := make([]*wsclient.Conn, 2)
	for i := range clients {
		conn, _, err := wsclient.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial client %d: %v", i, err)
		}
		defer conn.Close()
		clients[i] = conn
	}
	waitFor(t, "both clients to subscribe", func() bool { return session.Subscribers() == 2 })

	for i, conn := range clients {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var prev float64
		for n := 0; n < 3; n++ {
			var f domain.Frame
			if err := conn.ReadJSON(&f); err != nil {
				t.Fatalf("client %d read frame: %v", i, err)
			}
			if f.SessionID != session.ID() || len(f.Markers) != 1 {
				t.Fatalf("client %d got unexpected frame %+v", i, f)
			}
			if n > 0 && f.Progress <= prev {
				t.Fatalf("client %d progress went from %v to %v", i, prev, f.Progress)
			}
			prev = f.Progress
		}
	}

	for _, conn := range clients {
		_ = conn.Close()
	}
	waitFor(t, "subscribers to detach", func() bool { return session.Subscribers() == 0 })

	p := session.Scheduler().Progress()
	time.Sleep(5 * deps.FrameInterval)
	if got := session.Scheduler().Progress(); got != p {
		t.Errorf("scheduler still ticking after clients left: %v -> %v", p, got)
	}
}

func TestWebSocket_UnknownSession(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	app := setupApp(makeDeps())
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := wsclient.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws?session=missing", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg map[string]string
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg["error"] == "" {
		t.Errorf("expected error message, got %v", msg)
	}
}
