package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/andy6609/chatlite/internal/protocol"
)

func startHub(t *testing.T, capacity int) *Hub {
	t.Helper()
	h := NewHub(capacity, 16, time.Second, nil)
	go h.Run()
	t.Cleanup(func() {
		h.Stop()
		h.Wait()
	})
	return h
}

// join registers a fresh connection and consumes its welcome frame.
func join(t *testing.T, h *Hub) *Conn {
	t.Helper()
	c := newTestConn()
	if err := h.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	expectFrame(t, c, protocol.ServerName, "Welcome "+c.Name+"! Use /nick to set a nickname")
	return c
}

func say(t *testing.T, h *Hub, c *Conn, line string) {
	t.Helper()
	if !h.Send(Event{Type: EventLine, Conn: c, Line: line}) {
		t.Fatal("hub refused event")
	}
}

func expectFrame(t *testing.T, c *Conn, name, body string) {
	t.Helper()
	select {
	case raw, ok := <-c.Out:
		if !ok {
			t.Fatalf("conn %d: outbound closed, want %s: %q", c.ID, name, body)
		}
		f, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("conn %d: bad frame %q: %v", c.ID, raw, err)
		}
		if f.Name != name || f.Body != body {
			t.Fatalf("conn %d: got %s: %q, want %s: %q", c.ID, f.Name, f.Body, name, body)
		}
	case <-time.After(time.Second):
		t.Fatalf("conn %d: timeout waiting for %s: %q", c.ID, name, body)
	}
}

// expectQuiet asserts nothing is queued for c once the hub has caught up.
func expectQuiet(t *testing.T, h *Hub, c *Conn) {
	t.Helper()
	h.Members() // round trip: every earlier event has been handled
	select {
	case raw, ok := <-c.Out:
		if ok {
			t.Fatalf("conn %d: unexpected frame %q", c.ID, raw)
		}
	default:
	}
}

func expectClosed(t *testing.T, c *Conn) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-c.Out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("conn %d: outbound queue was not closed", c.ID)
		}
	}
}

func TestHub_ChatScenario(t *testing.T) {
	h := startHub(t, 8)

	c1 := join(t, h)
	c2 := join(t, h)
	expectFrame(t, c1, protocol.ServerName, "anon:2 joined")
	c3 := join(t, h)
	expectFrame(t, c1, protocol.ServerName, "anon:3 joined")
	expectFrame(t, c2, protocol.ServerName, "anon:3 joined")

	if c1.ID != 1 || c2.ID != 2 || c3.ID != 3 {
		t.Fatalf("ids = %d,%d,%d, want 1,2,3", c1.ID, c2.ID, c3.ID)
	}

	say(t, h, c1, "hi")
	expectFrame(t, c2, "anon:1", "hi")
	expectFrame(t, c3, "anon:1", "hi")
	expectQuiet(t, h, c1)

	say(t, h, c2, "/nick Bob")
	expectFrame(t, c2, protocol.ServerName, "you are now known as Bob")
	say(t, h, c2, "yo")
	expectFrame(t, c1, "Bob", "yo")
	expectFrame(t, c3, "Bob", "yo")
	expectQuiet(t, h, c2)
}

func TestHub_NickIsTrimmed(t *testing.T) {
	h := startHub(t, 8)
	a := join(t, h)
	b := join(t, h)
	expectFrame(t, a, protocol.ServerName, "anon:2 joined")

	say(t, h, a, "/nick   Alice  ")
	expectFrame(t, a, protocol.ServerName, "you are now known as Alice")
	say(t, h, a, "hello there")
	expectFrame(t, b, "Alice", "hello there")
}

func TestHub_EmptyNickKeepsName(t *testing.T) {
	h := startHub(t, 8)
	a := join(t, h)
	b := join(t, h)
	expectFrame(t, a, protocol.ServerName, "anon:2 joined")

	say(t, h, a, "/nick     ")
	expectFrame(t, a, protocol.ServerName, "nickname cannot be empty")
	say(t, h, a, "still me")
	expectFrame(t, b, "anon:1", "still me")
}

func TestHub_QuitNotifiesOnce(t *testing.T) {
	h := startHub(t, 8)
	a := join(t, h)
	b := join(t, h)
	expectFrame(t, a, protocol.ServerName, "anon:2 joined")
	c := join(t, h)
	expectFrame(t, a, protocol.ServerName, "anon:3 joined")
	expectFrame(t, b, protocol.ServerName, "anon:3 joined")

	say(t, h, b, "/nick Bea")
	expectFrame(t, b, protocol.ServerName, "you are now known as Bea")
	say(t, h, b, "/quit")
	say(t, h, b, "pipelined after quit")
	h.Send(Event{Type: EventHangup, Conn: b})

	expectFrame(t, a, protocol.ServerName, "Bea left")
	expectFrame(t, c, protocol.ServerName, "Bea left")
	expectQuiet(t, h, a)
	expectQuiet(t, h, c)
	expectClosed(t, b)

	for _, m := range h.Members() {
		if m.ID == b.ID {
			t.Fatalf("quit connection %d still listed: %+v", b.ID, h.Members())
		}
	}
}

func TestHub_HangupAlsoNotifies(t *testing.T) {
	h := startHub(t, 8)
	a := join(t, h)
	b := join(t, h)
	expectFrame(t, a, protocol.ServerName, "anon:2 joined")

	h.Send(Event{Type: EventHangup, Conn: b, Err: errors.New("connection reset by peer")})
	expectFrame(t, a, protocol.ServerName, "anon:2 left")
	expectClosed(t, b)
	if got := h.Members(); len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("Members() = %+v, want only %d", got, a.ID)
	}
}

func TestHub_RejectsBeyondCapacity(t *testing.T) {
	h := startHub(t, 2)
	a := join(t, h)
	b := join(t, h)
	expectFrame(t, a, protocol.ServerName, "anon:2 joined")

	before := testutil.ToFloat64(RejectedConnections)

	extra := newTestConn()
	if err := h.Register(extra); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Register() error = %v, want ErrCapacityExceeded", err)
	}
	expectFrame(t, extra, protocol.ServerName, "server is full")
	expectClosed(t, extra)

	if got := testutil.ToFloat64(RejectedConnections) - before; got != 1 {
		t.Fatalf("rejected counter moved by %v, want 1", got)
	}

	members := h.Members()
	if len(members) != 2 || members[0].ID != a.ID || members[1].ID != b.ID {
		t.Fatalf("Members() = %+v, existing slots must survive", members)
	}
	expectQuiet(t, h, a)
	expectQuiet(t, h, b)

	// The next successful accept continues the id sequence.
	h.Send(Event{Type: EventHangup, Conn: a})
	expectFrame(t, b, protocol.ServerName, "anon:1 left")
	c := join(t, h)
	if c.ID != 3 {
		t.Fatalf("new id = %d, want 3", c.ID)
	}
}

func TestHub_SlowRecipientDoesNotBlockOthers(t *testing.T) {
	h := startHub(t, 8)
	sender := join(t, h)

	slow := NewConn(nil, 1)
	if err := h.Register(slow); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	// The welcome frame already fills the slow queue.
	expectFrame(t, sender, protocol.ServerName, "anon:2 joined")
	fast := join(t, h)
	expectFrame(t, sender, protocol.ServerName, "anon:3 joined")

	before := testutil.ToFloat64(DroppedFrames)
	say(t, h, sender, "are you there?")
	expectFrame(t, fast, "anon:1", "are you there?")

	h.Members()
	if got := testutil.ToFloat64(DroppedFrames) - before; got < 1 {
		t.Fatalf("dropped counter moved by %v, want at least 1", got)
	}
}

func TestHub_TracksConnectedGauge(t *testing.T) {
	h := startHub(t, 8)
	a := join(t, h)
	join(t, h)

	h.Members()
	if got := testutil.ToFloat64(ConnectedClients); got != 2 {
		t.Fatalf("connected gauge = %v, want 2", got)
	}

	say(t, h, a, "/quit")
	h.Members()
	if got := testutil.ToFloat64(ConnectedClients); got != 1 {
		t.Fatalf("connected gauge = %v, want 1", got)
	}
}

func TestHub_StopClosesEveryone(t *testing.T) {
	h := NewHub(8, 16, time.Second, nil)
	go h.Run()

	a := join(t, h)
	b := join(t, h)

	h.Stop()
	h.Wait()

	expectClosed(t, a)
	expectClosed(t, b)

	if err := h.Register(newTestConn()); !errors.Is(err, ErrHubStopped) {
		t.Fatalf("Register() after stop error = %v, want ErrHubStopped", err)
	}
	if h.Members() != nil {
		t.Fatal("Members() after stop should be nil")
	}
}
