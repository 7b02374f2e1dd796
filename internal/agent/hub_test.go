package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/coder/websocket"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
	failing  bool
}

func (c *fakeConn) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, append([]byte(nil), p...))
	return nil
}

func (c *fakeConn) Close(websocket.StatusCode, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) events(t *testing.T) []LiveEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LiveEvent, 0, len(c.messages))
	for _, m := range c.messages {
		var ev LiveEvent
		if err := json.Unmarshal(m, &ev); err != nil {
			t.Fatalf("bad live event %q: %v", m, err)
		}
		out = append(out, ev)
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHubBroadcastReachesEveryTab(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	hub.Register("u:song.py", "a", a)
	hub.Register("u:song.py", "b", b)
	hub.Register("u:other.py", "c", other)

	if got := hub.Count("u:song.py"); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}

	hub.Broadcast("u:song.py", LiveEvent{Type: EventReply, Project: "song.py"})

	for name, c := range map[string]*fakeConn{"a": a, "b": b} {
		evs := c.events(t)
		if len(evs) != 1 || evs[0].Type != EventReply {
			t.Fatalf("conn %s: unexpected events %+v", name, evs)
		}
	}
	if len(other.events(t)) != 0 {
		t.Fatal("broadcast leaked to another project")
	}
}

func TestHubWriteFailureDoesNotStopBroadcast(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	broken, healthy := &fakeConn{failing: true}, &fakeConn{}
	hub.Register("u:p", "broken", broken)
	hub.Register("u:p", "healthy", healthy)

	hub.Broadcast("u:p", LiveEvent{Type: EventReply})
	if len(healthy.events(t)) != 1 {
		t.Fatal("healthy connection missed the event")
	}
}

func TestHubRegisterReplacesConnection(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	old, replacement := &fakeConn{}, &fakeConn{}
	hub.Register("u:p", "tab", old)
	hub.Register("u:p", "tab", replacement)

	if !old.isClosed() {
		t.Fatal("replaced connection should be closed")
	}

	hub.Unregister("u:p", "tab", old)
	if hub.Count("u:p") != 1 {
		t.Fatal("stale unregister removed the replacement")
	}
	hub.Unregister("u:p", "tab", replacement)
	if hub.Count("u:p") != 0 {
		t.Fatal("expected no connections")
	}
}

func TestHubCloseProject(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	c := &fakeConn{}
	hub.Register("u:p", "tab", c)
	hub.CloseProject("u:p")
	hub.CloseProject("u:missing")

	if !c.isClosed() {
		t.Fatal("connection should be closed")
	}
	if hub.Count("u:p") != 0 {
		t.Fatal("project should have no connections")
	}
}
