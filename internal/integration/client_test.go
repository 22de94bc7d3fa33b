package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Kaushik-110000/eduapp/pkg/types"
)

// frame is an outbound server event with its payload left raw.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// testClient is a websocket client that collects every frame it receives.
type testClient struct {
	t      *testing.T
	conn   *websocket.Conn
	frames chan frame
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", u.String(), err)
	}

	c := &testClient{
		t:      t,
		conn:   conn,
		frames: make(chan frame, 100),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	t.Cleanup(c.close)
	return c
}

func (c *testClient) readLoop() {
	defer close(c.done)
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return
		}
		c.frames <- f
	}
}

func (c *testClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.conn.Close()
}

func (c *testClient) send(event string, data any) {
	c.t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		c.t.Fatalf("send %s: %v", event, err)
	}
}

// expect waits for the next frame and requires it to carry event.
func (c *testClient) expect(event string) frame {
	c.t.Helper()
	select {
	case f := <-c.frames:
		if f.Event != event {
			c.t.Fatalf("expected %q, got %q: %s", event, f.Event, string(f.Data))
		}
		return f
	case <-c.done:
		c.t.Fatalf("connection closed while waiting for %q", event)
	case <-time.After(5 * time.Second):
		c.t.Fatalf("timeout waiting for %q", event)
	}
	return frame{}
}

// expectNothing requires that no frame arrives within d.
func (c *testClient) expectNothing(d time.Duration) {
	c.t.Helper()
	select {
	case f := <-c.frames:
		c.t.Fatalf("unexpected %q: %s", f.Event, string(f.Data))
	case <-time.After(d):
	}
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.t.Fatal("connection was not closed by the server")
	}
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(f.Data, &v); err != nil {
		t.Fatalf("decode %s payload: %v", f.Event, err)
	}
	return v
}

func (c *testClient) connected() string {
	c.t.Helper()
	return decode[types.ConnectedPayload](c.t, c.expect(types.EventConnected)).ConnectionID
}

func (c *testClient) join(sessionID string) types.HistoryPayload {
	c.t.Helper()
	c.send(types.EventJoin, types.JoinRequest{SessionID: sessionID})
	return decode[types.HistoryPayload](c.t, c.expect(types.EventHistory))
}

func (c *testClient) say(sessionID, text string, author types.Author) {
	c.send(types.EventMessage, types.SendRequest{SessionID: sessionID, Text: text, Author: author})
}

func (c *testClient) expectMessage() types.Message {
	c.t.Helper()
	return decode[types.Message](c.t, c.expect(types.EventNewMessage))
}

func (c *testClient) expectError(code string) types.ErrorPayload {
	c.t.Helper()
	p := decode[types.ErrorPayload](c.t, c.expect(types.EventError))
	if p.Code != code {
		c.t.Fatalf("expected error code %q, got %q (%s)", code, p.Code, p.Message)
	}
	return p
}

func author(id string) types.Author {
	return types.Author{ID: id, Name: fmt.Sprintf("User %s", id)}
}
