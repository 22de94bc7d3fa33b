package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
)

type fakeGateway struct {
	mu           sync.Mutex
	connected    []string
	disconnected []string
	connectErr   error
}

func (g *fakeGateway) Connect(_ context.Context, conn interfaces.Connection) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.connectErr != nil {
		return g.connectErr
	}
	g.connected = append(g.connected, conn.ID())
	return conn.Send(map[string]string{"event": "connected"})
}

func (g *fakeGateway) Disconnect(id string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnected = append(g.disconnected, id)
	return nil, nil
}

func (g *fakeGateway) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.connected), len(g.disconnected)
}

type echoRouter struct {
	mu        sync.Mutex
	forgotten []string
}

func (r *echoRouter) Route(_ context.Context, conn interfaces.Connection, raw []byte) error {
	return conn.Send(map[string]string{"echo": string(raw)})
}

func (r *echoRouter) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forgotten = append(r.forgotten, id)
}

func startHandler(t *testing.T, opts Options) (*fakeGateway, *echoRouter, string) {
	t.Helper()
	g := &fakeGateway{}
	r := &echoRouter{}
	h := NewHandler(g, r, opts, zap.NewNop())

	server := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(server.Close)
	return g, r, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestHandler_ConnectRouteDisconnect(t *testing.T) {
	g, r, url := startHandler(t, Options{})

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	var first map[string]string
	if err := client.ReadJSON(&first); err != nil || first["event"] != "connected" {
		t.Fatalf("expected connected frame, got %v (%v)", first, err)
	}

	if err := client.WriteMessage(websocket.TextMessage, []byte("ping-pong")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var echoed map[string]string
	if err := client.ReadJSON(&echoed); err != nil || echoed["echo"] != "ping-pong" {
		t.Fatalf("expected echo, got %v (%v)", echoed, err)
	}

	_ = client.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, disconnected := g.counts(); disconnected == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	connected, disconnected := g.counts()
	if connected != 1 || disconnected != 1 {
		t.Fatalf("expected one connect and one disconnect, got %d/%d", connected, disconnected)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.forgotten) != 1 || r.forgotten[0] != g.connected[0] {
		t.Errorf("router state should be released for %s, got %v", g.connected[0], r.forgotten)
	}
}

func TestHandler_HeartbeatTimeoutDisconnects(t *testing.T) {
	g, _, url := startHandler(t, Options{
		PingInterval: time.Hour,
		ReadTimeout:  100 * time.Millisecond,
	})

	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	// client stays silent and sends no pongs, so the read deadline expires
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, disconnected := g.counts(); disconnected == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("silent connection should be disconnected after the read timeout")
}

func TestHandler_OriginCheck(t *testing.T) {
	h := NewHandler(&fakeGateway{}, &echoRouter{}, Options{AllowedOrigins: []string{"https://edu.example"}}, zap.NewNop())

	allowed := httptest.NewRequest(http.MethodGet, "/ws", nil)
	allowed.Header.Set("Origin", "https://edu.example")
	if !h.checkOrigin(allowed) {
		t.Error("configured origin should be allowed")
	}

	denied := httptest.NewRequest(http.MethodGet, "/ws", nil)
	denied.Header.Set("Origin", "https://evil.example")
	if h.checkOrigin(denied) {
		t.Error("unknown origin should be denied")
	}

	open := NewHandler(&fakeGateway{}, &echoRouter{}, Options{}, zap.NewNop())
	if !open.checkOrigin(denied) {
		t.Error("no configured origins allows any origin")
	}
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	h := NewHandler(&fakeGateway{}, &echoRouter{}, Options{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-upgrade request, got %d", rec.Code)
	}
}
