package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
)

// Options tune the transport.
type Options struct {
	PingInterval    time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	SendBufferSize  int
	MaxMessageBytes int64
	AllowedOrigins  []string // empty or "*" allows any origin
}

// DefaultOptions keeps the 30s ping / 60s read deadline heartbeat.
func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendBufferSize:  100,
		MaxMessageBytes: 16 * 1024,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = d.SendBufferSize
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = d.MaxMessageBytes
	}
	return o
}

// Gateway registers and releases connections.
type Gateway interface {
	Connect(ctx context.Context, conn interfaces.Connection) error
	Disconnect(connectionID string) ([]string, error)
}

// Router applies one inbound frame.
type Router interface {
	Route(ctx context.Context, conn interfaces.Connection, raw []byte) error
	Forget(connectionID string)
}

// Handler upgrades HTTP requests and runs each connection's read pump.
// ARCHITECTURAL DISCOVERY: Clean separation of WebSocket handling from business logic;
// the gateway owns rooms and the router owns event decoding.
type Handler struct {
	gateway  Gateway
	router   Router
	upgrader websocket.Upgrader
	opts     Options
	logger   *zap.Logger
}

func NewHandler(gateway Gateway, router Router, opts Options, logger *zap.Logger) *Handler {
	opts = opts.withDefaults()
	h := &Handler{
		gateway: gateway,
		router:  router,
		opts:    opts,
		logger:  logger.Named("websocket"),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 || lo.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || lo.Contains(h.opts.AllowedOrigins, origin)
}

// HandleWebSocket upgrades the request and serves the connection until it ends.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(ws, h.opts, h.logger)
	if err := h.gateway.Connect(conn.ctx, conn); err != nil {
		h.logger.Warn("connection rejected", zap.String("connection_id", conn.ID()), zap.Error(err))
		_ = conn.Close()
		return
	}

	go h.handleConnection(conn)
}

// handleConnection is the read pump. Its deferred cleanup is the single place a
// connection is released, so disconnect handling runs exactly once however the
// connection ends.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		if _, err := h.gateway.Disconnect(conn.ID()); err != nil {
			h.logger.Debug("disconnect after hub stop", zap.String("connection_id", conn.ID()), zap.Error(err))
		}
		h.router.Forget(conn.ID())
		_ = conn.Close()
	}()

	// TECHNICAL DISCOVERY: read deadline is pushed forward on every pong
	conn.conn.SetReadLimit(h.opts.MaxMessageBytes)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.opts.ReadTimeout))
	})

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Info("websocket closed unexpectedly", zap.String("connection_id", conn.ID()), zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if err := h.router.Route(conn.ctx, conn, data); err != nil {
			h.logger.Debug("event rejected", zap.String("connection_id", conn.ID()), zap.Error(err))
		}
	}
}
