// Package hub is the connection gateway: it owns the event loop that applies
// every join, message, leave and disconnect to the room registry.
package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/internal/broadcast"
	"github.com/Kaushik-110000/eduapp/internal/metrics"
	"github.com/Kaushik-110000/eduapp/internal/room"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
	"github.com/Kaushik-110000/eduapp/pkg/types"
)

// Validator confirms a session id before a join is committed.
type Validator interface {
	Validate(ctx context.Context, sessionID string) error
}

// Hub serializes all room mutations on one goroutine.
// ARCHITECTURAL DISCOVERY: the only suspension point is session validation, which
// runs on the caller's goroutine before the join commit is queued, so a slow catalog
// never stalls other connections.
type Hub struct {
	registerChannel   chan *registration
	joinChannel       chan *joinCommit
	messageChannel    chan *MessageContext
	leaveChannel      chan *leaveRequest
	unregisterChannel chan *deregistration
	shutdownChannel   chan struct{}
	done              chan struct{}

	registry   *room.Registry
	dispatcher *broadcast.Dispatcher
	validator  Validator
	logger     *zap.Logger
	metrics    *metrics.Metrics

	// owned by run
	connections map[string]interfaces.Connection
	connected   atomic.Int64

	running bool
	mu      sync.RWMutex
}

type registration struct {
	conn  interfaces.Connection
	reply chan error
}

type joinCommit struct {
	conn      interfaces.Connection
	sessionID string
	reply     chan error
}

// MessageContext carries a validated send request to the loop.
type MessageContext struct {
	Sender  interfaces.Connection
	Request *types.SendRequest
	reply   chan error
}

type leaveRequest struct {
	conn      interfaces.Connection
	sessionID string
	reply     chan error
}

type deregistration struct {
	connectionID string
	reply        chan []string
}

func NewHub(registry *room.Registry, dispatcher *broadcast.Dispatcher, validator Validator, logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		// TECHNICAL DISCOVERY: buffers absorb bursts; every caller still waits for its reply
		registerChannel:   make(chan *registration, 100),
		joinChannel:       make(chan *joinCommit, 100),
		messageChannel:    make(chan *MessageContext, 1000),
		leaveChannel:      make(chan *leaveRequest, 100),
		unregisterChannel: make(chan *deregistration, 100),
		shutdownChannel:   make(chan struct{}),
		done:              make(chan struct{}),
		registry:          registry,
		dispatcher:        dispatcher,
		validator:         validator,
		logger:            logger.Named("hub"),
		metrics:           m,
		connections:       make(map[string]interfaces.Connection),
	}
}

// Start launches the event loop. The loop ends on Stop or when ctx is cancelled.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrHubAlreadyRunning
	}
	select {
	case <-h.done:
		return ErrHubNotRunning
	default:
	}
	h.running = true

	h.logger.Info("starting hub")
	go h.run(ctx)
	return nil
}

// Stop ends the loop, closes every connection and waits for cleanup to finish.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return ErrHubNotRunning
	}
	h.running = false
	close(h.shutdownChannel)
	h.mu.Unlock()

	h.logger.Info("stopping hub")
	<-h.done
	return nil
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// enqueue hands v to the loop unless the hub is stopping or ctx ends first.
func enqueue[T any](ctx context.Context, h *Hub, ch chan<- T, v T) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}
	select {
	case ch <- v:
		return nil
	case <-h.shutdownChannel:
		return ErrHubNotRunning
	case <-h.done:
		return ErrHubNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) await(reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-h.done:
		return ErrHubNotRunning
	}
}

// Connect registers a freshly accepted connection and sends it its identity.
func (h *Hub) Connect(ctx context.Context, conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	req := &registration{conn: conn, reply: make(chan error, 1)}
	if err := enqueue(ctx, h, h.registerChannel, req); err != nil {
		return err
	}
	return h.await(req.reply)
}

// Join validates sessionID and, on success, makes conn a member of its room
// and replays the room history to conn alone. Failures leave all room state
// untouched.
func (h *Hub) Join(ctx context.Context, conn interfaces.Connection, sessionID string) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !h.isRunning() {
		return ErrHubNotRunning
	}

	if err := h.validator.Validate(ctx, sessionID); err != nil {
		h.logger.Info("join rejected",
			zap.String("connection_id", conn.ID()),
			zap.String("session_id", sessionID),
			zap.Error(err))
		return err
	}

	req := &joinCommit{conn: conn, sessionID: sessionID, reply: make(chan error, 1)}
	if err := enqueue(ctx, h, h.joinChannel, req); err != nil {
		return err
	}
	return h.await(req.reply)
}

// Send appends a message to a room conn is a member of and broadcasts it to
// every member, the sender included.
func (h *Hub) Send(ctx context.Context, conn interfaces.Connection, req *types.SendRequest) error {
	if conn == nil {
		return ErrNilConnection
	}
	msg := &MessageContext{Sender: conn, Request: req, reply: make(chan error, 1)}
	if err := enqueue(ctx, h, h.messageChannel, msg); err != nil {
		return err
	}
	return h.await(msg.reply)
}

// Leave removes conn from one room and acknowledges with a left event.
func (h *Hub) Leave(ctx context.Context, conn interfaces.Connection, sessionID string) error {
	if conn == nil {
		return ErrNilConnection
	}
	req := &leaveRequest{conn: conn, sessionID: sessionID, reply: make(chan error, 1)}
	if err := enqueue(ctx, h, h.leaveChannel, req); err != nil {
		return err
	}
	return h.await(req.reply)
}

// Disconnect removes connectionID from every room. Only the first call for a
// connection has any effect. It returns the session ids the connection left.
func (h *Hub) Disconnect(connectionID string) ([]string, error) {
	req := &deregistration{connectionID: connectionID, reply: make(chan []string, 1)}
	if err := enqueue(context.Background(), h, h.unregisterChannel, req); err != nil {
		return nil, err
	}
	select {
	case sessions := <-req.reply:
		return sessions, nil
	case <-h.done:
		return nil, ErrHubNotRunning
	}
}

// ConnectionCount is the number of registered connections.
func (h *Hub) ConnectionCount() int {
	return int(h.connected.Load())
}

// Registry exposes the room registry for read-only introspection.
func (h *Hub) Registry() *room.Registry {
	return h.registry
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case req := <-h.registerChannel:
			req.reply <- h.handleRegistration(req.conn)

		case req := <-h.joinChannel:
			req.reply <- h.handleJoin(req.conn, req.sessionID)

		case msg := <-h.messageChannel:
			msg.reply <- h.handleMessage(msg)

		case req := <-h.leaveChannel:
			req.reply <- h.handleLeave(req.conn, req.sessionID)

		case req := <-h.unregisterChannel:
			req.reply <- h.handleDeregistration(req.connectionID)

		case <-h.shutdownChannel:
			h.logger.Info("hub shutdown requested")
			return

		case <-ctx.Done():
			h.logger.Info("hub context cancelled")
			h.mu.Lock()
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) handleRegistration(conn interfaces.Connection) error {
	id := conn.ID()
	if _, exists := h.connections[id]; exists {
		return ErrDuplicateConnection
	}

	h.connections[id] = conn
	h.connected.Add(1)
	h.metrics.ConnectionOpened()

	h.dispatcher.Notify(conn, types.Event{
		Event: types.EventConnected,
		Data:  types.ConnectedPayload{ConnectionID: id},
	})
	h.logger.Debug("connection registered", zap.String("connection_id", id))
	return nil
}

func (h *Hub) handleJoin(conn interfaces.Connection, sessionID string) error {
	id := conn.ID()
	if _, exists := h.connections[id]; !exists {
		// disconnected while the catalog lookup was in flight
		return ErrConnectionNotRegistered
	}

	_, created, err := h.registry.EnsureRoom(sessionID)
	if err != nil {
		return err
	}
	if err := h.registry.AddMember(sessionID, conn); err != nil {
		return err
	}

	history := h.registry.GetHistory(sessionID)
	h.dispatcher.Replay(conn, sessionID, history)

	h.metrics.SetRooms(h.registry.Len())
	h.logger.Info("connection joined room",
		zap.String("connection_id", id),
		zap.String("session_id", sessionID),
		zap.Bool("room_created", created),
		zap.Int("history", len(history)))
	return nil
}

func (h *Hub) handleMessage(msg *MessageContext) error {
	id := msg.Sender.ID()
	sessionID := msg.Request.SessionID

	if !h.registry.IsMember(sessionID, id) {
		return fmt.Errorf("%w: %s", interfaces.ErrRoomNotFound, sessionID)
	}

	stored, err := h.registry.AppendMessage(sessionID, types.Message{
		Text:   msg.Request.Text,
		Author: msg.Request.Author,
	})
	if err != nil {
		return err
	}
	h.metrics.MessageAccepted()

	h.dispatcher.Broadcast(h.registry.Members(sessionID), stored)
	return nil
}

func (h *Hub) handleLeave(conn interfaces.Connection, sessionID string) error {
	id := conn.ID()
	removed, tornDown := h.registry.RemoveMember(sessionID, id)
	if removed {
		h.metrics.SetRooms(h.registry.Len())
		h.logger.Info("connection left room",
			zap.String("connection_id", id),
			zap.String("session_id", sessionID),
			zap.Bool("room_deleted", tornDown))
	}

	h.dispatcher.Notify(conn, types.Event{
		Event: types.EventLeft,
		Data:  types.LeftPayload{SessionID: sessionID},
	})
	return nil
}

func (h *Hub) handleDeregistration(connectionID string) []string {
	if _, exists := h.connections[connectionID]; !exists {
		return nil
	}
	delete(h.connections, connectionID)
	h.connected.Add(-1)
	h.metrics.ConnectionClosed()

	sessions := h.registry.RemoveMemberFromAll(connectionID)
	h.metrics.SetRooms(h.registry.Len())
	h.logger.Info("connection disconnected",
		zap.String("connection_id", connectionID),
		zap.Strings("rooms", sessions))
	return sessions
}

// closeAll runs on loop exit so no room outlives the hub.
func (h *Hub) closeAll() {
	for id, conn := range h.connections {
		h.registry.RemoveMemberFromAll(id)
		if err := conn.Close(); err != nil {
			h.logger.Warn("failed to close connection", zap.String("connection_id", id), zap.Error(err))
		}
		delete(h.connections, id)
		h.connected.Add(-1)
		h.metrics.ConnectionClosed()
	}
	h.metrics.SetRooms(0)
}
