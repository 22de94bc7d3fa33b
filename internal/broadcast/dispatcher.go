// Package broadcast delivers chat events to room members.
package broadcast

import (
	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/internal/metrics"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
	"github.com/Kaushik-110000/eduapp/pkg/types"
)

// Dispatcher fans events out to connections. Delivery is best-effort: a
// connection that cannot take an event is closed so its disconnect cleanup
// runs, and the remaining members are still served. Failures are never
// reported back to the sender.
type Dispatcher struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{logger: logger.Named("broadcast"), metrics: m}
}

// Broadcast sends msg as a newMessage event to every member and returns how
// many accepted it.
func (d *Dispatcher) Broadcast(members []interfaces.Connection, msg *types.Message) int {
	event := types.Event{Event: types.EventNewMessage, Data: msg}

	delivered := 0
	for _, member := range members {
		if d.deliver(member, event, msg.SessionID) {
			delivered++
		}
	}

	d.logger.Debug("message broadcast",
		zap.String("session_id", msg.SessionID),
		zap.Uint64("seq", msg.Seq),
		zap.Int("members", len(members)),
		zap.Int("delivered", delivered))
	return delivered
}

// Replay sends the room history to conn alone as a single history event.
func (d *Dispatcher) Replay(conn interfaces.Connection, sessionID string, history []*types.Message) bool {
	if history == nil {
		history = []*types.Message{}
	}
	event := types.Event{
		Event: types.EventHistory,
		Data:  types.HistoryPayload{SessionID: sessionID, Messages: history},
	}
	return d.deliver(conn, event, sessionID)
}

// Notify sends a single event to one connection, closing it on failure.
func (d *Dispatcher) Notify(conn interfaces.Connection, event types.Event) bool {
	return d.deliver(conn, event, "")
}

func (d *Dispatcher) deliver(conn interfaces.Connection, event types.Event, sessionID string) bool {
	if err := conn.Send(event); err != nil {
		d.metrics.DeliveryFailed()
		d.logger.Warn("delivery failed, closing connection",
			zap.String("connection_id", conn.ID()),
			zap.String("session_id", sessionID),
			zap.String("event", event.Event),
			zap.Error(err))
		_ = conn.Close()
		return false
	}
	return true
}
