// Package router turns inbound frames into gateway calls and turns gateway
// errors into error events for the requesting connection.
package router

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/internal/metrics"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
	"github.com/Kaushik-110000/eduapp/pkg/types"
)

// Gateway is the subset of the hub the router drives.
type Gateway interface {
	Join(ctx context.Context, conn interfaces.Connection, sessionID string) error
	Send(ctx context.Context, conn interfaces.Connection, req *types.SendRequest) error
	Leave(ctx context.Context, conn interfaces.Connection, sessionID string) error
}

// Router handles one frame at a time for one connection.
type Router struct {
	gateway     Gateway
	decoder     *types.Decoder
	rateLimiter *RateLimiter
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewRouter(gateway Gateway, decoder *types.Decoder, limiter *RateLimiter, logger *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{
		gateway:     gateway,
		decoder:     decoder,
		rateLimiter: limiter,
		logger:      logger.Named("router"),
		metrics:     m,
	}
}

// Route decodes raw and applies it. Any failure is reported to conn alone as
// an error event and also returned for logging by the caller.
func (r *Router) Route(ctx context.Context, conn interfaces.Connection, raw []byte) error {
	err := r.route(ctx, conn, raw)
	if err != nil {
		event := ErrorEvent(err)
		if sendErr := conn.Send(event); sendErr != nil {
			r.logger.Debug("could not report error",
				zap.String("connection_id", conn.ID()),
				zap.Error(sendErr))
		}
	}
	return err
}

func (r *Router) route(ctx context.Context, conn interfaces.Connection, raw []byte) error {
	req, err := r.decoder.Decode(raw)
	if err != nil {
		return err
	}

	switch req := req.(type) {
	case *types.JoinRequest:
		return r.gateway.Join(ctx, conn, req.SessionID)

	case *types.SendRequest:
		if r.rateLimiter != nil && !r.rateLimiter.Allow(conn.ID()) {
			r.metrics.RateLimited()
			return ErrRateLimitExceeded
		}
		return r.gateway.Send(ctx, conn, req)

	case *types.LeaveRequest:
		return r.gateway.Leave(ctx, conn, req.SessionID)

	default:
		return ErrUnsupportedFrame
	}
}

// Forget releases per-connection state once a connection is gone.
func (r *Router) Forget(connectionID string) {
	if r.rateLimiter != nil {
		r.rateLimiter.Remove(connectionID)
	}
}

// ErrorEvent maps an error to the client-visible error event. Internal
// details are not exposed for unexpected errors.
func ErrorEvent(err error) types.Event {
	switch {
	case errors.Is(err, interfaces.ErrSessionNotFound):
		return types.NewErrorEvent(types.CodeSessionNotFound, "Video session not found")
	case errors.Is(err, interfaces.ErrValidatorUnavailable):
		return types.NewErrorEvent(types.CodeValidatorUnavailable, "Unable to verify the video session, please try again")
	case errors.Is(err, interfaces.ErrRoomNotFound):
		return types.NewErrorEvent(types.CodeRoomNotFound, "Not a member of this room, join it first")
	case errors.Is(err, ErrRateLimitExceeded):
		return types.NewErrorEvent(types.CodeRateLimited, "Too many messages, slow down")
	case errors.Is(err, types.ErrUnknownEvent):
		return types.NewErrorEvent(types.CodeUnknownEvent, err.Error())
	case errors.Is(err, types.ErrInvalidPayload),
		errors.Is(err, types.ErrEmptyText),
		errors.Is(err, types.ErrTextTooLong):
		return types.NewErrorEvent(types.CodeInvalidPayload, err.Error())
	default:
		return types.NewErrorEvent(types.CodeInternal, "Request could not be processed")
	}
}
