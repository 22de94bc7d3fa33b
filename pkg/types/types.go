package types

import (
	"encoding/json"
	"time"
)

// Event names on the wire. The two aliases are inbound only: joinVideoRoom and
// sendMessage frames from the course-view client are accepted, but replies always
// use the canonical history / newMessage events and the author field.
const (
	EventJoin         = "join"
	EventJoinAlias    = "joinVideoRoom"
	EventMessage      = "message"
	EventMessageAlias = "sendMessage"
	EventLeave        = "leave"

	EventConnected  = "connected"
	EventHistory    = "history"
	EventNewMessage = "newMessage"
	EventLeft       = "left"
	EventError      = "error"
)

// Error codes carried by EventError payloads.
const (
	CodeSessionNotFound      = "session_not_found"
	CodeRoomNotFound         = "room_not_found"
	CodeValidatorUnavailable = "validator_unavailable"
	CodeInvalidPayload       = "invalid_payload"
	CodeUnknownEvent         = "unknown_event"
	CodeRateLimited          = "rate_limited"
	CodeInternal             = "internal_error"
)

// Author describes who wrote a message. It is supplied by the client and never
// checked against an authenticated identity.
type Author struct {
	ID   string `json:"id" validate:"required,max=128"`
	Name string `json:"name" validate:"required,max=200"`
}

// Message is one chat line in a room. Immutable once appended.
// ARCHITECTURAL DISCOVERY: Seq is assigned by the owning room and is the
// replay/broadcast order; ID only has to be unique.
type Message struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	SessionID string    `json:"session_id"`
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope is an inbound frame. Data is decoded once the event name is known.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound frame.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// JoinRequest asks to become a member of a session's room.
type JoinRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
}

// LeaveRequest asks to stop being a member of a session's room.
type LeaveRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
}

// SendRequest posts text to a session's room.
type SendRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Text      string `json:"text" validate:"required"`
	Author    Author `json:"author"`
}

// Payloads of the outbound events.

type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

type HistoryPayload struct {
	SessionID string     `json:"session_id"`
	Messages  []*Message `json:"messages"`
}

type LeftPayload struct {
	SessionID string `json:"session_id"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewErrorEvent builds the error frame sent to a single connection.
func NewErrorEvent(code, message string) Event {
	return Event{Event: EventError, Data: ErrorPayload{Message: message, Code: code}}
}
