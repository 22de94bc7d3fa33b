package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxTextLength bounds a chat line when no limit is configured.
const DefaultMaxTextLength = 2000

// Decoder turns inbound frames into validated requests.
// FUNCTIONAL DISCOVERY: one validator.Validate is shared; it caches struct metadata
// and is safe for concurrent use by every read pump.
type Decoder struct {
	validate      *validator.Validate
	maxTextLength int
}

// legacy payloads sent by the original course-view client
type legacyJoin struct {
	VideoID string `json:"videoId"`
}

type legacySend struct {
	VideoID string `json:"videoId"`
	Message string `json:"message"`
	User    Author `json:"user"`
}

// NewDecoder creates a decoder that rejects text longer than maxTextLength runes.
func NewDecoder(maxTextLength int) *Decoder {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	return &Decoder{
		validate:      validator.New(),
		maxTextLength: maxTextLength,
	}
}

// Decode parses one frame. The result is *JoinRequest, *SendRequest or *LeaveRequest.
func (d *Decoder) Decode(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Event {
	case EventJoin:
		var req JoinRequest
		if err := d.unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		return &req, d.check(&req)

	case EventJoinAlias:
		var legacy legacyJoin
		if err := d.unmarshal(env.Data, &legacy); err != nil {
			return nil, err
		}
		req := &JoinRequest{SessionID: legacy.VideoID}
		return req, d.check(req)

	case EventLeave:
		var req LeaveRequest
		if err := d.unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		return &req, d.check(&req)

	case EventMessage:
		var req SendRequest
		if err := d.unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		return &req, d.checkSend(&req)

	case EventMessageAlias:
		var legacy legacySend
		if err := d.unmarshal(env.Data, &legacy); err != nil {
			return nil, err
		}
		req := &SendRequest{SessionID: legacy.VideoID, Text: legacy.Message, Author: legacy.User}
		return req, d.checkSend(req)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func (d *Decoder) unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (d *Decoder) check(v any) error {
	if err := d.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// checkSend trims the text before validating so whitespace-only lines are rejected.
func (d *Decoder) checkSend(req *SendRequest) error {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(req.Text) > d.maxTextLength {
		return ErrTextTooLong
	}
	return d.check(req)
}
