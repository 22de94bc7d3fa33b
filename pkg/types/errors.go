package types

import "errors"

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid event payload")
	ErrTextTooLong    = errors.New("message text exceeds maximum length")
	ErrEmptyText      = errors.New("message text cannot be empty")
)
