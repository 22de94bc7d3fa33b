package interfaces

import "errors"

// Errors shared across components. Each one is reported only to the connection
// whose request produced it.
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrValidatorUnavailable = errors.New("session catalog unavailable")
	ErrRoomNotFound         = errors.New("room not found")
)
