package room

import "errors"

var (
	ErrNilConnection  = errors.New("connection cannot be nil")
	ErrEmptySessionID = errors.New("session id cannot be empty")
)
