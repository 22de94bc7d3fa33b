package hub

import "errors"

var (
	ErrHubAlreadyRunning       = errors.New("hub is already running")
	ErrHubNotRunning           = errors.New("hub is not running")
	ErrNilConnection           = errors.New("connection cannot be nil")
	ErrDuplicateConnection     = errors.New("connection id already registered")
	ErrConnectionNotRegistered = errors.New("connection is not registered")
)
