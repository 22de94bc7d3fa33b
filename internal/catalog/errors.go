package catalog

import "errors"

var (
	ErrCatalogClosed  = errors.New("catalog is closed")
	ErrWriteTimeout   = errors.New("catalog write timeout")
	ErrCircuitOpen    = errors.New("catalog circuit breaker open")
	ErrUnknownDriver  = errors.New("unknown catalog driver")
	ErrInvalidSession = errors.New("video session must have course id and url")
	ErrReadOnly       = errors.New("catalog does not accept new sessions")
)
