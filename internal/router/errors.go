package router

import "errors"

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrUnsupportedFrame  = errors.New("unsupported request type")
)
