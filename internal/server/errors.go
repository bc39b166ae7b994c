package server

import "errors"

// Server-specific errors
var (
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrObjectNotFound       = errors.New("object not found")
	ErrReservedKey          = errors.New("reserved key")
	ErrInvalidOperation     = errors.New("invalid operation")
	ErrInvalidJSON          = errors.New("invalid JSON")
)
