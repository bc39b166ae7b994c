package protocol

import "errors"

// Transport errors
var (
	ErrInvalidConfig    = errors.New("invalid transport configuration")
	ErrEncodeFailed     = errors.New("request encoding failed")
	ErrResponseTooLarge = errors.New("response too large")
)
