package record

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrTransportFailure  = errors.New("transport failure")
	ErrServerFailure     = errors.New("server failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// Machine-readable codes, compatible with the Parse REST API.
const (
	CodeOtherCause       = -1
	CodeConnectionFailed = 100
	CodeObjectNotFound   = 101
	CodeInvalidKeyName   = 105
	CodeInvalidJSON      = 107
	CodeIncorrectType    = 111
)

// Error is the structured failure returned by mutations and sync calls.
type Error struct {
	Kind    error
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (code %d): %s", e.Kind, e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidArgument(code int, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidArgument, Code: code, Message: fmt.Sprintf(format, args...)}
}

func transportFailure(err error) *Error {
	return &Error{Kind: ErrTransportFailure, Code: CodeConnectionFailed, Message: "request did not complete", Err: err}
}

func malformedResponse(format string, args ...any) *Error {
	return &Error{Kind: ErrMalformedResponse, Code: CodeInvalidJSON, Message: fmt.Sprintf(format, args...)}
}

// serverFailure reads {"code": N, "error": "..."} from a failed response.
func serverFailure(resp *Response) *Error {
	e := &Error{Kind: ErrServerFailure, Code: CodeOtherCause, Message: fmt.Sprintf("status %d", resp.StatusCode)}
	if resp.Body == nil {
		return e
	}
	if code, ok := toFloat64(resp.Body["code"]); ok {
		e.Code = int(code)
	}
	if msg, ok := resp.Body["error"].(string); ok && msg != "" {
		e.Message = msg
	}
	return e
}
