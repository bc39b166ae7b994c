package record

import (
	"context"
	"net/http"
)

// Transport performs one request against the document store. A returned error
// means the request did not complete; a completed request with a non-2xx
// status is reported through the Response.
type Transport interface {
	Perform(ctx context.Context, method, path string, body map[string]any) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, method, path string, body map[string]any) (*Response, error)

func (f TransportFunc) Perform(ctx context.Context, method, path string, body map[string]any) (*Response, error) {
	return f(ctx, method, path, body)
}

type Response struct {
	StatusCode int
	Body       map[string]any
}

func (r *Response) Succeeded() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}
