package protocol

import "time"

// Config holds HTTP transport configuration
type Config struct {
	// BaseURL is prepended to every request path, e.g. http://localhost:1337/1
	BaseURL string

	// Credentials sent with every request; empty values are omitted.
	ApplicationID string
	APIKey        string

	// Timeout bounds a whole request, including reading the response body.
	Timeout        time.Duration
	ConnectTimeout time.Duration
	TLSTimeout     time.Duration

	// MaxResponseSize caps how many bytes of a response body are read.
	MaxResponseSize int64
}

// DefaultConfig returns default transport configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:1337/1",
		Timeout:         60 * time.Second,
		ConnectTimeout:  5 * time.Second,
		TLSTimeout:      5 * time.Second,
		MaxResponseSize: 8 << 20, // 8MB
	}
}
