package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeusync/docsync/internal/core/observability/log"
	"github.com/zeusync/docsync/pkg/generic"
	"github.com/zeusync/docsync/pkg/record"
)

const (
	HeaderApplicationID = "X-Parse-Application-Id"
	HeaderAPIKey        = "X-Parse-REST-API-Key"
	HeaderRequestID     = "X-Request-Id"
)

var _ record.Transport = (*HTTPTransport)(nil)

// Response bodies are read into pooled buffers; decoded values never alias them.
var responseBuffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// HTTPTransport performs document store requests over HTTP with JSON bodies.
type HTTPTransport struct {
	config  Config
	baseURL string
	client  *http.Client
	logger  log.Log
}

func NewHTTPTransport(config Config, logger log.Log) (*HTTPTransport, error) {
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidConfig, config.BaseURL)
	}
	if config.MaxResponseSize <= 0 {
		config.MaxResponseSize = DefaultConfig().MaxResponseSize
	}
	if logger == nil {
		logger = log.Provide()
	}

	return &HTTPTransport{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  newHTTPClient(config),
		logger:  logger.With(log.String("component", "transport")),
	}, nil
}

func newHTTPClient(config Config) *http.Client {
	dialer := &net.Dialer{
		Timeout: config.ConnectTimeout,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: config.TLSTimeout,
		MaxIdleConnsPerHost: 16,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}

// Perform sends one request. Errors mean the exchange did not complete; any
// completed exchange, whatever its status, yields a Response. A body that is
// not a JSON object is reported as a nil Body.
func (t *HTTPTransport) Perform(ctx context.Context, method, path string, body map[string]any) (*record.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		}
		reader = bytes.NewReader(encoded)
	}

	target := t.baseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.config.ApplicationID != "" {
		req.Header.Set(HeaderApplicationID, t.config.ApplicationID)
	}
	if t.config.APIKey != "" {
		req.Header.Set(HeaderAPIKey, t.config.APIKey)
	}

	logger := t.logger.With(
		log.String("method", method),
		log.String("path", path),
		log.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		logger.Warn("Request failed", log.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	buf := responseBuffers.Get()
	defer responseBuffers.Put(buf)

	if _, err = buf.ReadFrom(io.LimitReader(resp.Body, t.config.MaxResponseSize+1)); err != nil {
		logger.Warn("Reading response failed", log.Error(err))
		return nil, err
	}
	raw := buf.Bytes()
	if int64(len(raw)) > t.config.MaxResponseSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, t.config.MaxResponseSize)
	}

	result := &record.Response{StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(raw)) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		var decoded map[string]any
		if err = decoder.Decode(&decoded); err != nil {
			logger.Warn("Response is not a JSON object",
				log.Int("status", resp.StatusCode),
				log.Error(err))
		} else {
			result.Body = decoded
		}
	}

	logger.Debug("Request completed",
		log.Int("status", resp.StatusCode),
		log.Duration("took", time.Since(start)))
	return result, nil
}
