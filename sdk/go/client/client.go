// Package client provides the high-level docsync SDK: it wires configuration,
// logging, the HTTP transport and the background runner around a record
// engine.
package client

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/zeusync/docsync/internal/config"
	"github.com/zeusync/docsync/internal/core/observability/log"
	"github.com/zeusync/docsync/internal/core/protocol"
	"github.com/zeusync/docsync/pkg/concurrent"
	"github.com/zeusync/docsync/pkg/record"
)

// Client talks to one document store.
type Client struct {
	engine *record.Engine
	runner *concurrent.Runner

	validator record.Validator
	closed    int32 // atomic bool

	logger log.Log
}

// NewClient builds a client from configuration.
func NewClient(cfg config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := log.NewFromOptions(cfg.Logger())
	transport, err := protocol.NewHTTPTransport(cfg.Transport(), logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	runner := concurrent.NewRunner(cfg.Client.MaxBackground, logger)

	return New(transport, runner, logger), nil
}

// New assembles a client from its parts.
func New(transport record.Transport, runner *concurrent.Runner, logger log.Log) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	if runner == nil {
		runner = concurrent.NewRunner(0, logger)
	}

	c := &Client{
		runner:    runner,
		validator: record.DefaultValidator(),
		logger:    logger.With(log.String("component", "client")),
	}
	c.engine = record.NewEngine(transport,
		record.WithLogger(logger),
		record.WithSubmitter(runner),
	)
	return c
}

// NewRecord returns an empty record of collection.
func (c *Client) NewRecord(collection string, opts ...record.Option) *record.Record {
	opts = append([]record.Option{record.WithValidator(c.validator)}, opts...)
	return record.New(collection, opts...)
}

// Record returns a handle to an existing document; call Refresh to load it.
func (c *Client) Record(collection, id string) (*record.Record, error) {
	r := c.NewRecord(collection)
	if err := r.ApplyServerData(map[string]any{record.FieldObjectID: id}); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) Save(ctx context.Context, r *record.Record) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.engine.Save(ctx, r)
}

func (c *Client) Delete(ctx context.Context, r *record.Record) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.engine.Delete(ctx, r)
}

func (c *Client) Refresh(ctx context.Context, r *record.Record) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.engine.Refresh(ctx, r)
}

func (c *Client) SaveAll(ctx context.Context, records ...*record.Record) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.engine.SaveAll(ctx, records...)
}

// SaveAsync saves r in the background; onDone may be nil.
func (c *Client) SaveAsync(ctx context.Context, r *record.Record, onDone func(error)) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.engine.SaveAsync(ctx, r, onDone)
}

// DeleteAsync deletes r in the background; onDone may be nil.
func (c *Client) DeleteAsync(ctx context.Context, r *record.Record, onDone func(error)) error {
	if c.isClosed() {
		return ErrClientClosed
	}
	return c.engine.DeleteAsync(ctx, r, onDone)
}

// Wait blocks until all background work has finished.
func (c *Client) Wait() {
	c.runner.Wait()
}

// Close rejects new calls and waits for background work to finish.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return ErrClientClosed
	}
	c.logger.Debug("Client closing", log.Int64("pending", c.runner.Pending()))
	c.runner.Wait()
	return nil
}

func (c *Client) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}
