package record

import (
	"context"
	"net/http"
	"time"

	"github.com/zeusync/docsync/internal/core/observability/log"
	"github.com/zeusync/docsync/pkg/concurrent"
)

// Submitter runs a unit of work in the background and reports its outcome
// exactly once.
type Submitter interface {
	Submit(ctx context.Context, task func(context.Context) error, onDone func(error))
}

// Engine synchronizes records with the document store. It holds no per-record
// state; all serialization happens on the record itself, so one Engine can
// serve any number of records concurrently.
type Engine struct {
	transport Transport
	submitter Submitter
	logger    log.Log
}

type EngineOption func(*Engine)

func WithLogger(logger log.Log) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSubmitter sets the executor behind SaveAsync and DeleteAsync.
func WithSubmitter(s Submitter) EngineOption {
	return func(e *Engine) {
		if s != nil {
			e.submitter = s
		}
	}
}

func NewEngine(transport Transport, opts ...EngineOption) *Engine {
	e := &Engine{
		transport: transport,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(log.String("component", "engine"))
	if e.submitter == nil {
		e.submitter = concurrent.NewRunner(0, e.logger)
	}
	return e
}

// Save sends the pending operations of r. A clean record is a no-op. An
// unpersisted record is created, otherwise it is updated. On any failure the
// record is left exactly as it was.
func (e *Engine) Save(ctx context.Context, r *Record) error {
	if r == nil {
		return invalidArgument(CodeOtherCause, "record may not be nil")
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	if !r.IsDirty() {
		return nil
	}

	id := r.ID()
	body := r.Payload()

	method, path := http.MethodPost, r.endpoint
	if id != "" {
		method, path = http.MethodPut, r.endpoint+"/"+id
	}

	logger := e.logger.With(
		log.String("collection", r.collection),
		log.String("method", method),
		log.String("path", path),
	)

	r.setSyncing(true)
	defer r.setSyncing(false)

	start := time.Now()
	resp, err := e.perform(ctx, method, path, body)
	if err != nil {
		logger.Warn("Save failed", log.Error(err), log.Duration("took", time.Since(start)))
		return err
	}

	var (
		newID                string
		createdAt, updatedAt time.Time
	)
	if id == "" {
		newID, _ = resp.Body[FieldObjectID].(string)
		if newID == "" {
			return malformedResponse("saved object reported no %s", FieldObjectID)
		}
		if createdAt, err = parseDate(resp.Body[FieldCreatedAt]); err != nil {
			return malformedResponse("saved object reported no valid %s: %v", FieldCreatedAt, err)
		}
		updatedAt = createdAt
	} else if updatedAt, err = parseDate(resp.Body[FieldUpdatedAt]); err != nil {
		return malformedResponse("updated object reported no valid %s: %v", FieldUpdatedAt, err)
	}

	r.mu.Lock()
	if newID != "" {
		r.id = newID
		r.createdAt = createdAt
	}
	r.updatedAt = updatedAt
	r.ops = make(map[string]Operation)
	r.dirtyKeys = nil
	r.deleted = false
	r.mu.Unlock()

	logger.Debug("Record saved",
		log.String("object_id", r.ID()),
		log.Int("ops", len(body)),
		log.Duration("took", time.Since(start)))
	return nil
}

// Delete removes the persisted document of r. The record keeps its data and
// becomes an unpersisted draft. Deleting an unpersisted record is a no-op.
func (e *Engine) Delete(ctx context.Context, r *Record) error {
	if r == nil {
		return invalidArgument(CodeOtherCause, "record may not be nil")
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	id := r.ID()
	if id == "" {
		return nil
	}

	path := r.endpoint + "/" + id
	r.setSyncing(true)
	defer r.setSyncing(false)

	if _, err := e.perform(ctx, http.MethodDelete, path, nil); err != nil {
		e.logger.Warn("Delete failed", log.String("path", path), log.Error(err))
		return err
	}

	r.mu.Lock()
	r.id = ""
	r.createdAt = time.Time{}
	r.updatedAt = time.Time{}
	r.ops = make(map[string]Operation)
	r.dirtyKeys = nil
	r.deleted = true
	r.mu.Unlock()

	e.logger.Debug("Record deleted", log.String("path", path))
	return nil
}

// Refresh reloads a persisted record from the server. Pending local
// operations are kept and re-applied on top of the fetched fields.
func (e *Engine) Refresh(ctx context.Context, r *Record) error {
	if r == nil {
		return invalidArgument(CodeOtherCause, "record may not be nil")
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()

	id := r.ID()
	if id == "" {
		return invalidArgument(CodeObjectNotFound, "record of %s has not been saved", r.collection)
	}

	path := r.endpoint + "/" + id
	r.setSyncing(true)
	defer r.setSyncing(false)

	resp, err := e.perform(ctx, http.MethodGet, path, nil)
	if err != nil {
		e.logger.Warn("Refresh failed", log.String("path", path), log.Error(err))
		return err
	}
	if resp.Body == nil {
		return malformedResponse("empty body for %s", path)
	}
	return r.applyServerData(resp.Body)
}

// SaveAll saves records in parallel and returns the first error. Records that
// saved successfully stay saved.
func (e *Engine) SaveAll(ctx context.Context, records ...*Record) error {
	return concurrent.ForEach(ctx, records, 0, e.Save)
}

// SaveAsync runs Save in the background and reports to onDone, which may be
// nil. Only a nil record is rejected synchronously.
func (e *Engine) SaveAsync(ctx context.Context, r *Record, onDone func(error)) error {
	return e.submit(ctx, "save", r, e.Save, onDone)
}

// DeleteAsync runs Delete in the background and reports to onDone, which may
// be nil.
func (e *Engine) DeleteAsync(ctx context.Context, r *Record, onDone func(error)) error {
	return e.submit(ctx, "delete", r, e.Delete, onDone)
}

func (e *Engine) submit(
	ctx context.Context,
	name string,
	r *Record,
	fn func(context.Context, *Record) error,
	onDone func(error),
) error {
	if r == nil {
		return invalidArgument(CodeOtherCause, "record may not be nil")
	}

	e.submitter.Submit(ctx, func(ctx context.Context) error {
		return fn(ctx, r)
	}, func(err error) {
		if onDone != nil {
			onDone(err)
			return
		}
		if err != nil {
			e.logger.Warn("Background "+name+" failed",
				log.String("collection", r.collection),
				log.Error(err))
		}
	})
	return nil
}

// perform turns transport and status failures into *Error values.
func (e *Engine) perform(ctx context.Context, method, path string, body map[string]any) (*Response, error) {
	resp, err := e.transport.Perform(ctx, method, path, body)
	if err != nil {
		return nil, transportFailure(err)
	}
	if resp == nil {
		return nil, malformedResponse("no response for %s %s", method, path)
	}
	if !resp.Succeeded() {
		return nil, serverFailure(resp)
	}
	return resp, nil
}

func (r *Record) setSyncing(v bool) {
	r.mu.Lock()
	r.syncing = v
	r.mu.Unlock()
}
