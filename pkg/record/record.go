// Package record implements the client-side model of a remote document: it
// records local mutations as per-key operations, builds the minimal payload
// needed to synchronize them, and drives create, update and delete round
// trips through a Transport.
package record

import (
	"sync"
	"time"
)

// Server-owned fields.
const (
	FieldObjectID  = "objectId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// DateLayout is the timestamp format of the document store.
const DateLayout = "2006-01-02T15:04:05.000Z"

type State uint8

const (
	StateClean State = iota
	StateDirty
	StateSyncing
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateSyncing:
		return "syncing"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Record is the local representation of one remote document.
//
// opMu serializes every mutation and sync transition of the record and is
// held for the whole network call; mu guards the fields and is never held
// across I/O, so readers do not wait for the server.
type Record struct {
	opMu sync.Mutex
	mu   sync.RWMutex

	collection string
	endpoint   string
	validator  Validator

	id        string
	createdAt time.Time
	updatedAt time.Time

	data      map[string]any
	ops       map[string]Operation
	dirtyKeys []string

	syncing bool
	deleted bool
}

type Option func(*Record)

// WithValidator replaces DefaultValidator.
func WithValidator(v Validator) Option {
	return func(r *Record) {
		if v != nil {
			r.validator = v
		}
	}
}

// WithEndpoint overrides the default "classes/<collection>" resource path.
func WithEndpoint(endpoint string) Option {
	return func(r *Record) {
		r.endpoint = endpoint
	}
}

// New returns an empty, unpersisted record of the given collection.
func New(collection string, opts ...Option) *Record {
	r := &Record{
		collection: collection,
		endpoint:   "classes/" + collection,
		validator:  DefaultValidator(),
		data:       make(map[string]any),
		ops:        make(map[string]Operation),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Set replaces the value of key. A second Set on the same key before a sync
// fully supersedes the first.
func (r *Record) Set(key string, value any) error {
	if key == "" {
		return invalidArgument(CodeInvalidKeyName, "key may not be empty")
	}
	if value == nil {
		return invalidArgument(CodeIncorrectType, "value may not be nil")
	}
	if err := r.validator.ValidateKey(key); err != nil {
		return err
	}
	value = normalizeValue(value)
	if err := r.validator.ValidateValue(value); err != nil {
		return err
	}

	// The cycle check and the write must not interleave with another Set
	// nesting records, or two records could each pass and then hold the other.
	if mayNest(value) {
		nestingMu.Lock()
		defer nestingMu.Unlock()
		if refersTo(value, r) {
			return invalidArgument(CodeIncorrectType, "value for key %s contains the record itself", key)
		}
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.ops, key)
	delete(r.data, key)
	r.record(key, SetOperation{Value: value})
	return nil
}

// Remove deletes key locally. On a persisted record the deletion is queued
// for the server; otherwise the key simply disappears.
func (r *Record) Remove(key string) {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[key]; !ok {
		return
	}
	if r.id != "" {
		r.ops[key] = DeleteOperation{}
	} else {
		delete(r.ops, key)
	}
	delete(r.data, key)
	r.dirtyKeys = append(r.dirtyKeys, key)
}

// Increment adds amount to the value of key, treating a missing or
// non-numeric value as zero. The pending operation is replaced, not merged:
// two increments leave only the second pending while data reflects both.
func (r *Record) Increment(key string, amount any) error {
	if key == "" {
		return invalidArgument(CodeInvalidKeyName, "key may not be empty")
	}
	if err := r.validator.ValidateKey(key); err != nil {
		return err
	}
	if !isNumber(amount) {
		return invalidArgument(CodeIncorrectType, "increment amount must be a number, got %T", amount)
	}
	if !isFiniteNumber(amount) {
		return invalidArgument(CodeIncorrectType, "increment amount %v cannot be stored", amount)
	}

	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.record(key, IncrementOperation{Amount: amount})
	return nil
}

// IncrementOne is Increment(key, 1).
func (r *Record) IncrementOne(key string) error {
	return r.Increment(key, int64(1))
}

// Decrement is Increment(key, -1).
func (r *Record) Decrement(key string) error {
	return r.Increment(key, int64(-1))
}

// record installs op as the current operation of key and applies it to data.
// r.mu must be held for writing.
func (r *Record) record(key string, op Operation) {
	prev, hasPrev := r.data[key]
	value, present := applyOperation(op, prev, hasPrev)
	if present {
		r.data[key] = value
	} else {
		delete(r.data, key)
	}
	r.ops[key] = op
	r.dirtyKeys = append(r.dirtyKeys, key)
}

// ClearData resets the record to a fresh, unpersisted, empty state.
func (r *Record) ClearData() {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.data = make(map[string]any)
	r.ops = make(map[string]Operation)
	r.dirtyKeys = nil
	r.id = ""
	r.createdAt = time.Time{}
	r.updatedAt = time.Time{}
	r.deleted = false
}

// ApplyServerData overlays fields received from the server. Server-owned
// fields update identity and timestamps, everything else replaces data.
// Pending operations survive and are re-applied on top.
func (r *Record) ApplyServerData(fields map[string]any) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	return r.applyServerData(fields)
}

// applyServerData requires r.opMu.
func (r *Record) applyServerData(fields map[string]any) error {
	var (
		id                   string
		createdAt, updatedAt time.Time
		err                  error
	)
	if v, ok := fields[FieldObjectID]; ok {
		s, isString := v.(string)
		if !isString || s == "" {
			return malformedResponse("%s is not a string", FieldObjectID)
		}
		id = s
	}
	if v, ok := fields[FieldCreatedAt]; ok {
		if createdAt, err = parseDate(v); err != nil {
			return malformedResponse("%s: %v", FieldCreatedAt, err)
		}
	}
	if v, ok := fields[FieldUpdatedAt]; ok {
		if updatedAt, err = parseDate(v); err != nil {
			return malformedResponse("%s: %v", FieldUpdatedAt, err)
		}
	}

	data := make(map[string]any, len(fields))
	for k, v := range fields {
		switch k {
		case FieldObjectID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		data[k] = decodeServerValue(v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		r.id = id
		r.deleted = false
	}
	if !createdAt.IsZero() {
		r.createdAt = createdAt
	}
	if !updatedAt.IsZero() {
		r.updatedAt = updatedAt
	}
	r.data = data
	for key, op := range r.ops {
		prev, hasPrev := r.data[key]
		value, present := applyOperation(op, prev, hasPrev)
		if present {
			r.data[key] = value
		} else {
			delete(r.data, key)
		}
	}
	return nil
}

// Payload returns the wire object describing the pending changes: one entry
// per pending key, nested records contributing their own pending changes.
func (r *Record) Payload() map[string]any {
	return r.payload(make(map[*Record]struct{}))
}

func (r *Record) payload(seen map[*Record]struct{}) map[string]any {
	if _, ok := seen[r]; ok {
		return map[string]any{}
	}
	seen[r] = struct{}{}
	defer delete(seen, r)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]any, len(r.ops))
	for key, op := range r.ops {
		out[key] = encodeOperation(op, seen)
	}
	return out
}

// nestingMu serializes Sets whose value can hold records.
var nestingMu sync.Mutex

func mayNest(value any) bool {
	switch value.(type) {
	case *Record, []any, map[string]any:
		return true
	}
	return false
}

// refersTo reports whether target is reachable from value through nested
// records, lists or maps.
func refersTo(value any, target *Record) bool {
	return walkRecords(value, target, make(map[*Record]struct{}))
}

func walkRecords(value any, target *Record, visited map[*Record]struct{}) bool {
	switch v := value.(type) {
	case *Record:
		if v == target {
			return true
		}
		if _, ok := visited[v]; ok {
			return false
		}
		visited[v] = struct{}{}
		v.mu.RLock()
		values := make([]any, 0, len(v.data))
		for _, item := range v.data {
			values = append(values, item)
		}
		v.mu.RUnlock()
		for _, item := range values {
			if walkRecords(item, target, visited) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if walkRecords(item, target, visited) {
				return true
			}
		}
	case map[string]any:
		for _, item := range v {
			if walkRecords(item, target, visited) {
				return true
			}
		}
	}
	return false
}
