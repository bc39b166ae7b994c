package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"
	"github.com/zeusync/docsync/pkg/record"
)

type document struct {
	fields    map[string]any
	createdAt time.Time
	updatedAt time.Time
}

// shard owns a slice of the key space and its own lock
type shard struct {
	mu   sync.RWMutex
	docs map[string]*document
}

// Store is an in-memory document store. Documents are spread over shards by
// the xxhash of "<class>/<id>", so unrelated documents never share a lock.
type Store struct {
	shards []*shard
	count  atomic.Int64
	now    func() time.Time
}

func NewStore(shardCount int) *Store {
	if shardCount <= 0 {
		shardCount = 16
	}
	s := &Store{
		shards: make([]*shard, shardCount),
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
	for i := range s.shards {
		s.shards[i] = &shard{docs: make(map[string]*document)}
	}
	return s
}

func storeKey(class, id string) string {
	return class + "/" + id
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Create stores a new document built from ops and returns its id.
func (s *Store) Create(class string, ops map[string]any) (string, time.Time, error) {
	fields := make(map[string]any, len(ops))
	if err := applyOps(fields, ops); err != nil {
		return "", time.Time{}, err
	}

	id := ulid.Make().String()
	now := s.now()
	key := storeKey(class, id)

	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.docs[key] = &document{fields: fields, createdAt: now, updatedAt: now}
	sh.mu.Unlock()

	s.count.Add(1)
	return id, now, nil
}

// Update applies ops to an existing document. A failed update changes nothing.
func (s *Store) Update(class, id string, ops map[string]any) (time.Time, error) {
	key := storeKey(class, id)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	doc, ok := sh.docs[key]
	if !ok {
		return time.Time{}, ErrObjectNotFound
	}

	fields := make(map[string]any, len(doc.fields))
	for k, v := range doc.fields {
		fields[k] = v
	}
	if err := applyOps(fields, ops); err != nil {
		return time.Time{}, err
	}

	doc.fields = fields
	doc.updatedAt = s.now()
	return doc.updatedAt, nil
}

func (s *Store) Delete(class, id string) error {
	key := storeKey(class, id)
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.docs[key]; !ok {
		return ErrObjectNotFound
	}
	delete(sh.docs, key)
	s.count.Add(-1)
	return nil
}

// Get returns a copy of the document including its server-owned fields.
func (s *Store) Get(class, id string) (map[string]any, error) {
	key := storeKey(class, id)
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	doc, ok := sh.docs[key]
	if !ok {
		return nil, ErrObjectNotFound
	}

	out := make(map[string]any, len(doc.fields)+3)
	for k, v := range doc.fields {
		out[k] = v
	}
	out[record.FieldObjectID] = id
	out[record.FieldCreatedAt] = record.FormatDate(doc.createdAt)
	out[record.FieldUpdatedAt] = record.FormatDate(doc.updatedAt)
	return out, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	return int(s.count.Load())
}

// applyOps interprets a pending-changes payload: raw values are set,
// {"__op": ...} objects increment or delete.
func applyOps(fields map[string]any, ops map[string]any) error {
	for key, value := range ops {
		switch key {
		case record.FieldObjectID, record.FieldCreatedAt, record.FieldUpdatedAt:
			return fmt.Errorf("%w: %s", ErrReservedKey, key)
		}

		obj, isObject := value.(map[string]any)
		if !isObject {
			fields[key] = value
			continue
		}
		op, hasOp := obj["__op"]
		if !hasOp {
			fields[key] = value
			continue
		}

		switch op {
		case "Increment":
			sum, err := addNumbers(fields[key], obj["amount"])
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidOperation, key, err)
			}
			fields[key] = sum
		case "Delete":
			delete(fields, key)
		default:
			return fmt.Errorf("%w: %v", ErrInvalidOperation, op)
		}
	}
	return nil
}

func addNumbers(current, amount any) (json.Number, error) {
	a, err := asNumber(amount)
	if err != nil {
		return "", err
	}
	c, err := asNumber(current)
	if err != nil {
		c = "0"
	}

	ci, cErr := c.Int64()
	ai, aErr := a.Int64()
	if cErr == nil && aErr == nil {
		return json.Number(strconv.FormatInt(ci+ai, 10)), nil
	}
	cf, _ := c.Float64()
	af, _ := a.Float64()
	return json.Number(strconv.FormatFloat(cf+af, 'g', -1, 64)), nil
}

func asNumber(v any) (json.Number, error) {
	switch n := v.(type) {
	case json.Number:
		return n, nil
	case float64:
		return json.Number(strconv.FormatFloat(n, 'g', -1, 64)), nil
	case int:
		return json.Number(strconv.Itoa(n)), nil
	case int64:
		return json.Number(strconv.FormatInt(n, 10)), nil
	default:
		return "", fmt.Errorf("not a number: %T", v)
	}
}
