package record

import (
	"fmt"
	"sort"
	"time"
)

func (r *Record) ID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.id
}

func (r *Record) Collection() string {
	return r.collection
}

func (r *Record) Endpoint() string {
	return r.endpoint
}

func (r *Record) CreatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.createdAt
}

func (r *Record) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

// IsDirty reports whether at least one mutation is waiting to be synced.
func (r *Record) IsDirty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops) > 0
}

func (r *Record) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.syncing:
		return StateSyncing
	case len(r.ops) > 0:
		return StateDirty
	case r.deleted:
		return StateDeleted
	default:
		return StateClean
	}
}

// PendingOperation returns the operation that the next sync sends for key.
func (r *Record) PendingOperation(key string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[key]
	return op, ok
}

// PendingKeys returns the keys with a pending operation, sorted.
func (r *Record) PendingKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.ops))
	for k := range r.ops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DirtyKeys returns every key touched since the last sync, in order and with
// repetitions.
func (r *Record) DirtyKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.dirtyKeys...)
}

// HasSameID reports whether both records refer to the same persisted document.
func (r *Record) HasSameID(other *Record) bool {
	if other == nil {
		return false
	}
	id := r.ID()
	return id != "" && r.collection == other.collection && id == other.ID()
}

// Keys returns the keys present in data, sorted.
func (r *Record) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.data))
	for k := range r.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

func (r *Record) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	return v, ok
}

func (r *Record) GetString(key string) string {
	v, _ := r.Get(key)
	s, _ := v.(string)
	return s
}

func (r *Record) GetBool(key string) bool {
	v, _ := r.Get(key)
	b, _ := v.(bool)
	return b
}

// GetNumber returns the raw numeric value of key.
func (r *Record) GetNumber(key string) (any, bool) {
	v, ok := r.Get(key)
	if !ok || !isNumber(v) {
		return nil, false
	}
	return v, true
}

func (r *Record) GetInt64(key string) int64 {
	v, _ := r.Get(key)
	if i, ok := toInt64(v); ok {
		return i
	}
	f, _ := toFloat64(v)
	return int64(f)
}

func (r *Record) GetInt(key string) int {
	return int(r.GetInt64(key))
}

func (r *Record) GetFloat64(key string) float64 {
	v, _ := r.Get(key)
	f, _ := toFloat64(v)
	return f
}

// GetDate accepts time values as well as timestamps in the store's format.
func (r *Record) GetDate(key string) (time.Time, bool) {
	v, ok := r.Get(key)
	if !ok {
		return time.Time{}, false
	}
	t, err := parseDate(v)
	return t, err == nil
}

func (r *Record) GetRecord(key string) *Record {
	v, _ := r.Get(key)
	nested, _ := v.(*Record)
	return nested
}

func (r *Record) GetList(key string) []any {
	v, _ := r.Get(key)
	list, _ := v.([]any)
	return list
}

func (r *Record) GetMap(key string) map[string]any {
	v, _ := r.Get(key)
	m, _ := v.(map[string]any)
	return m
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func parseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		return time.Parse(time.RFC3339Nano, d)
	case map[string]any:
		if d["__type"] == "Date" {
			if iso, ok := d["iso"].(string); ok {
				return time.Parse(time.RFC3339Nano, iso)
			}
		}
	}
	return time.Time{}, fmt.Errorf("not a date: %T", v)
}

// decodeServerValue turns typed wire objects back into local values.
func decodeServerValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		switch val["__type"] {
		case "Date":
			if t, err := parseDate(val); err == nil {
				return t
			}
		case "File":
			name, _ := val["name"].(string)
			url, _ := val["url"].(string)
			return &File{Name: name, URL: url}
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = decodeServerValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = decodeServerValue(item)
		}
		return out
	default:
		return v
	}
}
