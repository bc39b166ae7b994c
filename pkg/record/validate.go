package record

import (
	"fmt"
	"reflect"
	"time"
)

// Validator decides which keys and values a record accepts. It is consulted
// synchronously by every mutation, before any state changes.
type Validator interface {
	ValidateKey(key string) error
	ValidateValue(value any) error
}

// Fields the server owns; they can never be written as data.
var defaultReservedKeys = []string{FieldObjectID, FieldCreatedAt, FieldUpdatedAt, "ACL", "className"}

type keyValidator struct {
	reserved map[string]struct{}
}

// NewValidator rejects the given reserved keys and any value whose type the
// document store cannot represent.
func NewValidator(reserved ...string) Validator {
	v := keyValidator{reserved: make(map[string]struct{}, len(reserved))}
	for _, k := range reserved {
		v.reserved[k] = struct{}{}
	}
	return v
}

// DefaultValidator reserves objectId, createdAt, updatedAt, ACL and className.
func DefaultValidator() Validator {
	return NewValidator(defaultReservedKeys...)
}

func (v keyValidator) ValidateKey(key string) error {
	if key == "" {
		return invalidArgument(CodeInvalidKeyName, "key may not be empty")
	}
	if _, ok := v.reserved[key]; ok {
		return invalidArgument(CodeInvalidKeyName, "reserved value for key: %s", key)
	}
	return nil
}

func (v keyValidator) ValidateValue(value any) error {
	return validateValue(value)
}

func validateValue(value any) error {
	switch val := value.(type) {
	case nil:
		return invalidArgument(CodeIncorrectType, "value may not be nil")
	case string, bool, time.Time, []byte, []string:
		return nil
	case *Record:
		if val == nil {
			return invalidArgument(CodeIncorrectType, "value may not be nil")
		}
		return nil
	case *File:
		if val == nil {
			return invalidArgument(CodeIncorrectType, "value may not be nil")
		}
		if !val.Uploaded() {
			return invalidArgument(CodeIncorrectType, "file %q must be saved before being set on a record", val.Name)
		}
		return nil
	case []any:
		for i, item := range val {
			if err := validateValue(item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	case map[string]any:
		for k, item := range val {
			if err := validateValue(item); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		return nil
	}
	if isNumber(value) {
		if !isFiniteNumber(value) {
			return invalidArgument(CodeIncorrectType, "number %v cannot be stored", value)
		}
		return nil
	}
	return invalidArgument(CodeIncorrectType, "invalid type for value: %T", value)
}

// normalizeValue copies typed slices, arrays and string-keyed maps into
// []any and map[string]any so they validate and encode like JSON lists and
// objects. []byte and []string are kept as they are.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case nil, string, bool, time.Time, []byte, []string, *Record, *File:
		return value
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalizeValue(item)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return value
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String || rv.IsNil() {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalizeValue(iter.Value().Interface())
		}
		return out
	}
	return value
}

// File references an asset already stored by the backend. Uploading is out
// of scope; a File without a URL has not been uploaded yet.
type File struct {
	Name string
	URL  string
}

func (f *File) Uploaded() bool {
	return f.URL != ""
}

func (f *File) encode() map[string]any {
	return map[string]any{"__type": "File", "name": f.Name, "url": f.URL}
}
