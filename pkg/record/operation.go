package record

// Operation is one pending mutation on one key. The set of operations is
// closed: SetOperation, IncrementOperation and DeleteOperation.
type Operation interface {
	Kind() OperationKind
	operation()
}

type OperationKind uint8

const (
	KindSet OperationKind = iota
	KindIncrement
	KindDelete
)

func (k OperationKind) String() string {
	switch k {
	case KindSet:
		return "Set"
	case KindIncrement:
		return "Increment"
	case KindDelete:
		return "Delete"
	default:
		return "unknown"
	}
}

// SetOperation replaces the value of a key.
type SetOperation struct {
	Value any
}

// IncrementOperation adds Amount to the current numeric value.
type IncrementOperation struct {
	Amount any
}

// DeleteOperation removes the key from server state on the next sync.
type DeleteOperation struct{}

func (SetOperation) Kind() OperationKind       { return KindSet }
func (IncrementOperation) Kind() OperationKind { return KindIncrement }
func (DeleteOperation) Kind() OperationKind    { return KindDelete }

func (SetOperation) operation()       {}
func (IncrementOperation) operation() {}
func (DeleteOperation) operation()    {}

// Wire markers.
const (
	opField         = "__op"
	opIncrement     = "Increment"
	opDelete        = "Delete"
	incrementAmount = "amount"
)

// applyOperation returns the new local value of a key. present=false means
// the key must be absent afterwards.
func applyOperation(op Operation, prev any, hasPrev bool) (value any, present bool) {
	switch o := op.(type) {
	case SetOperation:
		return o.Value, true
	case IncrementOperation:
		if !hasPrev {
			prev = nil
		}
		return addNumbers(prev, o.Amount), true
	case DeleteOperation:
		return nil, false
	default:
		panic("record: unknown operation")
	}
}

// encodeOperation produces the wire value of op. seen guards against
// revisiting a nested record while building one payload.
func encodeOperation(op Operation, seen map[*Record]struct{}) any {
	switch o := op.(type) {
	case SetOperation:
		return encodeValue(o.Value, seen)
	case IncrementOperation:
		return map[string]any{opField: opIncrement, incrementAmount: o.Amount}
	case DeleteOperation:
		return map[string]any{opField: opDelete}
	default:
		panic("record: unknown operation")
	}
}

// encodeValue passes raw values through and replaces nested records with
// their own pending-changes payload.
func encodeValue(v any, seen map[*Record]struct{}) any {
	switch val := v.(type) {
	case *Record:
		return val.payload(seen)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encodeValue(item, seen)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = encodeValue(item, seen)
		}
		return out
	case *File:
		return val.encode()
	default:
		return v
	}
}
