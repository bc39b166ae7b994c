package record

import (
	"encoding/json"
	"math"
)

func isNumber(v any) bool {
	_, isInt := toInt64(v)
	_, isFloat := toFloat64(v)
	return isInt || isFloat
}

// isFiniteNumber rejects NaN and infinities, which have no JSON encoding.
func isFiniteNumber(v any) bool {
	f, ok := toFloat64(v)
	return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// toInt64 succeeds only for integral values; floats are not truncated.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// addNumbers keeps integer arithmetic when both sides are integral.
// A non-numeric prev counts as zero.
func addNumbers(prev, amount any) any {
	if !isNumber(prev) {
		prev = int64(0)
	}
	a, aInt := toInt64(prev)
	b, bInt := toInt64(amount)
	if aInt && bInt {
		sum := a + b
		if (b > 0 && sum < a) || (b < 0 && sum > a) {
			return float64(a) + float64(b)
		}
		return sum
	}
	fa, _ := toFloat64(prev)
	fb, _ := toFloat64(amount)
	return fa + fb
}
