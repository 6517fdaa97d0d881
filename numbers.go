package conformance

import (
	"fmt"
	"math"
	"reflect"
)

func IsNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func IsInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return v == float32(math.Trunc(float64(v)))
	case float64:
		return value == math.Trunc(v)
	default:
		return false
	}
}

func ToFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case int, int8, int16, int32, int64:
		return float64(reflect.ValueOf(v).Int()), nil
	case uint, uint8, uint16, uint32, uint64:
		return float64(reflect.ValueOf(v).Uint()), nil
	case float32, float64:
		return reflect.ValueOf(v).Float(), nil
	default:
		return 0, fmt.Errorf("unsupported type: %s", reflect.TypeOf(value))
	}
}

// IsMultipleOf reports whether value is a whole multiple of m, with a
// magnitude-relative tolerance so float products such as 0.3 still count as
// multiples of 0.1.
func IsMultipleOf(value, m float64) bool {
	if m == 0 {
		return false
	}
	tolerance := 1e-9 * math.Max(1, math.Abs(value))
	return math.Abs(math.Remainder(value, m)) < tolerance
}

func RemovePointer[T bool | float64 | int64 | uint64](value *T) T {
	var res T
	if value == nil {
		return res
	}
	return *value
}
