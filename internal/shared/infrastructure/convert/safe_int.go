// Package convert provides overflow-checked integer conversions.
package convert

import (
	"fmt"
	"math"
)

// IntToUint converts an int to uint, returning an error if negative.
func IntToUint(v int) (uint, error) {
	if v < 0 {
		return 0, fmt.Errorf("cannot convert negative int to uint: %d", v)
	}
	return uint(v), nil
}

// IntToUintSafe converts an int to uint, panicking if negative. Use only
// for values guaranteed non-negative by the caller.
func IntToUintSafe(v int) uint {
	if v < 0 {
		panic(fmt.Sprintf("cannot convert negative int to uint: %d", v))
	}
	return uint(v)
}

// IntToInt32Clamped converts an int to int32, clamping on overflow. Use
// when truncation is acceptable, such as counters.
func IntToInt32Clamped(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
