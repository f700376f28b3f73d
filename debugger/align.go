package debugger

import (
	"golang.org/x/exp/constraints"

	"github.com/wnxd/memdbg/encoding"
)

// Convert returns v as T, sign extending signed integers from the width of
// the value's memory type.
func Convert[T constraints.Integer | constraints.Float](v encoding.Value) T {
	var zero T
	switch any(zero).(type) {
	case float32, float64:
		return T(v.Float())
	case int, int8, int16, int32, int64:
		return T(v.Int())
	}
	return T(v.Uint())
}

// Plausible reports whether addr lies in the user mode range a pointer
// chain is expected to walk through. Resolution never checks this itself.
func Plausible(addr uint64) bool {
	return addr > 0x10000 && addr < 0x000F000000000000
}
