package cborcodec

import "fmt"

// AsArray returns v's elements if v decoded as a CBOR array.
func AsArray(v Value) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}

// AsUint64 returns v as an unsigned integer whether it holds a uint64
// (what the decoder produces for every non-negative CBOR integer) or a
// non-negative signed Go integer (int64, int). Negative values fail.
func AsUint64(v Value) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n >= 0 {
			return uint64(n), true
		}
	case uint:
		return uint64(n), true
	case int:
		if n >= 0 {
			return uint64(n), true
		}
	}
	return 0, false
}

// AsBytes returns v as a byte string.
func AsBytes(v Value) ([]byte, bool) {
	b, ok := v.([]byte)
	return b, ok
}

// AsBool returns v as a boolean.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// AsText returns v as a text string.
func AsText(v Value) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// ArrayTag returns the first element of a CBOR array as a uint64 tag,
// the shape every mini-protocol message uses: [tag, field...].
func ArrayTag(v Value) (uint64, []any, bool) {
	arr, ok := AsArray(v)
	if !ok || len(arr) == 0 {
		return 0, nil, false
	}
	tag, ok := AsUint64(arr[0])
	if !ok {
		return 0, nil, false
	}
	return tag, arr[1:], true
}

// Describe renders a Value's dynamic Go type for diagnostics.
func Describe(v Value) string {
	return fmt.Sprintf("%T", v)
}
