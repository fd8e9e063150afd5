// Package cborcodec provides the definite-length CBOR encoding the
// Ouroboros mini-protocols require for every client-originated
// message (spec.md §4.3). Relays drop connections on indefinite-length
// proposals, so the encode mode below is configured to refuse to emit
// one; decoding tolerates either form, since relays may emit both.
package cborcodec

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
)

// Value is the dynamic, tagged CBOR value decoded messages are handed
// to each mini-protocol's state machine as. Concretely it's whatever
// fxamacker/cbor decodes a value into: uint64/int64, bool, []byte,
// string, []interface{}, or map[interface{}]interface{}.
type Value = interface{}

var encMode = mustEncMode()

var decMode = mustDecMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.EncOptions{
		// The one load-bearing setting: never emit 0x9F/0xBF/0x5F/0x7F.
		// fxamacker's Marshal of concrete Go values is definite-length
		// by construction, but this makes the requirement explicit and
		// fails fast if a future encoder option would violate it.
		IndefLength: cbor.IndefLengthForbidden,
		Sort:        cbor.SortNone,
	}
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	opts := cbor.DecOptions{
		// Accept whatever shape a relay sends; only outbound framing
		// is constrained.
		IndefLength: cbor.IndefLengthAllowed,
	}
	mode, err := opts.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}

// EncodeArray encodes a fixed-length CBOR array, the shape every
// client-originated mini-protocol message takes: [tag, field...].
func EncodeArray(items ...any) ([]byte, error) {
	out, err := encMode.Marshal(items)
	if err != nil {
		return nil, ntn.WrapError(ntn.KindCbor, "encode array", err)
	}
	return out, nil
}

// Encode marshals an arbitrary definite-length-constrained value.
func Encode(v any) ([]byte, error) {
	out, err := encMode.Marshal(v)
	if err != nil {
		return nil, ntn.WrapError(ntn.KindCbor, "encode value", err)
	}
	return out, nil
}

// Decode parses data into a dynamic Value.
func Decode(data []byte) (Value, error) {
	var v any
	if err := decMode.Unmarshal(data, &v); err != nil {
		return nil, ntn.WrapError(ntn.KindCbor, "decode value", err)
	}
	return v, nil
}
