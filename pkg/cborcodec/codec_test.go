package cborcodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeArrayRoundTrip(t *testing.T) {
	data, err := EncodeArray(uint64(4), []any{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x04, 0x80}, data, "MsgFindIntersect=[4,[]] per spec.md §6")

	v, err := Decode(data)
	require.NoError(t, err)
	tag, rest, ok := ArrayTag(v)
	require.True(t, ok)
	assert.Equal(t, uint64(4), tag)
	arr, ok := AsArray(rest[0])
	require.True(t, ok)
	assert.Empty(t, arr)
}

func TestEncoderNeverEmitsIndefiniteMarkers(t *testing.T) {
	shapes := []any{
		[]any{},
		[]any{uint64(1), uint64(2), uint64(3)},
		map[uint64][]any{14: {uint64(1), true, uint8(0), false}},
		[]byte(make([]byte, 300)),
		"a text string",
	}
	indefMarkers := []byte{0x9F, 0xBF, 0x7F, 0x5F}

	for _, shape := range shapes {
		data, err := Encode(shape)
		require.NoError(t, err)
		for _, m := range indefMarkers {
			assert.False(t, bytes.Contains(data, []byte{m}),
				"encoded output for %#v must never contain indefinite marker 0x%X", shape, m)
		}
	}
}

func TestDecodeAcceptsVariousShapes(t *testing.T) {
	for _, v := range []any{
		uint64(42),
		true,
		false,
		[]byte{1, 2, 3},
		"hello",
		[]any{uint64(1), uint64(2)},
	} {
		data, err := Encode(v)
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err)
		assert.EqualValues(t, v, got)
	}
}

func TestAsUint64AcceptsSignedAndUnsigned(t *testing.T) {
	n, ok := AsUint64(uint64(5))
	assert.True(t, ok)
	assert.Equal(t, uint64(5), n)

	n, ok = AsUint64(int64(7))
	assert.True(t, ok)
	assert.Equal(t, uint64(7), n)

	_, ok = AsUint64(int64(-1))
	assert.False(t, ok)

	_, ok = AsUint64("nope")
	assert.False(t, ok)
}

func TestArrayTagOnEmptyArrayFails(t *testing.T) {
	_, _, ok := ArrayTag([]any{})
	assert.False(t, ok)
}

func TestVersionDataArrayShape(t *testing.T) {
	// Version data for V14/V15 on mainnet per spec.md §6:
	// [0x1A 0x2D 0x96 0x4A 0x09, F4|F5, 0x00|0x01, F4] inside 0x84.
	data, err := EncodeArray(uint64(764824073), false, uint8(1), false)
	require.NoError(t, err)
	assert.Equal(t, byte(0x84), data[0])
	assert.Equal(t, []byte{0x1A, 0x2D, 0x96, 0x4A, 0x09}, data[1:6])
	assert.Equal(t, byte(0xF4), data[6])
}
