package muxcodec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		mpid    uint16
		mode    Mode
		payload []byte
	}{
		{"empty payload", 0, Initiator, []byte{}},
		{"chainsync findintersect", 2, Initiator, []byte{0x82, 0x04, 0x80}},
		{"responder mode", 10, Responder, []byte{0x01, 0x02, 0x03}},
		{"max mpid", 0x7FFF, Initiator, []byte{0xAA}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := Encode(0, tc.mpid, tc.mode, tc.payload)
			require.NoError(t, err)
			require.Len(t, buf, HeaderSize+len(tc.payload))

			seg, err := ReadSegment(bytes.NewReader(buf))
			require.NoError(t, err)
			assert.Equal(t, tc.mpid, seg.MiniProtocolID)
			assert.Equal(t, tc.mode, seg.Mode)
			assert.Equal(t, tc.payload, seg.Payload)
		})
	}
}

func TestReencodeYieldsSameBytesExceptTime(t *testing.T) {
	buf, err := Encode(12345, 2, Responder, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	seg, err := ReadSegment(bytes.NewReader(buf))
	require.NoError(t, err)

	reencoded, err := Encode(999, seg.MiniProtocolID, seg.Mode, seg.Payload)
	require.NoError(t, err)

	assert.Equal(t, buf[4:], reencoded[4:], "everything but transmissionTime must match")
	assert.NotEqual(t, buf[0:4], reencoded[0:4])
}

func TestPayloadLengthBoundaries(t *testing.T) {
	maxPayload := make([]byte, MaxPayload)
	_, err := Encode(0, 0, Initiator, maxPayload)
	assert.NoError(t, err)

	oversize := make([]byte, MaxPayload+1)
	_, err = Encode(0, 0, Initiator, oversize)
	require.Error(t, err)
}

func TestMiniProtocolIDBoundary(t *testing.T) {
	_, err := Encode(0, 0x8000, Initiator, nil)
	require.Error(t, err)
}

func TestEncodedWordLayout(t *testing.T) {
	buf, err := Encode(0, 10, Responder, []byte{0, 0, 0})
	require.NoError(t, err)

	// mode bit set, mpid=10 in bits 16..30, length=3 in bits 0..15.
	word := uint32(buf[4])<<24 | uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7])
	assert.Equal(t, uint32(1)<<31|uint32(10)<<16|uint32(3), word)
}

func TestDecodeTruncatedStreamFails(t *testing.T) {
	buf, err := Encode(0, 2, Initiator, []byte{1, 2, 3, 4})
	require.NoError(t, err)

	_, err = ReadSegment(bytes.NewReader(buf[:HeaderSize+2]))
	require.Error(t, err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "initiator", Initiator.String())
	assert.Equal(t, "responder", Responder.String())
}
