// Package muxcodec implements the 8-byte Segment Data Unit (SDU)
// header used to multiplex Ouroboros mini-protocols over one TCP
// connection, per spec.md §4.2. It fragments nothing: every segment
// it emits or accepts carries a single, complete payload of at most
// 65535 bytes.
package muxcodec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
)

// Mode distinguishes which half of the duplex conversation a segment
// belongs to.
type Mode uint8

const (
	Initiator Mode = 0
	Responder Mode = 1
)

func (m Mode) String() string {
	if m == Responder {
		return "responder"
	}
	return "initiator"
}

// MaxPayload is the largest payload a segment may carry; the 16-bit
// length field forbids anything larger.
const MaxPayload = 65535

// HeaderSize is the fixed size of an SDU header.
const HeaderSize = 8

// Segment is a decoded mux SDU. It is transient: materialized only
// during encode/decode, never held onto by the dispatcher.
type Segment struct {
	TransmissionTime uint32
	Mode             Mode
	MiniProtocolID   uint16 // 0..32767
	Payload          []byte
}

// Encode packs mpid, mode and payload into an 8-byte header followed
// by the payload, per the bit layout in spec.md §4.2:
//
//	offset 4, as a big-endian uint32: (mode<<31) | (mpid<<16) | length
func Encode(transmissionTime uint32, mpid uint16, mode Mode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, ntn.NewError(ntn.KindFraming, fmt.Sprintf("payload of %d bytes exceeds max segment size %d", len(payload), MaxPayload))
	}
	if mpid > 0x7FFF {
		return nil, ntn.NewError(ntn.KindFraming, fmt.Sprintf("mini-protocol id %d exceeds 15 bits", mpid))
	}

	out := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], transmissionTime)

	word := uint32(mpid&0x7FFF) << 16
	word |= uint32(len(payload)) & 0xFFFF
	if mode == Responder {
		word |= 1 << 31
	}
	binary.BigEndian.PutUint32(out[4:8], word)

	copy(out[HeaderSize:], payload)
	return out, nil
}

// ReadSegment blocks on r until a complete SDU (header plus declared
// payload length) has arrived, then returns it decoded. It returns a
// *ntn.Error with Kind FramingError if the stream cannot make
// progress, and the reader's own error (commonly io.EOF) otherwise.
func ReadSegment(r io.Reader) (*Segment, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	transmissionTime := binary.BigEndian.Uint32(header[0:4])
	word := binary.BigEndian.Uint32(header[4:8])

	mode := Initiator
	if word&(1<<31) != 0 {
		mode = Responder
	}
	mpid := uint16((word >> 16) & 0x7FFF)
	length := uint16(word & 0xFFFF)

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, ntn.WrapError(ntn.KindFraming, "truncated segment payload", err)
		}
	}

	return &Segment{
		TransmissionTime: transmissionTime,
		Mode:             mode,
		MiniProtocolID:   mpid,
		Payload:          payload,
	}, nil
}
