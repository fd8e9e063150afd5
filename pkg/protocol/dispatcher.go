// Package protocol routes decoded mux segments to the mini-protocol
// state machine registered for their (mini-protocol id, mode) pair,
// per spec.md §4.4, and serializes outbound writes so only one writer
// ever touches the shared connection.
package protocol

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ouroboros-ntn/ntnclient/pkg/cborcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/muxcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"go.uber.org/zap"
)

// Mini-protocol ids this client speaks.
const (
	Handshake   uint16 = 0
	ChainSync   uint16 = 2
	PeerSharing uint16 = 10
)

// Inbound is what a mailbox delivers: either a decoded CBOR value or a
// decode/framing error for that segment.
type Inbound struct {
	Value cborcodec.Value
	Err   error
}

type key struct {
	mpid uint16
	mode muxcodec.Mode
}

// Dispatcher demultiplexes inbound segments into per-(mpid,mode)
// mailboxes and serializes outbound segment writes. There is exactly
// one reader (Run) and any number of mini-protocol goroutines writing
// through Send, guarded by a single mutex, matching the cooperative
// concurrency model in spec.md §5.
type Dispatcher struct {
	rw     io.ReadWriter
	logger *zap.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	mailboxes map[key]chan Inbound

	fatal chan error
}

// NewDispatcher builds a dispatcher over rw (typically a
// *transport.Connection).
func NewDispatcher(rw io.ReadWriter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		rw:        rw,
		logger:    logger,
		mailboxes: make(map[key]chan Inbound),
		fatal:     make(chan error, 1),
	}
}

// Register opens a single-producer/single-consumer mailbox for
// (mpid, mode). Each mini-protocol has exactly one in-flight request
// at a time, so a mailbox of capacity 1 is sufficient.
func (d *Dispatcher) Register(mpid uint16, mode muxcodec.Mode) <-chan Inbound {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan Inbound, 1)
	d.mailboxes[key{mpid, mode}] = ch
	return ch
}

// Unregister closes a mailbox; any segment subsequently received for
// that (mpid,mode) is discarded. Used to close the handshake mailbox
// after acceptance, per spec.md §9.
func (d *Dispatcher) Unregister(mpid uint16, mode muxcodec.Mode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := key{mpid, mode}
	if ch, ok := d.mailboxes[k]; ok {
		delete(d.mailboxes, k)
		close(ch)
	}
}

// Send encodes payload as mpid/mode on the Initiator side and writes
// it, serialized against any concurrent Send.
func (d *Dispatcher) Send(mpid uint16, payload []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	segment, err := muxcodec.Encode(uint32(time.Now().UnixMicro()), mpid, muxcodec.Initiator, payload)
	if err != nil {
		return err
	}
	if _, err := d.rw.Write(segment); err != nil {
		return err
	}
	return nil
}

// Run drives the single reader loop: decode one SDU, CBOR-decode its
// payload, and deliver it to the registered mailbox for (mpid, mode).
// Unknown (mpid, mode) pairs are discarded with a warn log. Run
// returns (only) on a fatal framing/IO error or when ctx-like
// cancellation closes the underlying connection out from under it.
func (d *Dispatcher) Run() error {
	for {
		segment, err := muxcodec.ReadSegment(d.rw)
		if err != nil {
			d.broadcastFatal(err)
			return err
		}

		value, decodeErr := cborcodec.Decode(segment.Payload)

		d.mu.Lock()
		ch, ok := d.mailboxes[key{segment.MiniProtocolID, segment.Mode}]
		d.mu.Unlock()

		if !ok {
			d.logger.Warn("discarding segment for unregistered mini-protocol",
				zap.Uint16("mpid", segment.MiniProtocolID),
				zap.String("mode", segment.Mode.String()))
			continue
		}

		msg := Inbound{Value: value, Err: decodeErr}
		select {
		case ch <- msg:
		default:
			d.logger.Warn("mailbox full, dropping segment",
				zap.Uint16("mpid", segment.MiniProtocolID))
		}
	}
}

// broadcastFatal wakes every registered mini-protocol mailbox with err
// so a dead connection is observed at the next suspension point
// instead of only after that protocol's own timeout elapses.
func (d *Dispatcher) broadcastFatal(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, ch := range d.mailboxes {
		select {
		case ch <- Inbound{Err: err}:
		default:
		}
		delete(d.mailboxes, k)
	}
}

// ErrUnexpectedShape is a convenience constructor for a ProtocolError
// raised when a decoded value doesn't match what a mini-protocol
// expected at a given step.
func ErrUnexpectedShape(mpid uint16, detail string) error {
	return ntn.ScopedError(ntn.KindProtocol, fmt.Sprintf("mpid=%d", mpid), detail, nil)
}
