// Package peersharing implements the optional PeerSharing
// mini-protocol (mpid=10): request a batch of peer addresses and
// parse whatever IPv4/IPv6 entries the responder returns, per
// spec.md §4.7. A reply may never arrive; callers are expected to
// treat failures here as non-fatal, per spec.md §4.8/§7.
package peersharing

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ouroboros-ntn/ntnclient/pkg/cborcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/muxcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"github.com/ouroboros-ntn/ntnclient/pkg/protocol"
	"go.uber.org/zap"
)

const (
	tagShareRequest = 0
	tagSharePeers   = 1
	tagDone         = 2
)

// DefaultAmount is the middle of the spec's suggested 8-25 request
// range.
const DefaultAmount uint8 = 16

// Collector accumulates peer addresses discovered over the lifetime
// of a connection, deduplicating by ip:port through an LRU cache and
// ignoring any address once cap entries are held — so a relay that
// resends (or a second SharePeers exchange) never grows the output
// past the configured cap and never yields a duplicate entry.
type Collector struct {
	cap     int
	cache   *lru.Cache
	ordered []ntn.PeerAddress
}

// NewCollector builds a Collector bounded to cap entries. A cap of zero
// or less falls back to DefaultAmount (16).
func NewCollector(cap int) (*Collector, error) {
	if cap <= 0 {
		cap = int(DefaultAmount)
	}
	cache, err := lru.New(cap)
	if err != nil {
		return nil, ntn.WrapError(ntn.KindIo, "peer cache init failed", err)
	}
	return &Collector{cap: cap, cache: cache}, nil
}

// Peers returns the addresses accumulated so far, in discovery order.
func (c *Collector) Peers() []ntn.PeerAddress {
	out := make([]ntn.PeerAddress, len(c.ordered))
	copy(out, c.ordered)
	return out
}

func (c *Collector) add(addr ntn.PeerAddress) {
	if len(c.ordered) >= c.cap {
		return
	}
	key := fmt.Sprintf("%s:%d", addr.IP(), addr.Port)
	if c.cache.Contains(key) {
		return
	}
	c.cache.Add(key, addr)
	c.ordered = append(c.ordered, addr)
}

// Run sends MsgShareRequest with the given amount and, if a
// MsgSharePeers reply arrives before timeout, parses it into the
// collector. It returns an error whenever no usable reply was
// obtained (timeout, decode failure, or an unexpected message) — the
// caller decides whether that is fatal; per spec.md it never is for
// this mini-protocol.
// ctx is the orchestrator's errgroup.WithContext group context: it is
// canceled the moment the sibling ChainSync goroutine returns its
// (required, fatal) error, so this best-effort call stops waiting
// immediately instead of riding out its own timeout.
func Run(ctx context.Context, d *protocol.Dispatcher, amount uint8, collector *Collector, timeout time.Duration, logger *zap.Logger) error {
	mailbox := d.Register(protocol.PeerSharing, muxcodec.Responder)
	defer d.Unregister(protocol.PeerSharing, muxcodec.Responder)

	payload, err := cborcodec.EncodeArray(uint64(tagShareRequest), amount)
	if err != nil {
		return err
	}
	if err := d.Send(protocol.PeerSharing, payload); err != nil {
		return err
	}
	logger.Debug("sent MsgShareRequest", zap.Uint8("amount", amount))

	select {
	case msg := <-mailbox:
		if msg.Err != nil {
			return ntn.Coerce(msg.Err, ntn.KindIo, "peersharing reply delivery failed")
		}
		return interpret(msg.Value, collector, logger)
	case <-time.After(timeout):
		return ntn.ScopedError(ntn.KindTimeout, "peersharing", "no SharePeers reply", nil)
	case <-ctx.Done():
		return ntn.WrapError(ntn.KindProtocol, "peersharing aborted by sibling failure", ctx.Err())
	}
}

func interpret(value cborcodec.Value, collector *Collector, logger *zap.Logger) error {
	tag, rest, ok := cborcodec.ArrayTag(value)
	if !ok {
		return protocol.ErrUnexpectedShape(protocol.PeerSharing, "reply is not a tagged array")
	}

	switch tag {
	case tagSharePeers:
		if len(rest) == 0 {
			return protocol.ErrUnexpectedShape(protocol.PeerSharing, "SharePeers missing address list")
		}
		entries, ok := cborcodec.AsArray(rest[0])
		if !ok {
			return protocol.ErrUnexpectedShape(protocol.PeerSharing, "SharePeers address list is not an array")
		}
		for _, entry := range entries {
			addr, ok := parseEntry(entry)
			if !ok {
				logger.Warn("skipping unparsable peer-sharing entry", zap.String("shape", cborcodec.Describe(entry)))
				continue
			}
			collector.add(addr)
		}
		return nil
	case tagDone:
		return nil
	default:
		return protocol.ErrUnexpectedShape(protocol.PeerSharing, "unexpected peersharing tag")
	}
}

func parseEntry(value cborcodec.Value) (ntn.PeerAddress, bool) {
	arr, ok := cborcodec.AsArray(value)
	if !ok || len(arr) == 0 {
		return ntn.PeerAddress{}, false
	}
	kind, ok := cborcodec.AsUint64(arr[0])
	if !ok {
		return ntn.PeerAddress{}, false
	}

	switch {
	case kind == 0 && len(arr) == 3:
		addr32, ok1 := cborcodec.AsUint64(arr[1])
		port, ok2 := cborcodec.AsUint64(arr[2])
		if !ok1 || !ok2 {
			return ntn.PeerAddress{}, false
		}
		return ntn.PeerAddress{IsIPv6: false, V4Addr: uint32(addr32), Port: uint16(port)}, true

	case kind == 1 && len(arr) == 6:
		words := [4]uint32{}
		for i := 0; i < 4; i++ {
			w, ok := cborcodec.AsUint64(arr[1+i])
			if !ok {
				return ntn.PeerAddress{}, false
			}
			words[i] = uint32(w)
		}
		port, ok := cborcodec.AsUint64(arr[5])
		if !ok {
			return ntn.PeerAddress{}, false
		}
		return ntn.PeerAddress{IsIPv6: true, V6Words: words, Port: uint16(port)}, true

	default:
		return ntn.PeerAddress{}, false
	}
}
