// Package chainsync implements the one-shot intersect-query flow of
// the ChainSync mini-protocol (mpid=2): find an intersection against
// an empty point list purely to learn the producer's current tip, per
// spec.md §4.6. Following the chain further is out of scope.
package chainsync

import (
	"context"
	"time"

	"github.com/ouroboros-ntn/ntnclient/pkg/cborcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/muxcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"github.com/ouroboros-ntn/ntnclient/pkg/protocol"
	"go.uber.org/zap"
)

const (
	tagFindIntersect     = 4
	tagIntersectFound    = 5
	tagIntersectNotFound = 6
)

// Run sends MsgFindIntersect with an empty point list and returns the
// tip extracted from whichever single reply the responder sends.
//
// spec.md §9 notes that two source implementations disagree on
// whether tag 5 or tag 6 means "found" — this code does not need to
// resolve that ambiguity: the tip is always the last element of the
// reply array, which is the same regardless of which tag is which.
// ctx is the orchestrator's errgroup.WithContext group context. The
// orchestrator's PeerSharing leg never returns an error, so ctx is not
// canceled by it while this call waits; a cancellation of ctx from any
// other source stops the wait immediately instead of riding out the
// timeout.
func Run(ctx context.Context, d *protocol.Dispatcher, timeout time.Duration, logger *zap.Logger) (*ntn.Tip, error) {
	mailbox := d.Register(protocol.ChainSync, muxcodec.Responder)
	defer d.Unregister(protocol.ChainSync, muxcodec.Responder)

	payload, err := cborcodec.EncodeArray(uint64(tagFindIntersect), []any{})
	if err != nil {
		return nil, err
	}
	if err := d.Send(protocol.ChainSync, payload); err != nil {
		return nil, err
	}
	logger.Debug("sent MsgFindIntersect with empty point list")

	select {
	case msg := <-mailbox:
		if msg.Err != nil {
			return nil, ntn.Coerce(msg.Err, ntn.KindIo, "chainsync reply delivery failed")
		}
		tip, err := interpret(msg.Value)
		if err != nil {
			return nil, err
		}
		logger.Info("chainsync tip received", zap.Bool("matchedShape", tip.Matched))
		return tip, nil
	case <-time.After(timeout):
		return nil, ntn.ScopedError(ntn.KindTimeout, "chainsync", "no reply to MsgFindIntersect", nil)
	case <-ctx.Done():
		return nil, ntn.WrapError(ntn.KindProtocol, "chainsync aborted by sibling failure", ctx.Err())
	}
}

func interpret(value cborcodec.Value) (*ntn.Tip, error) {
	tag, rest, ok := cborcodec.ArrayTag(value)
	if !ok {
		return nil, protocol.ErrUnexpectedShape(protocol.ChainSync, "reply is not a tagged array")
	}

	switch tag {
	case tagIntersectFound, tagIntersectNotFound:
		if len(rest) == 0 {
			return nil, protocol.ErrUnexpectedShape(protocol.ChainSync, "reply array has no tip element")
		}
		return extractTip(rest[len(rest)-1]), nil
	default:
		return nil, protocol.ErrUnexpectedShape(protocol.ChainSync, "unexpected chainsync tag")
	}
}

// extractTip decodes the wire shape [slotNo, headerHash, blockNo] per
// spec.md §3. Anything else is passed through opaquely in Tip.Raw, as
// the spec requires.
func extractTip(value cborcodec.Value) *ntn.Tip {
	arr, ok := cborcodec.AsArray(value)
	if !ok || len(arr) != 3 {
		return &ntn.Tip{Raw: value, Matched: false}
	}
	slot, slotOK := cborcodec.AsUint64(arr[0])
	hash, hashOK := cborcodec.AsBytes(arr[1])
	blockNo, blockOK := cborcodec.AsUint64(arr[2])
	if !slotOK || !hashOK || !blockOK {
		return &ntn.Tip{Raw: value, Matched: false}
	}
	return &ntn.Tip{
		Point: ntn.Point{
			Origin:     false,
			SlotNo:     slot,
			HeaderHash: hash,
		},
		BlockNo: blockNo,
		Matched: true,
	}
}
