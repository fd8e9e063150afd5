// Package handshake implements the Handshake mini-protocol (mpid=0),
// the version-negotiation sub-protocol whose accepted version dictates
// the shape of every later payload, per spec.md §4.5.
package handshake

import (
	"fmt"
	"time"

	"github.com/ouroboros-ntn/ntnclient/pkg/cborcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/muxcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"github.com/ouroboros-ntn/ntnclient/pkg/protocol"
	"go.uber.org/zap"
)

const (
	tagProposeVersions = 0
	tagAcceptVersion   = 1
	tagRefuse          = 2
	tagQueryReply      = 3
)

// ProposalVersions is the set of NtN versions this client offers.
// spec.md §4.5 requires at minimum 14 and 15.
var ProposalVersions = []uint16{14, 15}

// BuildTable constructs the version table this client proposes: every
// entry in ProposalVersions, carrying (magic, false, peerSharing?1:0,
// false), per spec.md §3.
func BuildTable(magic uint32, wantPeerSharing bool) ntn.VersionTable {
	peerSharing := uint8(0)
	if wantPeerSharing {
		peerSharing = 1
	}
	table := make(ntn.VersionTable, len(ProposalVersions))
	for _, v := range ProposalVersions {
		table[v] = ntn.VersionData{
			NetworkMagic:  magic,
			DiffusionMode: false,
			PeerSharing:   peerSharing,
			Query:         false,
		}
	}
	return table
}

func encodeProposeVersions(table ntn.VersionTable) ([]byte, error) {
	m := make(map[uint64][]any, len(table))
	for version, data := range table {
		m[uint64(version)] = []any{data.NetworkMagic, data.DiffusionMode, data.PeerSharing, data.Query}
	}
	return cborcodec.EncodeArray(uint64(tagProposeVersions), m)
}

// Run sends MsgProposeVersions and awaits exactly one responder
// segment on mpid 0, interpreting Accept/Refuse/QueryReply per
// spec.md §4.5. On Accept it unregisters the handshake mailbox (no
// further mpid-0 traffic is expected) and returns the negotiated
// session; on any other outcome it returns a fatal *ntn.Error.
func Run(d *protocol.Dispatcher, table ntn.VersionTable, timeout time.Duration, logger *zap.Logger) (*ntn.NegotiatedSession, error) {
	mailbox := d.Register(protocol.Handshake, muxcodec.Responder)

	payload, err := encodeProposeVersions(table)
	if err != nil {
		return nil, err
	}
	if err := d.Send(protocol.Handshake, payload); err != nil {
		return nil, err
	}
	logger.Debug("sent MsgProposeVersions", zap.Any("versions", ProposalVersions))

	select {
	case msg := <-mailbox:
		if msg.Err != nil {
			return nil, ntn.Coerce(msg.Err, ntn.KindIo, "handshake reply delivery failed")
		}
		session, err := interpret(msg.Value)
		if err != nil {
			return nil, err
		}
		d.Unregister(protocol.Handshake, muxcodec.Responder)
		logger.Info("handshake accepted", zap.Uint16("version", session.Version))
		return session, nil
	case <-time.After(timeout):
		return nil, ntn.ScopedError(ntn.KindTimeout, "handshake", "no response to MsgProposeVersions", nil)
	}
}

func interpret(value cborcodec.Value) (*ntn.NegotiatedSession, error) {
	tag, rest, ok := cborcodec.ArrayTag(value)
	if !ok {
		return nil, ntn.NewError(ntn.KindHandshakeUnexpected, "handshake reply is not a tagged array")
	}

	switch tag {
	case tagAcceptVersion:
		if len(rest) < 2 {
			return nil, ntn.NewError(ntn.KindHandshakeUnexpected, "MsgAcceptVersion missing fields")
		}
		version, ok := cborcodec.AsUint64(rest[0])
		if !ok {
			return nil, ntn.NewError(ntn.KindHandshakeUnexpected, "MsgAcceptVersion version is not a uint")
		}
		data, ok := cborcodec.AsArray(rest[1])
		if !ok || len(data) < 4 {
			return nil, ntn.NewError(ntn.KindHandshakeUnexpected, "MsgAcceptVersion versionData malformed")
		}
		magic, ok := cborcodec.AsUint64(data[0])
		if !ok {
			return nil, ntn.NewError(ntn.KindHandshakeUnexpected, "versionData magic is not a uint")
		}
		diffusionMode, _ := cborcodec.AsBool(data[1])
		peerSharing, _ := cborcodec.AsUint64(data[2])
		query, _ := cborcodec.AsBool(data[3])

		return &ntn.NegotiatedSession{
			Version: uint16(version),
			VersionData: ntn.VersionData{
				NetworkMagic:  uint32(magic),
				DiffusionMode: diffusionMode,
				PeerSharing:   uint8(peerSharing),
				Query:         query,
			},
		}, nil

	case tagRefuse:
		reason := "unspecified"
		if len(rest) > 0 {
			reason = fmt.Sprintf("%v", rest[0])
		}
		return nil, ntn.NewError(ntn.KindHandshakeRefused, reason)

	case tagQueryReply:
		return nil, ntn.NewError(ntn.KindHandshakeUnexpected, "responder sent MsgQueryReply, no version negotiated")

	default:
		return nil, ntn.NewError(ntn.KindHandshakeUnexpected, fmt.Sprintf("unknown handshake tag %d", tag))
	}
}
