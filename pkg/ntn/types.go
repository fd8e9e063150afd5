// Package ntn holds the data model shared by every layer of the
// node-to-node client: the wire-level value types described by the
// Ouroboros handshake, chain-sync and peer-sharing mini-protocols, and
// the result record the orchestrator hands back to callers.
package ntn

import "fmt"

// MainnetMagic is the Cardano mainnet NetworkMagic.
const MainnetMagic uint32 = 764824073

// DefaultNtNPort is the conventional node-to-node relay port.
const DefaultNtNPort uint16 = 3001

// Endpoint identifies a relay to dial.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// VersionData is the per-version payload carried by MsgProposeVersions
// and MsgAcceptVersion for NtN versions 14 and 15.
type VersionData struct {
	NetworkMagic  uint32
	DiffusionMode bool // false = initiator+responder, the client's choice
	PeerSharing   uint8
	Query         bool
}

// VersionTable maps a proposed version number to its VersionData. Wire
// representation is a CBOR map; map iteration order carries no meaning.
type VersionTable map[uint16]VersionData

// NegotiatedSession is produced by a successful Handshake Accept. It is
// read-only for the remaining lifetime of the connection.
type NegotiatedSession struct {
	Version     uint16
	VersionData VersionData
}

// Point identifies a position on the chain: the origin, or a
// (slot, headerHash) pair.
type Point struct {
	Origin     bool
	SlotNo     uint64
	HeaderHash []byte // 32 bytes when !Origin
}

// Tip is the producer's current chain head.
type Tip struct {
	Point   Point
	BlockNo uint64
	// Raw holds the decoded CBOR value as received whenever it does not
	// match the 3-element [slotNo, headerHash, blockNo] shape; callers
	// should treat the tip as opaque in that case.
	Raw     any
	Matched bool
}

// PeerAddress is a peer-sharing reply entry, IPv4 or IPv6.
type PeerAddress struct {
	IsIPv6 bool
	V4Addr uint32 // big-endian packed a.b.c.d, valid when !IsIPv6
	V6Words [4]uint32
	Port   uint16
}

// IP renders the address the way spec.md §4.7 describes it.
func (p PeerAddress) IP() string {
	if !p.IsIPv6 {
		a := p.V4Addr
		return fmt.Sprintf("%d.%d.%d.%d", byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
	}
	return fmt.Sprintf("%04x:%04x:%04x:%04x:%04x:%04x:%04x:%04x",
		uint16(p.V6Words[0]>>16), uint16(p.V6Words[0]),
		uint16(p.V6Words[1]>>16), uint16(p.V6Words[1]),
		uint16(p.V6Words[2]>>16), uint16(p.V6Words[2]),
		uint16(p.V6Words[3]>>16), uint16(p.V6Words[3]))
}

// TipRecord is the JSON-friendly projection of Tip used in Result.
type TipRecord struct {
	Slot    uint64 `json:"slot,omitempty"`
	HashHex string `json:"hashHex,omitempty"`
	BlockNo uint64 `json:"blockNo,omitempty"`
	Raw     any    `json:"raw,omitempty"`
}

// PeerRecord is the JSON-friendly projection of PeerAddress.
type PeerRecord struct {
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

// Result is the single output record the orchestrator returns on
// success, matching spec.md §6.
type Result struct {
	Peer              Endpoint     `json:"peer"`
	NegotiatedVersion uint16       `json:"negotiatedVersion"`
	Tip               TipRecord    `json:"tip"`
	PeersDiscovered   []PeerRecord `json:"peersDiscovered"`
}
