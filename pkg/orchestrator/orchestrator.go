// Package orchestrator sequences the full node-to-node session: dial,
// handshake, then a concurrent ChainSync tip query and best-effort
// PeerSharing exchange, per spec.md §5/§6. It is the single entry
// point the CLI command drives.
package orchestrator

import (
	"context"
	"encoding/hex"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntnconfig"
	"github.com/ouroboros-ntn/ntnclient/pkg/protocol"
	"github.com/ouroboros-ntn/ntnclient/pkg/protocol/chainsync"
	"github.com/ouroboros-ntn/ntnclient/pkg/protocol/handshake"
	"github.com/ouroboros-ntn/ntnclient/pkg/protocol/peersharing"
	"github.com/ouroboros-ntn/ntnclient/pkg/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetch dials cfg's relay, negotiates a session and returns its tip
// plus any peer addresses discovered along the way.
func Fetch(cfg ntnconfig.Config, logger *zap.Logger) (*ntn.Result, error) {
	sessionID := uuid.New().String()
	logger = logger.With(zap.String("session", sessionID))

	peer := cfg.Endpoint()
	conn, err := transport.Connect(peer, cfg.ConnectTimeout, logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(cfg.SessionTimeout)); err != nil {
		return nil, ntn.WrapError(ntn.KindIo, "set session deadline failed", err)
	}

	return run(conn, cfg, logger, peer)
}

// run drives the negotiated session over rw, which the caller has
// already bound whatever deadline it wants enforced. Split out from
// Fetch so tests can drive it over a net.Pipe in place of a real
// *transport.Connection.
func run(rw io.ReadWriter, cfg ntnconfig.Config, logger *zap.Logger, peer ntn.Endpoint) (*ntn.Result, error) {
	d := protocol.NewDispatcher(rw, logger)

	readerDone := make(chan error, 1)
	go func() { readerDone <- d.Run() }()

	table := handshake.BuildTable(cfg.NetworkMagic, cfg.WantPeerSharing)
	session, err := handshake.Run(d, table, cfg.ProtocolTimeout, logger)
	if err != nil {
		return nil, err
	}

	collector, err := peersharing.NewCollector(cfg.PeerCap)
	if err != nil {
		return nil, err
	}

	var tip *ntn.Tip
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		t, err := chainsync.Run(ctx, d, cfg.ProtocolTimeout, logger)
		if err != nil {
			return err
		}
		tip = t
		return nil
	})

	if cfg.WantPeerSharing && session.VersionData.PeerSharing == 1 {
		g.Go(func() error {
			if err := peersharing.Run(ctx, d, cfg.PeerSharingAmount, collector, cfg.ProtocolTimeout, logger); err != nil {
				logger.Warn("peer sharing did not complete", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	peers := collector.Peers()
	records := make([]ntn.PeerRecord, len(peers))
	for i, p := range peers {
		records[i] = ntn.PeerRecord{IP: p.IP(), Port: p.Port}
	}

	result := &ntn.Result{
		Peer:              peer,
		NegotiatedVersion: session.Version,
		Tip:               tipRecord(tip),
		PeersDiscovered:   records,
	}
	logger.Info("session complete",
		zap.Stringer("peer", result.Peer),
		zap.Uint16("negotiatedVersion", result.NegotiatedVersion),
		zap.Any("tip", result.Tip),
		zap.Int("peersDiscovered", len(result.PeersDiscovered)))
	return result, nil
}

func tipRecord(tip *ntn.Tip) ntn.TipRecord {
	if tip == nil || !tip.Matched {
		if tip == nil {
			return ntn.TipRecord{}
		}
		return ntn.TipRecord{Raw: tip.Raw}
	}
	return ntn.TipRecord{
		Slot:    tip.Point.SlotNo,
		HashHex: hex.EncodeToString(tip.Point.HeaderHash),
		BlockNo: tip.BlockNo,
	}
}
