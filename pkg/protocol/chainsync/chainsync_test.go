package chainsync

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/ouroboros-ntn/ntnclient/pkg/cborcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/muxcodec"
	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"github.com/ouroboros-ntn/ntnclient/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func readFindIntersect(t *testing.T, server net.Conn) {
	t.Helper()
	seg, err := muxcodec.ReadSegment(server)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x04, 0x80}, seg.Payload, "[4,[]] per spec.md §6")
}

func reply(t *testing.T, server net.Conn, payload []byte) {
	t.Helper()
	seg, err := muxcodec.Encode(0, protocol.ChainSync, muxcodec.Responder, payload)
	require.NoError(t, err)
	_, err = server.Write(seg)
	require.NoError(t, err)
}

func TestChainSyncIntersectNotFoundWithTip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := protocol.NewDispatcher(client, zaptest.NewLogger(t))
	go func() { _ = d.Run() }()

	hash := make([]byte, 32)
	go func() {
		readFindIntersect(t, server)
		tip := []any{uint64(142857142), hash, uint64(9999999)}
		payload, err := cborcodec.EncodeArray(uint64(tagIntersectNotFound), tip)
		require.NoError(t, err)
		reply(t, server, payload)
	}()

	tip, err := Run(context.Background(), d, time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, tip.Matched)
	assert.Equal(t, uint64(142857142), tip.Point.SlotNo)
	assert.True(t, bytes.Equal(hash, tip.Point.HeaderHash))
	assert.Equal(t, uint64(9999999), tip.BlockNo)
}

func TestChainSyncIntersectFoundWithTip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := protocol.NewDispatcher(client, zaptest.NewLogger(t))
	go func() { _ = d.Run() }()

	hash := bytes.Repeat([]byte{0xAB}, 32)
	go func() {
		readFindIntersect(t, server)
		point := []any{uint64(100), hash}
		tip := []any{uint64(200), hash, uint64(300)}
		payload, err := cborcodec.EncodeArray(uint64(tagIntersectFound), point, tip)
		require.NoError(t, err)
		reply(t, server, payload)
	}()

	tip, err := Run(context.Background(), d, time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, tip.Matched)
	assert.Equal(t, uint64(200), tip.Point.SlotNo)
	assert.Equal(t, uint64(300), tip.BlockNo)
}

func TestChainSyncOpaqueTipPassedThrough(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := protocol.NewDispatcher(client, zaptest.NewLogger(t))
	go func() { _ = d.Run() }()

	go func() {
		readFindIntersect(t, server)
		weirdTip := []any{"not", "the", "expected", "shape"}
		payload, err := cborcodec.EncodeArray(uint64(tagIntersectNotFound), weirdTip)
		require.NoError(t, err)
		reply(t, server, payload)
	}()

	tip, err := Run(context.Background(), d, time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, tip.Matched)
	assert.NotNil(t, tip.Raw)
}

func TestChainSyncUnexpectedTagIsProtocolError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	d := protocol.NewDispatcher(client, zaptest.NewLogger(t))
	go func() { _ = d.Run() }()

	go func() {
		readFindIntersect(t, server)
		payload, err := cborcodec.EncodeArray(uint64(99))
		require.NoError(t, err)
		reply(t, server, payload)
	}()

	_, err := Run(context.Background(), d, time.Second, zaptest.NewLogger(t))
	require.Error(t, err)
	var nerr *ntn.Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, ntn.KindProtocol, nerr.Kind)
}
