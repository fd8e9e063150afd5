// Package transport is the byte I/O layer: it opens a TCP connection
// to a relay with a connect timeout and exposes the ordered,
// reliable duplex byte stream the mux codec reads and writes, per
// spec.md §4.1.
package transport

import (
	"errors"
	"net"
	"time"

	"github.com/ouroboros-ntn/ntnclient/pkg/ntn"
	"go.uber.org/zap"
)

// Connection is a live duplex byte stream bound to one Endpoint. Its
// lifetime runs from a successful Connect to an explicit Close or a
// fatal error; the core owns a single producer and single consumer of
// it.
type Connection struct {
	conn   net.Conn
	peer   ntn.Endpoint
	logger *zap.Logger
}

// Connect dials the endpoint with the given connect timeout. A dial
// that times out is reported as a *ntn.Error with Kind Timeout and
// Scope "connect"; any other failure (DNS, refused, unreachable) is
// reported with Kind ConnectError.
func Connect(peer ntn.Endpoint, connectTimeout time.Duration, logger *zap.Logger) (*Connection, error) {
	addr := peer.String()
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ntn.ScopedError(ntn.KindTimeout, "connect", "dial timed out: "+addr, err)
		}
		return nil, ntn.WrapError(ntn.KindConnect, "dial failed: "+addr, err)
	}
	logger.Debug("connected", zap.String("peer", addr))
	return &Connection{conn: conn, peer: peer, logger: logger}, nil
}

// Write sends bytes on the connection, implementing io.Writer so the
// dispatcher can write mux segments directly to it. Errors are fatal
// to the session.
func (c *Connection) Write(b []byte) (int, error) {
	n, err := c.conn.Write(b)
	if err != nil {
		return n, ntn.WrapError(ntn.KindIo, "write failed", err)
	}
	return n, nil
}

// Read implements io.Reader so the mux codec can decode segments
// directly off the connection. The only deadline ever armed on this
// connection is the session deadline set in orchestrator.Fetch, so a
// timed-out read is reported as Timeout{scope:"session"} rather than a
// generic IoError, per spec.md §4.1/§7 and §8 scenario 5.
func (c *Connection) Read(b []byte) (int, error) {
	n, err := c.conn.Read(b)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return n, ntn.ScopedError(ntn.KindTimeout, "session", "read deadline exceeded", err)
		}
		return n, ntn.WrapError(ntn.KindIo, "read failed", err)
	}
	return n, nil
}

// SetDeadline propagates the session deadline onto the underlying
// socket so a stuck read unblocks at the next suspension point.
func (c *Connection) SetDeadline(t time.Time) error {
	return c.conn.SetDeadline(t)
}

// Close closes the connection. Safe to call more than once.
func (c *Connection) Close() error {
	c.logger.Debug("closing connection", zap.String("peer", c.peer.String()))
	return c.conn.Close()
}
