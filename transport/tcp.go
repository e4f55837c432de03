package transport

import (
	"context"
	"net"
	"time"

	"github.com/keaganluttrell/ninep/p9"
)

// StreamConn adapts any net.Conn (TCP or Unix-domain; both speak the
// same byte-stream framing) to the Conn interface. The context
// parameter on ReadMsg/WriteMsg is honored via SetDeadline when it
// carries one; net.Conn itself has no per-call context support.
type StreamConn struct {
	nc net.Conn
}

// NewStreamConn wraps an already-connected or already-accepted
// net.Conn.
func NewStreamConn(nc net.Conn) *StreamConn {
	return &StreamConn{nc: nc}
}

func (s *StreamConn) ReadMsg(ctx context.Context) (*p9.Fcall, error) {
	if dl, ok := ctx.Deadline(); ok {
		s.nc.SetReadDeadline(dl)
		defer s.nc.SetReadDeadline(time.Time{})
	}
	return ReadFcall(s.nc)
}

func (s *StreamConn) WriteMsg(ctx context.Context, f *p9.Fcall) error {
	if dl, ok := ctx.Deadline(); ok {
		s.nc.SetWriteDeadline(dl)
		defer s.nc.SetWriteDeadline(time.Time{})
	}
	return WriteFcall(s.nc, f)
}

func (s *StreamConn) Close() error { return s.nc.Close() }
