// Package transport carries 9P2000 messages over a byte stream. It
// supplies the length-prefixed framer shared by every carrier, the
// dial/announce address syntax ("proto!addr[!port]"), and a WebSocket
// binding alongside the plain TCP and Unix-domain ones.
package transport

import (
	"context"

	"github.com/keaganluttrell/ninep/p9"
)

// Conn is anything that can carry one Fcall at a time in each
// direction. StreamConn (TCP or Unix-domain) and WSConn implement it; client
// and server code depend only on this interface.
type Conn interface {
	ReadMsg(ctx context.Context) (*p9.Fcall, error)
	WriteMsg(ctx context.Context, f *p9.Fcall) error
	Close() error
}
