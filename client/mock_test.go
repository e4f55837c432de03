package client

import (
	"context"
	"net"
	"testing"

	"github.com/keaganluttrell/ninep/p9"
	"github.com/keaganluttrell/ninep/transport"
)

// pipeDialer hands back one end of a net.Pipe and runs a handler on
// the other, bypassing any real network for deterministic tests.
type pipeDialer struct {
	handler func(net.Conn)
}

func (d *pipeDialer) Dial(ctx context.Context, address string) (transport.Conn, error) {
	c1, c2 := net.Pipe()
	go d.handler(c2)
	return transport.NewStreamConn(c1), nil
}

// simpleHandler runs handlerFunc over a raw net.Conn, replying to
// every framed request with whatever handlerFunc returns, copying the
// tag across automatically so callers only describe the payload.
func simpleHandler(t *testing.T, handlerFunc func(req *p9.Fcall) *p9.Fcall) func(net.Conn) {
	return func(c net.Conn) {
		defer c.Close()
		for {
			req, err := transport.ReadFcall(c)
			if err != nil {
				return
			}
			resp := handlerFunc(req)
			resp.Tag = req.Tag
			if err := transport.WriteFcall(c, resp); err != nil {
				return
			}
		}
	}
}

func versionOKHandler(t *testing.T, next func(req *p9.Fcall) *p9.Fcall) func(net.Conn) {
	return simpleHandler(t, func(req *p9.Fcall) *p9.Fcall {
		if req.Type == p9.Tversion {
			return &p9.Fcall{Type: p9.Rversion, Msize: req.Msize, Version: "9P2000"}
		}
		return next(req)
	})
}
