package server

import (
	"context"
	"sync"

	"github.com/keaganluttrell/ninep/p9"
	"github.com/keaganluttrell/ninep/transport"
)

// Conn9 is one client connection's 9P state: its live tags, its open
// fids, and the handler table and serialized I/O locks it was created
// with. It stays alive — referenced by ref — until every synthesized
// teardown Tflush/Tclunk it generates on hangup has been answered.
type Conn9 struct {
	conn transport.Conn
	srv  *Handlers

	// writeMu serializes WriteMsg: handlers may respond from their own
	// goroutines (Pending does), racing the connection's read loop.
	writeMu sync.Mutex

	mu     sync.Mutex
	tags   map[uint16]*Req9
	fids   map[uint32]*Fid
	ref    int
	hungup bool
	Msize  uint32
}

func newConn9(conn transport.Conn, srv *Handlers) *Conn9 {
	return &Conn9{
		conn:  conn,
		srv:   srv,
		tags:  make(map[uint16]*Req9),
		fids:  make(map[uint32]*Fid),
		ref:   1,
		Msize: 8192,
	}
}

func (c *Conn9) incref() {
	c.mu.Lock()
	c.ref++
	c.mu.Unlock()
}

func (c *Conn9) decref() {
	c.mu.Lock()
	c.ref--
	done := c.ref == 0
	c.mu.Unlock()
	if done {
		c.conn.Close()
	}
}

func (c *Conn9) createFid(fid uint32) (*Fid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.fids[fid]; exists {
		return nil, false
	}
	f := &Fid{conn: c, Fid: fid, Omode: noMode}
	c.fids[fid] = f
	c.ref++
	return f, true
}

func (c *Conn9) getFid(fid uint32) (*Fid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fids[fid]
	return f, ok
}

func (c *Conn9) destroyFid(fid uint32) {
	c.mu.Lock()
	f, ok := c.fids[fid]
	if ok {
		delete(c.fids, fid)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if c.srv.FreeFid != nil {
		c.srv.FreeFid(f)
	}
	c.decref()
}

func (c *Conn9) registerTag(tag uint16, r *Req9) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tags[tag]; exists {
		return false
	}
	c.tags[tag] = r
	return true
}

func (c *Conn9) lookupTag(tag uint16) (*Req9, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.tags[tag]
	return r, ok
}

// removeTag unregisters r's tag, but only if r still owns it — a
// request answered "tag in use" must not knock out the original
// request registered under that tag.
func (c *Conn9) removeTag(tag uint16, r *Req9) {
	c.mu.Lock()
	if c.tags[tag] == r {
		delete(c.tags, tag)
	}
	c.mu.Unlock()
}

// write serializes one outgoing Fcall against concurrent handlers
// finishing requests in any order.
func (c *Conn9) write(ctx context.Context, f *p9.Fcall) error {
	c.mu.Lock()
	hungup := c.hungup
	c.mu.Unlock()
	if hungup {
		return nil
	}
	c.writeMu.Lock()
	err := c.conn.WriteMsg(ctx, f)
	c.writeMu.Unlock()
	if err != nil {
		c.hangup()
		return err
	}
	return nil
}

func (c *Conn9) hangup() {
	c.mu.Lock()
	c.hungup = true
	c.mu.Unlock()
}
