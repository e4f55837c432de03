package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/keaganluttrell/ninep/p9"
)

// waiter is one in-flight RPC: a slot in the sleeping list that the
// muxer (elected from among the blocked callers) wakes with its
// response. It mirrors libixp's Rpc/RpcBody.
type waiter struct {
	tag  uint16
	resp *p9.Fcall
	cond *sync.Cond

	next, prev *waiter // sleep-list links; nil when not enqueued
}

func (c *Client) enqueue(w *waiter) {
	w.next = c.sleep.next
	w.prev = c.sleep
	w.next.prev = w
	w.prev.next = w
}

func (c *Client) dequeue(w *waiter) {
	if w.next == nil {
		return
	}
	w.next.prev = w.prev
	w.prev.next = w.next
	w.next, w.prev = nil, nil
}

// gettag allocates a free tag for w, growing the wait table if every
// existing slot is in use. Caller holds c.mu.
func (c *Client) gettag(w *waiter) uint16 {
	for {
		for c.nwait == c.mwait {
			span := int(c.maxtag) - int(c.mintag)
			if c.mwait < span {
				mw := c.mwait
				if mw == 0 {
					mw = 1
				} else {
					mw <<= 1
				}
				if mw > span {
					mw = span
				}
				grown := make([]*waiter, mw)
				copy(grown, c.wait)
				c.freetag = c.mwait
				c.wait = grown
				c.mwait = mw
				break
			}
			c.tagRend.Wait()
		}

		i := c.freetag
		if c.wait[i] == nil {
			return c.claim(w, i)
		}
		for ; i < c.mwait; i++ {
			if c.wait[i] == nil {
				return c.claim(w, i)
			}
		}
		for i = 0; i < c.freetag; i++ {
			if c.wait[i] == nil {
				return c.claim(w, i)
			}
		}
		panic("client: fell out of gettag loop without a free tag")
	}
}

func (c *Client) claim(w *waiter, i int) uint16 {
	c.nwait++
	c.wait[i] = w
	w.tag = uint16(i) + c.mintag
	return w.tag
}

// puttag releases w's tag. Caller holds c.mu.
func (c *Client) puttag(w *waiter) {
	i := int(w.tag - c.mintag)
	if c.wait[i] != w {
		panic(fmt.Sprintf("client: wait[%d] does not hold the expected waiter", i))
	}
	c.wait[i] = nil
	c.nwait--
	c.freetag = i
	c.tagRend.Signal()
}

// electmuxer gives up the muxer role and wakes every waiter parked in
// RPC; the first to retake c.mu claims the role. A waiter still
// writing its request is not handed the role, since it cannot read
// until its write completes; it claims the role itself afterwards if
// nobody else has. Caller holds c.mu.
func (c *Client) electmuxer() {
	c.muxer = nil
	for r := c.sleep.next; r != c.sleep; r = r.next {
		r.cond.Signal()
	}
}

// muxrecv reads and decodes one message off the wire without holding
// c.mu; a read failure (EOF or decode error) returns a nil Fcall.
func (c *Client) muxrecv() *p9.Fcall {
	f, err := c.conn.ReadMsg(context.Background())
	if err != nil {
		return nil
	}
	return f
}

// dispatch hands a received message to the waiter sleeping on its
// tag. Caller holds c.mu.
func (c *Client) dispatch(f *p9.Fcall) error {
	i := int(f.Tag - c.mintag)
	if i < 0 || i >= c.mwait {
		return fmt.Errorf("client: received message with out-of-range tag %d", f.Tag)
	}
	w := c.wait[i]
	if w == nil || w.next == nil {
		return fmt.Errorf("client: received message with unexpected tag %d", f.Tag)
	}
	w.resp = f
	c.dequeue(w)
	w.cond.Signal()
	return nil
}

// RPC sends req and blocks until its matching reply arrives, electing
// itself as the connection's muxer if no one else is reading. At most
// one goroutine is ever parked in conn.ReadMsg at a time.
func (c *Client) RPC(ctx context.Context, req *p9.Fcall) (*p9.Fcall, error) {
	w := &waiter{cond: sync.NewCond(&c.mu)}

	c.mu.Lock()
	req.Tag = c.gettag(w)
	c.enqueue(w)
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteMsg(ctx, req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		c.dequeue(w)
		c.puttag(w)
		c.mu.Unlock()
		return nil, fmt.Errorf("client: rpc: %w", err)
	}

	c.mu.Lock()
	for c.muxer != nil && c.muxer != w && w.resp == nil {
		w.cond.Wait()
	}

	if w.resp == nil {
		c.muxer = w
		for w.resp == nil {
			c.mu.Unlock()
			p := c.muxrecv()
			c.mu.Lock()
			if p == nil {
				c.dequeue(w)
				break
			}
			if err := c.dispatch(p); err != nil {
				// Malformed tag on the wire; drop it and keep muxing.
				continue
			}
		}
		c.electmuxer()
	}

	resp := w.resp
	c.puttag(w)
	c.mu.Unlock()

	if resp == nil {
		return nil, fmt.Errorf("client: rpc: unexpected eof")
	}
	if resp.Type == p9.Rerror {
		return resp, fmt.Errorf("client: %s", resp.Ename)
	}
	return resp, nil
}
