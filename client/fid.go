package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/keaganluttrell/ninep/p9"
)

// Fid is a client handle to one file on the server: a fid number plus
// the qid and open mode it was given by the server. Reads and writes
// through the same Fid serialize on its own lock so concurrent
// callers don't interleave offsets, matching a single POSIX file
// descriptor's semantics.
type Fid struct {
	c      *Client
	Fid    uint32
	Qid    p9.Qid
	iounit uint32
	mode   uint8
	opened bool

	ioMu   sync.Mutex
	offset uint64
}

// getFid allocates a fid number, preferring one returned by a prior
// Clunk over growing lastFid, the way a Unix allocator reuses freed
// descriptors before extending the table.
func (c *Client) getFid() uint32 {
	c.fidMu.Lock()
	defer c.fidMu.Unlock()

	if n := len(c.freeFids); n > 0 {
		fid := c.freeFids[n-1]
		c.freeFids = c.freeFids[:n-1]
		return fid
	}
	c.lastFid++
	return c.lastFid
}

// putFid returns fid to the allocator. Releasing the most recently
// grown fid shrinks lastFid instead of growing the free list, so the
// fid space stays compact across paired allocate/release cycles.
func (c *Client) putFid(fid uint32) {
	c.fidMu.Lock()
	if fid == c.lastFid {
		c.lastFid--
	} else {
		c.freeFids = append(c.freeFids, fid)
	}
	c.fidMu.Unlock()
}

// Attach issues Tattach and returns a Fid rooted at aname on the
// server, attaching as uname.
func (c *Client) Attach(ctx context.Context, uname, aname string) (*Fid, error) {
	fid := c.getFid()
	req := &p9.Fcall{Type: p9.Tattach, Fid: fid, Afid: p9.NoFid, Uname: uname, Aname: aname}
	resp, err := c.RPC(ctx, req)
	if err != nil {
		c.putFid(fid)
		return nil, err
	}
	return &Fid{c: c, Fid: fid, Qid: resp.Qid}, nil
}

// Walk issues Twalk, advancing to the path named by names relative to
// f, and returns a new Fid for the result. An empty names walks to a
// clone of f on a fresh fid.
func (f *Fid) Walk(ctx context.Context, names ...string) (*Fid, error) {
	if len(names) > p9.MaxWalkElem {
		return nil, fmt.Errorf("client: walk: %d path elements exceeds the %d a single Twalk carries", len(names), p9.MaxWalkElem)
	}
	newfid := f.c.getFid()
	req := &p9.Fcall{Type: p9.Twalk, Fid: f.Fid, Newfid: newfid, Wname: names}
	resp, err := f.c.RPC(ctx, req)
	if err != nil {
		f.c.putFid(newfid)
		return nil, err
	}
	if len(resp.Wqid) != len(names) {
		f.c.putFid(newfid)
		return nil, fmt.Errorf("client: walk: server resolved %d of %d elements", len(resp.Wqid), len(names))
	}
	qid := f.Qid
	if len(resp.Wqid) > 0 {
		qid = resp.Wqid[len(resp.Wqid)-1]
	}
	return &Fid{c: f.c, Fid: newfid, Qid: qid}, nil
}

// Open issues Topen in mode and records the iounit the server reports.
func (f *Fid) Open(ctx context.Context, mode uint8) error {
	req := &p9.Fcall{Type: p9.Topen, Fid: f.Fid, Mode: mode}
	resp, err := f.c.RPC(ctx, req)
	if err != nil {
		return err
	}
	f.Qid = resp.Qid
	f.iounit = f.c.capIounit(resp.Iounit)
	f.mode = mode
	f.opened = true
	return nil
}

// Create issues Tcreate, leaving f open on the newly created file
// (9P2000 create replaces the fid's identity with the new file's).
func (f *Fid) Create(ctx context.Context, name string, perm uint32, mode uint8) error {
	req := &p9.Fcall{Type: p9.Tcreate, Fid: f.Fid, Name: name, Perm: perm, Mode: mode}
	resp, err := f.c.RPC(ctx, req)
	if err != nil {
		return err
	}
	f.Qid = resp.Qid
	f.iounit = f.c.capIounit(resp.Iounit)
	f.mode = mode
	f.opened = true
	return nil
}

// Clunk issues Tclunk and releases f's fid back to the client's free
// list regardless of whether the server reports an error.
func (f *Fid) Clunk(ctx context.Context) error {
	req := &p9.Fcall{Type: p9.Tclunk, Fid: f.Fid}
	_, err := f.c.RPC(ctx, req)
	f.c.putFid(f.Fid)
	return err
}

// Remove issues Tremove, which clunks f's fid as a side effect even
// on failure.
func (f *Fid) Remove(ctx context.Context) error {
	req := &p9.Fcall{Type: p9.Tremove, Fid: f.Fid}
	_, err := f.c.RPC(ctx, req)
	f.c.putFid(f.Fid)
	return err
}

// Stat issues Tstat.
func (f *Fid) Stat(ctx context.Context) (p9.Stat, error) {
	req := &p9.Fcall{Type: p9.Tstat, Fid: f.Fid}
	resp, err := f.c.RPC(ctx, req)
	if err != nil {
		return p9.Stat{}, err
	}
	return resp.Stat, nil
}

// WStat issues Twstat; fields left at their StatDontTouch* sentinel
// are left unchanged by the server.
func (f *Fid) WStat(ctx context.Context, st p9.Stat) error {
	req := &p9.Fcall{Type: p9.Twstat, Fid: f.Fid, Stat: st}
	_, err := f.c.RPC(ctx, req)
	return err
}
