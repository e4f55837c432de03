package server

import (
	"context"

	"github.com/keaganluttrell/ninep/p9"
)

// Req9 is one in-flight request: the decoded Tcall, the Rcall a
// handler fills in, and whatever fids/old-request it was resolved
// against during dispatch. Handlers call Respond exactly once.
type Req9 struct {
	Conn  *Conn9
	Ctx   context.Context
	Ifcall *p9.Fcall
	Ofcall *p9.Fcall

	Fid    *Fid // TAttach/TClunk/TOpen/TCreate/TRead/TWrite/TRemove/TStat/TWalk/TWStat
	NewFid *Fid // TWalk; the same Fid as Fid when newfid == fid
	OldReq *Req9 // TFlush

	// synthetic marks requests manufactured by cleanupconn to drain a
	// hung-up connection's state rather than ones a client sent.
	synthetic bool
}

// Respond finalizes r: on error != "" it sends Rerror, otherwise it
// sends ofcall.Type = ifcall.Type+1. It performs the same
// per-type bookkeeping (installing a newly opened fid's iounit,
// promoting a newfid's qid after a walk, destroying fids on
// Tclunk/Tremove, notifying a flushed request) that the dispatch
// table's validation step assumed would eventually happen.
func (r *Req9) Respond(errStr string) {
	c := r.Conn

	switch r.Ifcall.Type {
	case p9.Tattach:
		if errStr != "" && r.Fid != nil {
			c.destroyFid(r.Fid.Fid)
		}
	case p9.Topen, p9.Tcreate:
		if errStr == "" {
			// The iounit exposed to the client leaves header room
			// within the negotiated msize; handlers cannot widen it.
			c.mu.Lock()
			r.Ofcall.Iounit = c.Msize - 24
			c.mu.Unlock()
			r.Fid.Iounit = r.Ofcall.Iounit
			r.Fid.Omode = int(r.Ifcall.Mode)
			r.Fid.Qid = r.Ofcall.Qid
		}
	case p9.Twalk:
		if errStr != "" || len(r.Ofcall.Wqid) < len(r.Ifcall.Wname) {
			if r.Ifcall.Fid != r.Ifcall.Newfid && r.NewFid != nil {
				c.destroyFid(r.NewFid.Fid)
			}
			if errStr == "" && len(r.Ofcall.Wqid) == 0 && len(r.Ifcall.Wname) > 0 {
				errStr = errNofile
			}
		} else if r.NewFid != nil {
			if len(r.Ofcall.Wqid) == 0 {
				r.NewFid.Qid = r.Fid.Qid
			} else {
				r.NewFid.Qid = r.Ofcall.Wqid[len(r.Ofcall.Wqid)-1]
			}
		}
	case p9.Tremove, p9.Tclunk:
		if r.Fid != nil {
			c.destroyFid(r.Fid.Fid)
		}
	case p9.Tflush:
		if old, ok := c.lookupTag(r.Ifcall.Oldtag); ok {
			old.Respond(errInterrupted)
		}
	}

	r.Ofcall.Tag = r.Ifcall.Tag
	if errStr == "" {
		r.Ofcall.Type = p9.ResponseType(r.Ifcall.Type)
	} else {
		r.Ofcall.Type = p9.Rerror
		r.Ofcall.Ename = errStr
	}

	c.removeTag(r.Ifcall.Tag, r)

	if !r.synthetic {
		c.write(r.Ctx, r.Ofcall)
	}
	c.decref()
}
