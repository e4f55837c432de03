package server

import (
	"context"

	"github.com/keaganluttrell/ninep/p9"
)

// maxMsize is the message size the server advertises; a Tversion
// asking for more is negotiated down to it.
const maxMsize = 8192

// handleFcall decodes one incoming message, registers it under its
// tag, and dispatches it. A read/decode failure hangs the connection
// up and is returned; a duplicate tag is answered with Eduptag
// without ever reaching a handler, and the connection keeps serving.
func handleFcall(ctx context.Context, c *Conn9) error {
	f, err := c.conn.ReadMsg(ctx)
	if err != nil {
		c.hangup()
		return err
	}

	r := &Req9{
		Conn:   c,
		Ctx:    ctx,
		Ifcall: f,
		Ofcall: &p9.Fcall{},
	}
	c.incref()

	if !c.registerTag(f.Tag, r) {
		r.Respond(errDupTag)
		return nil
	}

	handleReq(r)
	return nil
}

// handleReq validates r against the connection's fid/tag state —
// exactly the checks request.cc's handlereq performs before handing
// off to a Srv9 callback — and calls the matching Handlers field, or
// answers directly when validation already determines the outcome.
func handleReq(r *Req9) {
	c := r.Conn
	srv := c.srv

	switch r.Ifcall.Type {
	default:
		r.Respond(errNoFunc)

	case p9.Tversion:
		switch r.Ifcall.Version {
		case "9P":
			r.Ofcall.Version = "9P"
		case "9P2000":
			r.Ofcall.Version = "9P2000"
		default:
			r.Ofcall.Version = "unknown"
		}
		msize := r.Ifcall.Msize
		if msize > maxMsize {
			msize = maxMsize
		}
		r.Ofcall.Msize = msize
		c.mu.Lock()
		c.Msize = msize
		c.mu.Unlock()
		r.Respond("")

	case p9.Tattach:
		fid, ok := c.createFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errDupFid)
			return
		}
		r.Fid = fid
		if srv.Attach == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Attach(r)

	case p9.Tclunk:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		r.Fid = fid
		if srv.Clunk == nil {
			r.Respond("")
			return
		}
		srv.Clunk(r)

	case p9.Tflush:
		old, ok := c.lookupTag(r.Ifcall.Oldtag)
		if !ok {
			r.Respond(errNoTag)
			return
		}
		r.OldReq = old
		if srv.Flush == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Flush(r)

	case p9.Tcreate:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		if fid.IsOpen() {
			r.Respond(errOpen)
			return
		}
		if !fid.Qid.IsDir() {
			r.Respond(errNotDir)
			return
		}
		r.Fid = fid
		if srv.Create == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Create(r)

	case p9.Topen:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		if fid.Qid.IsDir() && (r.Ifcall.Mode|p9.ORCLOSE) != (p9.OREAD|p9.ORCLOSE) {
			r.Respond(errIsDir)
			return
		}
		r.Fid = fid
		r.Ofcall.Qid = fid.Qid
		if srv.Open == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Open(r)

	case p9.Tread:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		if !fid.IsOpen() || fid.Omode&3 == p9.OWRITE {
			r.Respond(errNoRead)
			return
		}
		r.Fid = fid
		if srv.Read == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Read(r)

	case p9.Tremove:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		r.Fid = fid
		if srv.Remove == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Remove(r)

	case p9.Tstat:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		r.Fid = fid
		if srv.Stat == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Stat(r)

	case p9.Twalk:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		if fid.IsOpen() {
			r.Respond(errCannotWalk)
			return
		}
		if len(r.Ifcall.Wname) > 0 && !fid.Qid.IsDir() {
			r.Respond(errNotDir)
			return
		}
		r.Fid = fid
		if r.Ifcall.Fid != r.Ifcall.Newfid {
			newfid, ok := c.createFid(r.Ifcall.Newfid)
			if !ok {
				r.Respond(errDupFid)
				return
			}
			r.NewFid = newfid
		} else {
			r.NewFid = fid
		}
		if srv.Walk == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Walk(r)

	case p9.Twrite:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		if fid.Omode&3 != p9.OWRITE && fid.Omode&3 != p9.ORDWR {
			r.Respond(errNoWrite)
			return
		}
		r.Fid = fid
		if srv.Write == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.Write(r)

	case p9.Twstat:
		fid, ok := c.getFid(r.Ifcall.Fid)
		if !ok {
			r.Respond(errNoFid)
			return
		}
		st := r.Ifcall.Stat
		if st.Type != p9.StatDontTouchU16 {
			r.Respond(errWstatType)
			return
		}
		if st.Dev != p9.StatDontTouchU32 {
			r.Respond(errWstatDev)
			return
		}
		if !st.Qid.Untouched() {
			r.Respond(errWstatQid)
			return
		}
		if st.Muid != "" {
			r.Respond(errWstatMuid)
			return
		}
		if st.Mode != p9.StatDontTouchU32 {
			wantDir := uint32(0)
			if fid.Qid.IsDir() {
				wantDir = p9.DMDIR
			}
			if st.Mode&p9.DMDIR != wantDir {
				r.Respond(errWstatDMDir)
				return
			}
		}
		r.Fid = fid
		if srv.WStat == nil {
			r.Respond(errNoFunc)
			return
		}
		srv.WStat(r)
	}
}
