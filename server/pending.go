package server

import "sync"

// pendingLink is the per-fid bookkeeping a Pending file keeps: a
// queue of data not yet delivered, and the read request currently
// parked waiting for the next Write, if any.
type pendingLink struct {
	p     *Pending
	fid   *Fid
	queue [][]byte
	wait  *Req9
}

// Pending fans one event stream out to every fid currently reading
// it — the broadcast files 9P services use for things like a "event"
// or "log" pseudo-file that many clients Tread concurrently. It is
// the Go-idiomatic counterpart of libixp's pending_* functions: a
// reader either gets queued data immediately, or is parked until the
// next Write arrives.
type Pending struct {
	mu   sync.Mutex
	fids map[*Fid]*pendingLink
}

// NewPending returns an empty broadcast group.
func NewPending() *Pending {
	return &Pending{fids: make(map[*Fid]*pendingLink)}
}

// Pushfid enrolls fid as a reader of this broadcast group. Call it
// from a Topen handler once a fid is confirmed to name the event file.
func (p *Pending) Pushfid(fid *Fid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	link := &pendingLink{p: p, fid: fid}
	p.fids[fid] = link
	fid.Pending = link
}

// Write queues dat for delivery to every enrolled fid, answering any
// Tread already parked on one immediately.
func (p *Pending) Write(dat []byte) {
	if len(dat) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, link := range p.fids {
		cp := append([]byte(nil), dat...)
		if link.wait != nil {
			req := link.wait
			link.wait = nil
			req.Ofcall.Data = cp
			req.Ofcall.Count = uint32(len(cp))
			req.Respond("")
			continue
		}
		link.queue = append(link.queue, cp)
	}
}

// PendingRespond answers r's Tread from fid's queue if data is
// already waiting, or parks it until the next Write. Call it from a
// Read handler on a fid previously passed to Pushfid.
func PendingRespond(p *Pending, fid *Fid, r *Req9) {
	p.mu.Lock()
	defer p.mu.Unlock()

	link, ok := p.fids[fid]
	if !ok {
		r.Respond(errNofile)
		return
	}
	if len(link.queue) > 0 {
		data := link.queue[0]
		link.queue = link.queue[1:]
		r.Ofcall.Data = data
		r.Ofcall.Count = uint32(len(data))
		r.Respond("")
		return
	}
	link.wait = r
}

// Flush detaches a parked Tread so a later Write won't try to answer
// it; it does not respond to the old request itself — Respond's
// standard Tflush finalization is what delivers "interrupted".
func (p *Pending) Flush(r *Req9) {
	if r.OldReq != nil && r.OldReq.Fid != nil {
		p.mu.Lock()
		if link, ok := p.fids[r.OldReq.Fid]; ok && link.wait == r.OldReq {
			link.wait = nil
		}
		p.mu.Unlock()
	}
	r.Respond("")
}

// Clunk removes fid from the broadcast group, answering any Tread
// still parked on it with "interrupted". It reports whether any
// reader remains enrolled.
func (p *Pending) Clunk(fid *Fid) (more bool) {
	p.mu.Lock()
	link, ok := p.fids[fid]
	if ok {
		delete(p.fids, fid)
	}
	more = len(p.fids) > 0
	p.mu.Unlock()

	if ok && link.wait != nil {
		link.wait.Respond(errInterrupted)
	}
	return more
}
