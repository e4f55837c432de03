package server

import "github.com/keaganluttrell/ninep/p9"

// noMode marks a Fid that has not been opened; it can't collide with
// a real open mode since those are 0-3 plus flag bits.
const noMode = -1

// Fid is a server's view of one fid a client has walked to: its qid,
// its open mode (noMode until Topen/Tcreate succeeds), the iounit the
// connection negotiated for it, and an Aux slot handlers use to hang
// their own per-fid state (an open *os.File, a directory cursor, ...).
type Fid struct {
	conn   *Conn9
	Fid    uint32
	Qid    p9.Qid
	Omode  int
	Iounit uint32
	Aux    any

	// Pending is set by handlers that use the broadcast facility in
	// pending.go; it is nil for fids that aren't event files.
	Pending *pendingLink
}

func (f *Fid) IsOpen() bool { return f.Omode != noMode }
