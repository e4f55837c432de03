package p9

// Fcall is the tagged union of every 9P2000 message. The common
// header (Type, Tag, and — for requests that address one — Fid) is
// always valid; every other field is meaningful only for the message
// variants named in its comment.
type Fcall struct {
	Type uint8
	Tag  uint16
	Fid  uint32

	Msize   uint32 // Tversion, Rversion
	Version string // Tversion, Rversion

	Afid  uint32 // Tauth, Tattach
	Uname string // Tauth, Tattach
	Aname string // Tauth, Tattach

	Ename string // Rerror

	Oldtag uint16 // Tflush

	Newfid uint32 // Twalk
	Wname  []string
	Wqid   []Qid // Rwalk

	Qid    Qid    // Rauth, Rattach, Ropen, Rcreate
	Iounit uint32 // Ropen, Rcreate

	Mode uint8  // Topen, Tcreate
	Perm uint32 // Tcreate
	Name string // Tcreate

	Offset uint64 // Tread, Twrite
	Count  uint32 // Tread, Twrite, Rread, Rwrite
	Data   []byte // Rread, Twrite

	Stat Stat // Twstat, Rstat
}

// IsResponse reports whether the message is an R-message; T and R
// codepoints for the same operation always differ by one, with T even.
func (f *Fcall) IsResponse() bool { return f.Type%2 == 1 }

// ResponseType returns the R-type that answers a T-type.
func ResponseType(t uint8) uint8 { return t + 1 }
