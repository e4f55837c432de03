package p9

import "encoding/binary"

// mode selects which direction a Msg's primitives move bytes.
type mode uint8

const (
	modePack mode = iota
	modeUnpack
)

// Msg is a cursor-carrying buffer used to pack or unpack one 9P
// message. The same primitive operations run in either direction;
// Mode decides whether they write to or read from Data. On overflow
// — an unpack that runs past the declared length — the cursor keeps
// advancing past End but no further bytes are copied out; callers
// check Overflow() once at the end rather than after every field.
type Msg struct {
	Data []byte
	Pos  int
	End  int
	Mode mode

	overflow bool
}

// NewPackMsg returns a Msg ready to accumulate an outgoing message.
// sizeHint only pre-sizes the backing slice; it is not a limit.
func NewPackMsg(sizeHint int) *Msg {
	if sizeHint < 16 {
		sizeHint = 16
	}
	return &Msg{Data: make([]byte, 0, sizeHint), Mode: modePack}
}

// NewUnpackMsg returns a Msg that reads back the given frame.
func NewUnpackMsg(buf []byte) *Msg {
	return &Msg{Data: buf, End: len(buf), Mode: modeUnpack}
}

// Overflow reports whether any operation ran past the message's
// declared bound. A malformed message is any Msg for which this is true.
func (m *Msg) Overflow() bool { return m.overflow }

func (m *Msg) u8(v *uint8) {
	if m.Mode == modePack {
		m.Data = append(m.Data, *v)
		m.Pos = len(m.Data)
		m.End = m.Pos
		return
	}
	if m.Pos+1 > m.End {
		m.overflow = true
		m.Pos++
		return
	}
	*v = m.Data[m.Pos]
	m.Pos++
}

func (m *Msg) u16(v *uint16) {
	if m.Mode == modePack {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], *v)
		m.Data = append(m.Data, b[:]...)
		m.Pos = len(m.Data)
		m.End = m.Pos
		return
	}
	if m.Pos+2 > m.End {
		m.overflow = true
		m.Pos += 2
		return
	}
	*v = binary.LittleEndian.Uint16(m.Data[m.Pos:])
	m.Pos += 2
}

func (m *Msg) u32(v *uint32) {
	if m.Mode == modePack {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], *v)
		m.Data = append(m.Data, b[:]...)
		m.Pos = len(m.Data)
		m.End = m.Pos
		return
	}
	if m.Pos+4 > m.End {
		m.overflow = true
		m.Pos += 4
		return
	}
	*v = binary.LittleEndian.Uint32(m.Data[m.Pos:])
	m.Pos += 4
}

func (m *Msg) u64(v *uint64) {
	if m.Mode == modePack {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], *v)
		m.Data = append(m.Data, b[:]...)
		m.Pos = len(m.Data)
		m.End = m.Pos
		return
	}
	if m.Pos+8 > m.End {
		m.overflow = true
		m.Pos += 8
		return
	}
	*v = binary.LittleEndian.Uint64(m.Data[m.Pos:])
	m.Pos += 8
}

// data packs or unpacks a raw n-byte blob with no length prefix.
func (m *Msg) data(v *[]byte, n int) {
	if m.Mode == modePack {
		m.Data = append(m.Data, (*v)...)
		m.Pos = len(m.Data)
		m.End = m.Pos
		return
	}
	if m.Pos+n > m.End {
		m.overflow = true
		m.Pos += n
		*v = nil
		return
	}
	*v = append([]byte(nil), m.Data[m.Pos:m.Pos+n]...)
	m.Pos += n
}

// str packs or unpacks a 16-bit-length-prefixed string.
func (m *Msg) str(v *string) {
	if m.Mode == modePack {
		n := uint16(len(*v))
		m.u16(&n)
		var b []byte
		if len(*v) > 0 {
			b = []byte(*v)
		}
		m.data(&b, len(*v))
		return
	}
	var n uint16
	m.u16(&n)
	var b []byte
	m.data(&b, int(n))
	*v = string(b)
}

// strs packs or unpacks a 16-bit count followed by that many strings.
// An unpack whose count exceeds max poisons the cursor.
func (m *Msg) strs(v *[]string, max int) {
	if m.Mode == modePack {
		n := uint16(len(*v))
		m.u16(&n)
		for i := range *v {
			m.str(&(*v)[i])
		}
		return
	}
	var n uint16
	m.u16(&n)
	if int(n) > max {
		m.overflow = true
		m.Pos = m.End + 1
		*v = nil
		return
	}
	out := make([]string, n)
	for i := range out {
		m.str(&out[i])
	}
	*v = out
}

func (m *Msg) qid(v *Qid) {
	m.u8(&v.Type)
	m.u32(&v.Version)
	m.u64(&v.Path)
}

// qids packs or unpacks a 16-bit count followed by that many qids.
func (m *Msg) qids(v *[]Qid, max int) {
	if m.Mode == modePack {
		n := uint16(len(*v))
		m.u16(&n)
		for i := range *v {
			m.qid(&(*v)[i])
		}
		return
	}
	var n uint16
	m.u16(&n)
	if int(n) > max {
		m.overflow = true
		m.Pos = m.End + 1
		*v = nil
		return
	}
	out := make([]Qid, n)
	for i := range out {
		m.qid(&out[i])
	}
	*v = out
}

// stat packs or unpacks a Stat with its leading 16-bit size prefix,
// where size is the packed length of everything after the prefix.
func (m *Msg) stat(v *Stat) {
	if m.Mode == modePack {
		size := uint16(v.Size())
		m.u16(&size)
		m.u16(&v.Type)
		m.u32(&v.Dev)
		m.qid(&v.Qid)
		m.u32(&v.Mode)
		m.u32(&v.Atime)
		m.u32(&v.Mtime)
		m.u64(&v.Length)
		m.str(&v.Name)
		m.str(&v.Uid)
		m.str(&v.Gid)
		m.str(&v.Muid)
		return
	}

	var size uint16
	m.u16(&size)
	bodyEnd := m.Pos + int(size)
	if bodyEnd > m.End {
		m.overflow = true
		m.Pos = m.End + 1
		return
	}
	// Parse the body against its own declared bound so a short stat
	// poisons the cursor without corrupting whatever follows it.
	body := &Msg{Data: m.Data, Pos: m.Pos, End: bodyEnd, Mode: modeUnpack}
	body.u16(&v.Type)
	body.u32(&v.Dev)
	body.qid(&v.Qid)
	body.u32(&v.Mode)
	body.u32(&v.Atime)
	body.u32(&v.Mtime)
	body.u64(&v.Length)
	body.str(&v.Name)
	body.str(&v.Uid)
	body.str(&v.Gid)
	body.str(&v.Muid)
	if body.overflow {
		m.overflow = true
	}
	m.Pos = bodyEnd
}

// fcallBody packs or unpacks everything after the 4-byte outer size: the
// one-byte type, the 16-bit tag, and a payload chosen by type.
func fcallBody(m *Msg, f *Fcall) {
	m.u8(&f.Type)
	m.u16(&f.Tag)

	switch f.Type {
	case Tversion, Rversion:
		m.u32(&f.Msize)
		m.str(&f.Version)
	case Tauth:
		m.u32(&f.Afid)
		m.str(&f.Uname)
		m.str(&f.Aname)
	case Rauth:
		m.qid(&f.Qid)
	case Tattach:
		m.u32(&f.Fid)
		m.u32(&f.Afid)
		m.str(&f.Uname)
		m.str(&f.Aname)
	case Rattach:
		m.qid(&f.Qid)
	case Rerror:
		m.str(&f.Ename)
	case Tflush:
		m.u16(&f.Oldtag)
	case Rflush:
	case Twalk:
		m.u32(&f.Fid)
		m.u32(&f.Newfid)
		m.strs(&f.Wname, MaxWalkElem)
	case Rwalk:
		m.qids(&f.Wqid, MaxWalkElem)
	case Topen:
		m.u32(&f.Fid)
		m.u8(&f.Mode)
	case Ropen, Rcreate:
		m.qid(&f.Qid)
		m.u32(&f.Iounit)
	case Tcreate:
		m.u32(&f.Fid)
		m.str(&f.Name)
		m.u32(&f.Perm)
		m.u8(&f.Mode)
	case Tread:
		m.u32(&f.Fid)
		m.u64(&f.Offset)
		m.u32(&f.Count)
	case Rread:
		if m.Mode == modePack {
			f.Count = uint32(len(f.Data))
		}
		m.u32(&f.Count)
		m.data(&f.Data, int(f.Count))
	case Twrite:
		m.u32(&f.Fid)
		m.u64(&f.Offset)
		if m.Mode == modePack {
			f.Count = uint32(len(f.Data))
		}
		m.u32(&f.Count)
		m.data(&f.Data, int(f.Count))
	case Rwrite:
		m.u32(&f.Count)
	case Tclunk, Tremove, Tstat:
		m.u32(&f.Fid)
	case Rclunk, Rremove, Rwstat:
	case Rstat:
		m.stat(&f.Stat)
	case Twstat:
		m.u32(&f.Fid)
		m.stat(&f.Stat)
	default:
		m.overflow = true
	}
}

// PackFcall encodes f's body (type, tag, payload) with no outer
// length prefix. Use Fcall2Msg to produce a fully framed message.
func PackFcall(f *Fcall) *Msg {
	m := NewPackMsg(64 + len(f.Data))
	fcallBody(m, f)
	return m
}

// UnpackFcall decodes a message body (no outer length prefix) into a
// fresh Fcall. The returned error is non-nil iff the cursor overflowed.
func UnpackFcall(body []byte) (*Fcall, error) {
	m := NewUnpackMsg(body)
	f := &Fcall{}
	fcallBody(m, f)
	if m.Overflow() {
		return nil, ErrMalformed
	}
	return f, nil
}

// Fcall2Msg packs f and prefixes it with its own total length
// (self-inclusive), producing a fully wire-ready message.
func Fcall2Msg(f *Fcall) []byte {
	body := PackFcall(f)
	total := 4 + len(body.Data)
	out := make([]byte, 4, total)
	binary.LittleEndian.PutUint32(out, uint32(total))
	return append(out, body.Data...)
}

// Msg2Fcall decodes a fully framed message — 4-byte size included —
// into a Fcall.
func Msg2Fcall(msg []byte) (*Fcall, error) {
	if len(msg) < 4 {
		return nil, ErrMalformed
	}
	size := binary.LittleEndian.Uint32(msg)
	if int(size) != len(msg) {
		return nil, ErrMalformed
	}
	return UnpackFcall(msg[4:])
}
