package p9

// Stat describes a single file: its qid, permissions, owner strings
// and length. It is the payload of Rstat/Twstat, and the element type
// of a directory read's byte stream.
type Stat struct {
	Type   uint16
	Dev    uint32
	Qid    Qid
	Mode   uint32
	Atime  uint32
	Mtime  uint32
	Length uint64
	Name   string
	Uid    string
	Gid    string
	Muid   string
}

// statFixedSize is the byte length of every fixed-width Stat field:
// type(2) dev(4) qid(1+4+8=13) mode(4) atime(4) mtime(4) length(8).
const statFixedSize = 2 + 4 + 13 + 4 + 4 + 4 + 8

// Size returns the packed length of the fields that follow the Stat's
// own 16-bit size prefix — the value that prefix carries.
func (s *Stat) Size() int {
	return statFixedSize + strSize(s.Name) + strSize(s.Uid) + strSize(s.Gid) + strSize(s.Muid)
}

func strSize(s string) int { return 2 + len(s) }

// WireSize returns the Stat's total packed length, size prefix
// included.
func (s *Stat) WireSize() int { return 2 + s.Size() }

// dontChange sentinels used by Twstat to mean "leave this field as-is".
const (
	StatDontTouchU8  = uint8(0xFF)
	StatDontTouchU16 = uint16(0xFFFF)
	StatDontTouchU32 = uint32(0xFFFFFFFF)
	StatDontTouchU64 = uint64(0xFFFFFFFFFFFFFFFF)
)

// Untouched reports whether every field of a qid is set to its
// "don't change" sentinel.
func (q Qid) Untouched() bool {
	return q.Type == StatDontTouchU8 && q.Version == StatDontTouchU32 && q.Path == StatDontTouchU64
}
