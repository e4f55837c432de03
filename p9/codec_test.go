package p9

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func roundTrip(t *testing.T, f *Fcall) *Fcall {
	t.Helper()
	msg := Fcall2Msg(f)
	got, err := Msg2Fcall(msg)
	assert.NoError(t, err)
	return got
}

func TestCodecRoundTrip_Tversion(t *testing.T) {
	f := &Fcall{Type: Tversion, Tag: NoTag, Msize: 8192, Version: "9P2000"}
	got := roundTrip(t, f)
	assert.Equal(t, f.Type, got.Type)
	assert.Equal(t, f.Msize, got.Msize)
	assert.Equal(t, f.Version, got.Version)
}

func TestCodecRoundTrip_Twalk(t *testing.T) {
	f := &Fcall{Type: Twalk, Tag: 7, Fid: 1, Newfid: 2, Wname: []string{"usr", "glenda", "bin"}}
	got := roundTrip(t, f)
	assert.Equal(t, f.Wname, got.Wname)
	assert.Equal(t, f.Newfid, got.Newfid)
}

func TestCodecRoundTrip_Rwalk(t *testing.T) {
	f := &Fcall{Type: Rwalk, Tag: 7, Wqid: []Qid{
		{Type: QTDIR, Version: 0, Path: 1},
		{Type: QTDIR, Version: 0, Path: 2},
	}}
	got := roundTrip(t, f)
	assert.Equal(t, f.Wqid, got.Wqid)
}

func TestCodecRoundTrip_Rread(t *testing.T) {
	f := &Fcall{Type: Rread, Tag: 3, Data: []byte("hello world")}
	got := roundTrip(t, f)
	assert.Equal(t, f.Data, got.Data)
	assert.Equal(t, uint32(len(f.Data)), got.Count)
}

func TestCodecRoundTrip_Twrite(t *testing.T) {
	f := &Fcall{Type: Twrite, Tag: 3, Fid: 4, Offset: 512, Data: []byte("payload")}
	got := roundTrip(t, f)
	assert.Equal(t, f.Data, got.Data)
	assert.Equal(t, f.Offset, got.Offset)
}

func TestCodecRoundTrip_Rerror(t *testing.T) {
	f := &Fcall{Type: Rerror, Tag: 9, Ename: "fid unknown"}
	got := roundTrip(t, f)
	assert.Equal(t, f.Ename, got.Ename)
}

func TestCodecRoundTrip_Rstat(t *testing.T) {
	f := &Fcall{Type: Rstat, Tag: 5, Stat: Stat{
		Type: 0, Dev: 0,
		Qid:    Qid{Type: QTFILE, Version: 3, Path: 99},
		Mode:   0644,
		Atime:  1000,
		Mtime:  2000,
		Length: 4096,
		Name:   "foo.txt",
		Uid:    "glenda",
		Gid:    "glenda",
		Muid:   "glenda",
	}}
	got := roundTrip(t, f)
	assert.Equal(t, f.Stat, got.Stat)
}

func TestCodecRoundTrip_Twstat(t *testing.T) {
	f := &Fcall{Type: Twstat, Tag: 5, Fid: 2, Stat: Stat{
		Qid:   Qid{Type: StatDontTouchU8, Version: StatDontTouchU32, Path: StatDontTouchU64},
		Mode:  StatDontTouchU32,
		Atime: StatDontTouchU32,
		Mtime: StatDontTouchU32,
		Name:  "renamed.txt",
	}}
	got := roundTrip(t, f)
	assert.Equal(t, f.Stat.Name, got.Stat.Name)
	assert.True(t, got.Stat.Qid.Untouched())
}

func TestStatSizeIdentity(t *testing.T) {
	s := &Stat{
		Qid:    Qid{Type: QTFILE, Version: 1, Path: 7},
		Mode:   0644,
		Length: 10,
		Name:   "foo.txt",
		Uid:    "glenda",
		Gid:    "glenda",
		Muid:   "glenda",
	}

	f := &Fcall{Type: Rstat, Tag: 1, Stat: *s}
	msg := Fcall2Msg(f)

	// 4-byte outer size + 1 type + 2 tag + stat's own wire size.
	assert.Equal(t, 4+1+2+s.WireSize(), len(msg))
}

func TestMsg2FcallRejectsTruncated(t *testing.T) {
	f := &Fcall{Type: Tversion, Tag: NoTag, Msize: 8192, Version: "9P2000"}
	msg := Fcall2Msg(f)

	_, err := Msg2Fcall(msg[:len(msg)-2])
	assert.Error(t, err)
}

func TestMsg2FcallRejectsOversizeWalk(t *testing.T) {
	names := make([]string, MaxWalkElem+1)
	for i := range names {
		names[i] = "x"
	}
	f := &Fcall{Type: Twalk, Tag: 1, Fid: 0, Newfid: 1, Wname: names}
	msg := Fcall2Msg(f)

	_, err := Msg2Fcall(msg)
	assert.Error(t, err)
}

func TestTypeNameUnknown(t *testing.T) {
	assert.Equal(t, "Tunknown", TypeName(0))
}

func TestQidEq(t *testing.T) {
	a := Qid{Type: QTFILE, Version: 1, Path: 5}
	b := Qid{Type: QTFILE, Version: 1, Path: 5}
	c := Qid{Type: QTFILE, Version: 2, Path: 5}
	assert.True(t, a.Eq(b))
	assert.False(t, a.Eq(c))
}
