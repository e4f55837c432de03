package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keaganluttrell/ninep/p9"
)

func TestMountVersion(t *testing.T) {
	d := &pipeDialer{handler: versionOKHandler(t, func(req *p9.Fcall) *p9.Fcall {
		return &p9.Fcall{Type: p9.Rerror, Ename: "not implemented"}
	})}

	c, err := Mount(context.Background(), d, "tcp!ignored", 8192)
	assert.NoError(t, err)
	assert.Equal(t, uint32(8192), c.Msize)
}

func TestMountRejectsBadVersion(t *testing.T) {
	d := &pipeDialer{handler: simpleHandler(t, func(req *p9.Fcall) *p9.Fcall {
		return &p9.Fcall{Type: p9.Rversion, Version: "9P3000"}
	})}

	_, err := Mount(context.Background(), d, "tcp!ignored", 8192)
	assert.Error(t, err)
}

func TestAttachWalkOpenClunk(t *testing.T) {
	d := &pipeDialer{handler: versionOKHandler(t, func(req *p9.Fcall) *p9.Fcall {
		switch req.Type {
		case p9.Tattach:
			return &p9.Fcall{Type: p9.Rattach, Qid: p9.Qid{Type: p9.QTDIR, Path: 1}}
		case p9.Twalk:
			qids := make([]p9.Qid, len(req.Wname))
			for i := range qids {
				qids[i] = p9.Qid{Type: p9.QTFILE, Path: uint64(i + 2)}
			}
			return &p9.Fcall{Type: p9.Rwalk, Wqid: qids}
		case p9.Topen:
			return &p9.Fcall{Type: p9.Ropen, Qid: p9.Qid{Type: p9.QTFILE, Path: 2}, Iounit: 4096}
		case p9.Tclunk:
			return &p9.Fcall{Type: p9.Rclunk}
		default:
			return &p9.Fcall{Type: p9.Rerror, Ename: "not implemented"}
		}
	})}

	c, err := Mount(context.Background(), d, "tcp!ignored", 8192)
	assert.NoError(t, err)

	root, err := c.Attach(context.Background(), "glenda", "")
	assert.NoError(t, err)
	assert.True(t, root.Qid.IsDir())

	f, err := root.Walk(context.Background(), "usr", "glenda")
	assert.NoError(t, err)
	assert.Equal(t, uint64(3), f.Qid.Path)

	err = f.Open(context.Background(), p9.OREAD)
	assert.NoError(t, err)

	err = f.Clunk(context.Background())
	assert.NoError(t, err)
}

func TestReadWriteChunking(t *testing.T) {
	const payload = "the quick brown fox jumps over the lazy dog"
	stored := make([]byte, 0, len(payload))

	d := &pipeDialer{handler: versionOKHandler(t, func(req *p9.Fcall) *p9.Fcall {
		switch req.Type {
		case p9.Tattach:
			return &p9.Fcall{Type: p9.Rattach, Qid: p9.Qid{Type: p9.QTFILE}}
		case p9.Topen:
			return &p9.Fcall{Type: p9.Ropen, Qid: p9.Qid{}, Iounit: 8}
		case p9.Twrite:
			stored = append(stored, req.Data...)
			return &p9.Fcall{Type: p9.Rwrite, Count: uint32(len(req.Data))}
		case p9.Tread:
			end := int(req.Offset) + int(req.Count)
			if end > len(stored) {
				end = len(stored)
			}
			start := int(req.Offset)
			if start > len(stored) {
				start = len(stored)
			}
			return &p9.Fcall{Type: p9.Rread, Data: stored[start:end]}
		default:
			return &p9.Fcall{Type: p9.Rerror, Ename: "not implemented"}
		}
	})}

	c, err := Mount(context.Background(), d, "tcp!ignored", 8192)
	assert.NoError(t, err)

	root, err := c.Attach(context.Background(), "glenda", "")
	assert.NoError(t, err)
	assert.NoError(t, root.Open(context.Background(), p9.OWRITE))

	n, err := root.Write(context.Background(), []byte(payload))
	assert.NoError(t, err)
	assert.Equal(t, len(payload), n)

	root.offset = 0
	buf := make([]byte, len(payload))
	n, err = root.Read(context.Background(), buf)
	assert.NoError(t, err)
	assert.Equal(t, payload, string(buf[:n]))
}

func TestConcurrentRPCsShareOneMuxer(t *testing.T) {
	d := &pipeDialer{handler: versionOKHandler(t, func(req *p9.Fcall) *p9.Fcall {
		return &p9.Fcall{Type: p9.Rattach, Qid: p9.Qid{Type: p9.QTDIR, Path: uint64(req.Fid)}}
	})}

	c, err := Mount(context.Background(), d, "tcp!ignored", 8192)
	assert.NoError(t, err)

	const n = 50
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := c.Attach(context.Background(), "glenda", "")
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestFidRecycling(t *testing.T) {
	c := newClient(nil)
	a := c.getFid()
	b := c.getFid()
	assert.NotEqual(t, a, b)

	c.putFid(a)
	reused := c.getFid()
	assert.Equal(t, a, reused)
}

func TestFidRecyclingShrinksLastFid(t *testing.T) {
	c := newClient(nil)

	// Paired allocate/release of the newest fid must not grow the fid
	// space.
	for i := 0; i < 100; i++ {
		fid := c.getFid()
		c.putFid(fid)
	}
	assert.Equal(t, uint32(1), c.getFid())
}

func TestWalkRejectsTooManyElements(t *testing.T) {
	d := &pipeDialer{handler: versionOKHandler(t, func(req *p9.Fcall) *p9.Fcall {
		return &p9.Fcall{Type: p9.Rattach, Qid: p9.Qid{Type: p9.QTDIR, Path: 1}}
	})}

	c, err := Mount(context.Background(), d, "tcp!ignored", 8192)
	assert.NoError(t, err)

	root, err := c.Attach(context.Background(), "glenda", "")
	assert.NoError(t, err)

	names := make([]string, p9.MaxWalkElem+1)
	for i := range names {
		names[i] = "x"
	}
	_, err = root.Walk(context.Background(), names...)
	assert.Error(t, err)
}
