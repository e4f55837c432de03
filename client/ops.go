package client

import (
	"context"
	"io"

	"github.com/keaganluttrell/ninep/p9"
)

// capIounit maps a server-advertised iounit onto the connection's own
// limit: an advertised 0 means "no per-fid limit beyond the
// connection's", and nothing may exceed msize minus Twrite header room.
func (c *Client) capIounit(advertised uint32) uint32 {
	// IOHDRSZ: Tread/Twrite header overhead that must fit within msize.
	const ioHdrSz = 24
	limit := c.Msize
	if limit > ioHdrSz {
		limit -= ioHdrSz
	}
	if advertised > 0 && advertised < limit {
		return advertised
	}
	return limit
}

// chunkSize bounds a single Tread/Twrite payload for f; it falls back
// to the connection limit on a fid that was never opened.
func (f *Fid) chunkSize() uint32 { return f.c.capIounit(f.iounit) }

// PreadAt reads up to len(buf) bytes starting at offset, issuing as
// many Tread RPCs as the negotiated chunk size requires. It stops early
// when the server returns fewer bytes than asked for, and returns
// io.EOF when a reply carries no data.
func (f *Fid) PreadAt(ctx context.Context, buf []byte, offset uint64) (int, error) {
	total := 0
	chunk := f.chunkSize()
	for total < len(buf) {
		want := uint32(len(buf) - total)
		if want > chunk {
			want = chunk
		}
		req := &p9.Fcall{Type: p9.Tread, Fid: f.Fid, Offset: offset + uint64(total), Count: want}
		resp, err := f.c.RPC(ctx, req)
		if err != nil {
			return total, err
		}
		n := copy(buf[total:], resp.Data)
		total += n
		if n == 0 {
			return total, io.EOF
		}
		if uint32(n) < want {
			return total, nil
		}
	}
	return total, nil
}

// Read reads into buf starting from f's current offset and advances
// it, giving Fid the semantics of an io.Reader over a 9P file.
func (f *Fid) Read(ctx context.Context, buf []byte) (int, error) {
	f.ioMu.Lock()
	defer f.ioMu.Unlock()
	n, err := f.PreadAt(ctx, buf, f.offset)
	f.offset += uint64(n)
	return n, err
}

// PwriteAt writes buf starting at offset, issuing as many Twrite RPCs
// as the negotiated chunk size requires.
func (f *Fid) PwriteAt(ctx context.Context, buf []byte, offset uint64) (int, error) {
	total := 0
	chunk := f.chunkSize()
	for total < len(buf) {
		end := total + int(chunk)
		if end > len(buf) {
			end = len(buf)
		}
		req := &p9.Fcall{Type: p9.Twrite, Fid: f.Fid, Offset: offset + uint64(total), Data: buf[total:end]}
		resp, err := f.c.RPC(ctx, req)
		if err != nil {
			return total, err
		}
		if resp.Count == 0 {
			return total, io.ErrShortWrite
		}
		total += int(resp.Count)
	}
	return total, nil
}

// Write writes buf starting from f's current offset and advances it.
func (f *Fid) Write(ctx context.Context, buf []byte) (int, error) {
	f.ioMu.Lock()
	defer f.ioMu.Unlock()
	n, err := f.PwriteAt(ctx, buf, f.offset)
	f.offset += uint64(n)
	return n, err
}

// ReadDir reads f's full directory stream and decodes it into a Stat
// per entry. f must be open on a directory qid.
func (f *Fid) ReadDir(ctx context.Context) ([]p9.Stat, error) {
	var stats []p9.Stat
	var buf []byte
	offset := uint64(0)
	chunk := f.chunkSize()

	for {
		req := &p9.Fcall{Type: p9.Tread, Fid: f.Fid, Offset: offset, Count: chunk}
		resp, err := f.c.RPC(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			break
		}
		buf = append(buf, resp.Data...)
		offset += uint64(len(resp.Data))
	}

	m := p9.NewUnpackMsgForStats(buf)
	for {
		st, ok := m.NextStat()
		if !ok {
			break
		}
		stats = append(stats, st)
	}
	return stats, nil
}
