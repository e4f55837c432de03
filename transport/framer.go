package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/keaganluttrell/ninep/p9"
)

// MaxMsize bounds a single frame so a corrupt or hostile peer can't
// make ReadFrame allocate without limit. It is independent of the
// msize a Tversion exchange negotiates.
const MaxMsize = 1 << 24

// ReadFrame reads one length-prefixed 9P message from r: a 4-byte
// little-endian total size followed by (size-4) bytes of body.
func ReadFrame(r io.Reader) ([]byte, error) {
	var szb [4]byte
	if _, err := io.ReadFull(r, szb[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(szb[:])
	if size < 4 {
		return nil, fmt.Errorf("transport: frame size %d too small", size)
	}
	if size > MaxMsize {
		return nil, fmt.Errorf("transport: frame size %d exceeds limit", size)
	}

	buf := make([]byte, size)
	copy(buf, szb[:])
	if _, err := io.ReadFull(r, buf[4:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFcall reads and decodes one framed message from r.
func ReadFcall(r io.Reader) (*p9.Fcall, error) {
	buf, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	f, err := p9.Msg2Fcall(buf)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	return f, nil
}

// WriteFcall encodes f and writes it to w as one frame.
func WriteFcall(w io.Writer, f *p9.Fcall) error {
	buf := p9.Fcall2Msg(f)
	_, err := w.Write(buf)
	return err
}
