package transport

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keaganluttrell/ninep/p9"
)

func TestStreamConnRoundTrip(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	a := NewStreamConn(c1)
	b := NewStreamConn(c2)

	want := &p9.Fcall{Type: p9.Tversion, Tag: p9.NoTag, Msize: 8192, Version: "9P2000"}

	go func() {
		_ = a.WriteMsg(context.Background(), want)
	}()

	got, err := b.ReadMsg(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, want.Msize, got.Msize)
	assert.Equal(t, want.Version, got.Version)
}

func TestReadFrameRejectsShortSize(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	go func() {
		c1.Write([]byte{1, 0, 0, 0})
		c1.Close()
	}()

	_, err := ReadFrame(c2)
	assert.Error(t, err)
}

func TestFramerStreamsConcatenatedMessages(t *testing.T) {
	msgs := []*p9.Fcall{
		{Type: p9.Tversion, Tag: p9.NoTag, Msize: 8192, Version: "9P2000"},
		{Type: p9.Twalk, Tag: 1, Fid: 0, Newfid: 1, Wname: []string{"a", "b"}},
		{Type: p9.Rread, Tag: 2, Data: []byte("payload")},
		{Type: p9.Rerror, Tag: 3, Ename: "file does not exist"},
	}

	var stream bytes.Buffer
	for _, f := range msgs {
		assert.NoError(t, WriteFcall(&stream, f))
	}

	for _, want := range msgs {
		got, err := ReadFcall(&stream)
		assert.NoError(t, err)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Tag, got.Tag)
	}
	assert.Zero(t, stream.Len())
}

func TestSplitAddressTCP(t *testing.T) {
	proto, addr, err := splitAddress("tcp!localhost!564")
	assert.NoError(t, err)
	assert.Equal(t, "tcp", proto)
	assert.Equal(t, "localhost:564", addr)
}

func TestSplitAddressUnix(t *testing.T) {
	proto, addr, err := splitAddress("unix!/tmp/ns.glenda/srv")
	assert.NoError(t, err)
	assert.Equal(t, "unix", proto)
	assert.Equal(t, "/tmp/ns.glenda/srv", addr)
}

func TestSplitAddressTCPAnyHost(t *testing.T) {
	proto, addr, err := splitAddress("tcp!*!564")
	assert.NoError(t, err)
	assert.Equal(t, "tcp", proto)
	assert.Equal(t, ":564", addr)
}

func TestSplitAddressNoProtocol(t *testing.T) {
	_, _, err := splitAddress("localhost:564")
	assert.Error(t, err)
}

func TestDialAnnounceTCP(t *testing.T) {
	ln, err := Announce("tcp!127.0.0.1!0")
	assert.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()
		srv := NewStreamConn(nc)
		f, err := srv.ReadMsg(context.Background())
		if err != nil {
			return
		}
		f.Type = p9.Rversion
		srv.WriteMsg(context.Background(), f)
	}()

	conn, err := Dial(context.Background(), "tcp!127.0.0.1!"+strconv.Itoa(addr.Port))
	assert.NoError(t, err)
	defer conn.Close()

	err = conn.WriteMsg(context.Background(), &p9.Fcall{Type: p9.Tversion, Tag: p9.NoTag, Msize: 8192, Version: "9P2000"})
	assert.NoError(t, err)

	resp, err := conn.ReadMsg(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, uint8(p9.Rversion), resp.Type)

	<-done
}
