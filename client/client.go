// Package client implements the 9P2000 client side: a tag/fid
// multiplexer shared by every Fid so concurrent callers can issue
// overlapping RPCs across one connection.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/keaganluttrell/ninep/p9"
	"github.com/keaganluttrell/ninep/pkg/resilience"
	"github.com/keaganluttrell/ninep/transport"
)

const defaultMsize = 8192

// Client multiplexes RPCs over a single connection. One goroutine at
// a time — the elected muxer — reads responses off the wire and
// dispatches them to whichever caller is waiting on that tag; every
// other blocked caller just sleeps on its own condition variable.
type Client struct {
	conn  transport.Conn
	Msize uint32

	writeMu sync.Mutex

	mu      sync.Mutex
	tagRend *sync.Cond
	sleep   *waiter // sentinel head/tail of the circular sleeping list
	muxer   *waiter
	wait    []*waiter
	nwait   int
	mwait   int
	freetag int
	mintag  uint16
	maxtag  uint16

	fidMu    sync.Mutex
	lastFid  uint32
	freeFids []uint32
}

// Dialer abstracts connection creation so tests can substitute
// net.Pipe-backed fixtures for a real socket.
type Dialer interface {
	Dial(ctx context.Context, address string) (transport.Conn, error)
}

// NetworkDialer dials real addresses through transport.Dial, retrying
// with backoff the way the rest of the stack's network calls do.
type NetworkDialer struct {
	RetryConfig resilience.RetryConfig
}

// NewNetworkDialer returns a NetworkDialer with default retry settings.
func NewNetworkDialer() *NetworkDialer {
	return &NetworkDialer{RetryConfig: resilience.DefaultRetryConfig()}
}

func (d *NetworkDialer) Dial(ctx context.Context, address string) (transport.Conn, error) {
	var conn transport.Conn
	err := resilience.Retry(d.RetryConfig, func() error {
		c, err := transport.Dial(ctx, address)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Mount dials address and performs the version handshake, returning a
// Client ready to issue Attach/Walk/Open/... RPCs.
func Mount(ctx context.Context, dialer Dialer, address string, msize uint32) (*Client, error) {
	conn, err := dialer.Dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("client: mount %s: %w", address, err)
	}
	c := newClient(conn)
	if err := c.version(ctx, msize); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NsMount mounts the service registered as name in the caller's 9P
// namespace directory, i.e. the Unix socket $NAMESPACE/name.
func NsMount(ctx context.Context, dialer Dialer, name string, msize uint32) (*Client, error) {
	path, err := transport.NamespacePath(name)
	if err != nil {
		return nil, fmt.Errorf("client: nsmount %s: %w", name, err)
	}
	return Mount(ctx, dialer, "unix!"+path, msize)
}

// NewClient wraps an already-connected transport without performing
// the version handshake; Msize keeps its default of 8192. Use Mount
// for a client that negotiates the version first.
func NewClient(conn transport.Conn) *Client {
	return newClient(conn)
}

func newClient(conn transport.Conn) *Client {
	c := &Client{
		conn:    conn,
		Msize:   defaultMsize,
		mintag:  0,
		maxtag:  256,
		lastFid: 0,
	}
	c.sleep = &waiter{}
	c.sleep.next = c.sleep
	c.sleep.prev = c.sleep
	c.tagRend = sync.NewCond(&c.mu)
	return c
}

// version negotiates the protocol version and message size. It must
// be the first RPC on a connection and uses NoTag directly, bypassing
// the tag multiplexer entirely — no other request can be outstanding
// while it runs.
func (c *Client) version(ctx context.Context, msize uint32) error {
	if msize == 0 {
		msize = defaultMsize
	}
	req := &p9.Fcall{Type: p9.Tversion, Tag: p9.NoTag, Msize: msize, Version: "9P2000"}

	c.writeMu.Lock()
	err := c.conn.WriteMsg(ctx, req)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("client: version: %w", err)
	}

	resp, err := c.conn.ReadMsg(ctx)
	if err != nil {
		return fmt.Errorf("client: version: %w", err)
	}
	if resp.Type == p9.Rerror {
		return fmt.Errorf("client: version: %s", resp.Ename)
	}
	if resp.Type != p9.Rversion {
		return fmt.Errorf("client: version: unexpected reply type %s", p9.TypeName(resp.Type))
	}
	if resp.Version != "9P2000" {
		return fmt.Errorf("client: version: server offered unsupported version %q", resp.Version)
	}

	if resp.Msize < msize {
		c.Msize = resp.Msize
	} else {
		c.Msize = msize
	}
	return nil
}

// Close tears down the underlying connection. Any RPC blocked in
// flight will see its ReadMsg fail and surface as "unexpected eof".
func (c *Client) Close() error {
	return c.conn.Close()
}
