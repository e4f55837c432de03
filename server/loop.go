package server

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/keaganluttrell/ninep/p9"
	"github.com/keaganluttrell/ninep/transport"
)

// Server owns a handler table, a listener, and a timer wheel. Rather
// than libixp's single-threaded select loop multiplexing every
// connection's fd, each accepted connection gets its own goroutine
// reading handleFcall in a loop — Go's native analogue of "the read
// callback fires whenever the fd is readable" — while one dedicated
// goroutine drives the timer wheel on its own clock. Listen can be
// called more than once to serve several transports from one Server.
type Server struct {
	Handlers *Handlers
	Timers   *TimerWheel

	listeners []net.Listener
	conns     []*Conn9
}

// NewServer returns a Server ready to Listen on any number of
// transports before Serve is called.
func NewServer(h *Handlers) *Server {
	return &Server{Handlers: h, Timers: NewTimerWheel()}
}

// Listen registers ln; Serve accepts connections from it, handing
// each one to ServeConn. Call it once per transport (a TCP listener,
// a Unix listener, ...) before Serve.
func (s *Server) Listen(ln net.Listener) {
	s.listeners = append(s.listeners, ln)
}

// Serve runs until ctx is canceled, accepting connections on every
// listener registered via Listen and driving the timer wheel. It
// returns once every listener has been closed by ctx cancellation.
func (s *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	go s.runTimers(ctx, done)

	errc := make(chan error, len(s.listeners))
	for _, ln := range s.listeners {
		go s.acceptLoop(ctx, ln, errc)
	}

	<-ctx.Done()
	for _, ln := range s.listeners {
		ln.Close()
	}
	<-done
	return ctx.Err()
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, errc chan<- error) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logf("server: accept on %s: %v", ln.Addr(), err)
			errc <- err
			return
		}
		go s.ServeConn(ctx, transport.NewStreamConn(nc))
	}
}

// ServeConn drives one connection until it hangs up or ctx is
// canceled, synthesizing the Tflush/Tclunk teardown cleanupconn
// performs so every fid and in-flight request the client never
// explicitly released is still accounted for.
func (s *Server) ServeConn(ctx context.Context, conn transport.Conn) {
	c := newConn9(conn, s.Handlers)
	for {
		select {
		case <-ctx.Done():
			cleanupConn(ctx, c)
			return
		default:
		}

		if err := handleFcall(ctx, c); err != nil {
			cleanupConn(ctx, c)
			return
		}

		c.mu.Lock()
		hungup := c.hungup
		c.mu.Unlock()
		if hungup {
			cleanupConn(ctx, c)
			return
		}
	}
}

// cleanupConn synthesizes a Tflush for every request still registered
// under a tag and a Tclunk for every fid still open, draining the
// connection's state the way a real client disconnecting cleanly
// would have, then waits for nothing further — Respond on a synthetic
// request skips the wire write and just releases bookkeeping.
func cleanupConn(ctx context.Context, c *Conn9) {
	c.mu.Lock()
	c.hungup = true
	tags := make([]uint16, 0, len(c.tags))
	for tag := range c.tags {
		tags = append(tags, tag)
	}
	fids := make([]*Fid, 0, len(c.fids))
	for _, f := range c.fids {
		fids = append(fids, f)
	}
	c.mu.Unlock()

	for _, tag := range tags {
		voidRequest(ctx, c, tag)
	}
	for _, fid := range fids {
		voidFid(ctx, c, fid)
	}
	c.decref()
}

func voidRequest(ctx context.Context, c *Conn9, tag uint16) {
	orig, ok := c.lookupTag(tag)
	if !ok {
		return
	}
	c.incref()
	flush := &Req9{
		Conn:      c,
		Ctx:       ctx,
		Ifcall:    &p9.Fcall{Type: p9.Tflush, Tag: p9.NoTag, Oldtag: tag},
		Ofcall:    &p9.Fcall{},
		OldReq:    orig,
		synthetic: true,
	}
	if c.srv.Flush != nil {
		c.srv.Flush(flush)
	} else {
		flush.Respond("")
	}
}

func voidFid(ctx context.Context, c *Conn9, fid *Fid) {
	c.incref()
	clunk := &Req9{
		Conn:      c,
		Ctx:       ctx,
		Ifcall:    &p9.Fcall{Type: p9.Tclunk, Tag: p9.NoTag, Fid: fid.Fid},
		Ofcall:    &p9.Fcall{},
		Fid:       fid,
		synthetic: true,
	}
	if c.srv.Clunk != nil {
		c.srv.Clunk(clunk)
	} else {
		clunk.Respond("")
	}
}

func (s *Server) runTimers(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		wait := s.Timers.Nexttimer()
		if wait == 0 {
			wait = time.Second
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// logf is the server's sole logging entry point.
func logf(format string, args ...any) {
	log.Printf(format, args...)
}
