// Package exmdbtest runs an in-process exmdb endpoint for client tests.
package exmdbtest

import (
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/danmuck/exmdbctl/internal/protocol/frame"
)

// Reply describes how the mock answers one request. Raw, when set, is
// written verbatim instead of a framed status+body reply. Hangup closes the
// connection after writing.
type Reply struct {
	Status uint8
	Body   []byte
	Raw    []byte
	Hangup bool
}

// Handler answers one request. req is positioned after the call id.
type Handler func(call uint8, req *frame.Buffer) Reply

// OK is a success reply with body.
func OK(body ...byte) Reply {
	return Reply{Body: body}
}

// Fail is a reply carrying a non-success status.
func Fail(status uint8) Reply {
	return Reply{Status: status}
}

// AcceptConnect answers the connect handshake with success and hands every
// other call to next.
func AcceptConnect(next Handler) Handler {
	return func(call uint8, req *frame.Buffer) Reply {
		if call == 0x00 {
			return OK()
		}
		return next(call, req)
	}
}

type Server struct {
	ln      net.Listener
	handler Handler

	mu     sync.Mutex
	frames [][]byte
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer listens on 127.0.0.1:0 and serves every accepted connection
// until the test ends.
func NewServer(t testing.TB, handler Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{
		ln:      ln,
		handler: handler,
		conns:   make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

func (s *Server) Port() string {
	_, port, _ := net.SplitHostPort(s.Addr())
	return port
}

// Frames returns copies of every request frame received, header included.
func (s *Server) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	_ = s.ln.Close()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	var req, resp frame.Buffer
	for {
		if err := frame.ReadFrame(conn, &req, frame.DefaultLimits()); err != nil {
			return
		}
		raw := make([]byte, req.Len())
		copy(raw, req.Bytes())
		s.mu.Lock()
		s.frames = append(s.frames, raw)
		s.mu.Unlock()

		call, err := req.Uint8()
		if err != nil {
			return
		}
		reply := s.handler(call, &req)
		if err := write(conn, &resp, reply); err != nil || reply.Hangup {
			return
		}
	}
}

func write(conn net.Conn, b *frame.Buffer, reply Reply) error {
	if reply.Raw != nil {
		_, err := conn.Write(reply.Raw)
		return err
	}
	b.Clear()
	if err := b.Start(); err != nil {
		return err
	}
	b.PutUint8(reply.Status)
	b.PutRaw(reply.Body)
	if err := b.Finalize(); err != nil {
		return err
	}
	err := frame.WriteFrame(conn, b)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
