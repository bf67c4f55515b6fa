package exmdb

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/danmuck/exmdbctl/internal/protocol/frame"
	"github.com/danmuck/exmdbctl/internal/protocol/transport"
	"github.com/danmuck/exmdbctl/internal/testutil/exmdbtest"
	"github.com/danmuck/exmdbctl/internal/testutil/testlog"
)

const callAnswer uint8 = 0x01

type answerRequest struct{}

func (answerRequest) Serialize(b *frame.Buffer) error {
	b.PutRaw([]byte{callAnswer, 0x02})
	return nil
}

func (answerRequest) Reply() answerResponse { return answerResponse{} }

func (answerRequest) CallName() string { return "answer" }

type answerResponse struct {
	Value uint8
}

func (r *answerResponse) Parse(b *frame.Buffer) error {
	v, err := b.Uint8()
	if err != nil {
		return err
	}
	r.Value = v
	return nil
}

type counterResponse struct {
	Count uint32
}

func (r *counterResponse) Parse(b *frame.Buffer) error {
	v, err := b.Uint32()
	if err != nil {
		return err
	}
	r.Count = v
	return nil
}

func answerHandler(reply exmdbtest.Reply) exmdbtest.Handler {
	return exmdbtest.AcceptConnect(func(call uint8, req *frame.Buffer) exmdbtest.Reply {
		if call != callAnswer {
			return exmdbtest.Fail(uint8(StatusDispatchError))
		}
		return reply
	})
}

func dialMock(t *testing.T, srv *exmdbtest.Server) *Client {
	t.Helper()
	c := New(transport.DefaultConfig())
	if err := c.Connect(context.Background(), srv.Host(), srv.Port(), "/var/lib/gromox/user/", true); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSendReturnsTypedResponse(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.OK(0x2a)))
	c := dialMock(t, srv)

	resp, err := Send(context.Background(), c, answerRequest{})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Value != 42 {
		t.Fatalf("expected 42, got %d", resp.Value)
	}

	frames := srv.Frames()
	if len(frames) != 2 {
		t.Fatalf("expected handshake and request frames, got %d", len(frames))
	}
	want := []byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x02}
	if !bytes.Equal(frames[1], want) {
		t.Fatalf("request frame mismatch: got=%x want=%x", frames[1], want)
	}
}

func TestConnectHandshakeFrame(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.OK(0x2a)))
	c := New(transport.DefaultConfig())
	defer c.Close()
	err := c.ConnectEndpoint(context.Background(), Endpoint{
		Host:     srv.Host(),
		Service:  srv.Port(),
		Prefix:   "/d",
		Private:  true,
		RemoteID: "t:1",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if got := c.Endpoint().Prefix; got != "/d" {
		t.Fatalf("unexpected endpoint prefix: %q", got)
	}

	frames := srv.Frames()
	if len(frames) != 1 {
		t.Fatalf("expected one handshake frame, got %d", len(frames))
	}
	want := []byte{0x09, 0x00, 0x00, 0x00, CallConnect, '/', 'd', 0x00, 't', ':', '1', 0x00, 0x01}
	if !bytes.Equal(frames[0], want) {
		t.Fatalf("handshake frame mismatch: got=%x want=%x", frames[0], want)
	}
}

func TestSendServerFailureCarriesCode(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.Fail(5)))
	c := dialMock(t, srv)

	_, err := Send(context.Background(), c, answerRequest{})
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected *ServerError, got %v", err)
	}
	if se.Code != StatusMisconfigMode {
		t.Fatalf("expected code 5, got %d", se.Code)
	}
	if code, ok := StatusOf(err); !ok || code != 5 {
		t.Fatalf("StatusOf=%d,%v", code, ok)
	}
	if !c.Connected() {
		t.Fatalf("server failure must not drop the connection")
	}

	if _, err := Send(context.Background(), c, answerRequest{}); !errors.As(err, &se) {
		t.Fatalf("expected connection reuse after server error, got %v", err)
	}
}

func TestSendHeaderOnlyReplyIsTransportError(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.Reply{
		Raw:    []byte{0x02, 0x00, 0x00, 0x00},
		Hangup: true,
	}))
	c := dialMock(t, srv)

	_, err := Send(context.Background(), c, answerRequest{})
	if !errors.Is(err, frame.ErrTruncated) {
		t.Fatalf("expected frame.ErrTruncated, got %v", err)
	}
	if _, ok := StatusOf(err); ok {
		t.Fatalf("transport failure must not be a server error: %v", err)
	}
	if c.Connected() {
		t.Fatalf("expected disconnected client after transport failure")
	}
	if _, err := Send(context.Background(), c, answerRequest{}); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendDecodeFailureClosesConnection(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.OK(0x01, 0x02)))
	c := dialMock(t, srv)

	_, err := Invoke[counterResponse](context.Background(), c, "counter", func(b *frame.Buffer) error {
		b.PutUint8(callAnswer)
		return nil
	})
	if !errors.Is(err, ErrDecode) || !errors.Is(err, frame.ErrTruncated) {
		t.Fatalf("expected ErrDecode wrapping ErrTruncated, got %v", err)
	}
	if c.Connected() {
		t.Fatalf("decode failure must close the connection")
	}
}

func TestSendEmptyReplyIsDecodeError(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.Reply{Raw: []byte{0x00, 0x00, 0x00, 0x00}}))
	c := dialMock(t, srv)

	if _, err := Send(context.Background(), c, answerRequest{}); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for missing status byte, got %v", err)
	}
}

func TestInvokeMatchesSend(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.OK(0x2a)))
	c := dialMock(t, srv)

	resp, err := Invoke[answerResponse](context.Background(), c, "answer", func(b *frame.Buffer) error {
		b.PutRaw([]byte{callAnswer, 0x02})
		return nil
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if resp.Value != 42 {
		t.Fatalf("expected 42, got %d", resp.Value)
	}
	frames := srv.Frames()
	if !bytes.Equal(frames[len(frames)-1], []byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x02}) {
		t.Fatalf("invoke frame mismatch: %x", frames[len(frames)-1])
	}
}

func TestSendSerializeErrorKeepsConnection(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.OK(0x2a)))
	c := dialMock(t, srv)

	_, err := Send(context.Background(), c, Call[answerResponse]{
		Name:  "bad",
		Write: func(b *frame.Buffer) error { return b.PutString("a\x00b") },
	})
	if !errors.Is(err, frame.ErrInvalidString) {
		t.Fatalf("expected ErrInvalidString, got %v", err)
	}
	if !c.Connected() {
		t.Fatalf("serialize failure happens before transmission")
	}
	if _, err := Send(context.Background(), c, answerRequest{}); err != nil {
		t.Fatalf("send after serialize failure: %v", err)
	}
}

func TestSendWithoutConnection(t *testing.T) {
	testlog.Start(t)

	c := New(transport.DefaultConfig())
	if _, err := Send(context.Background(), c, answerRequest{}); !errors.Is(err, transport.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestConnectRejectedHandshake(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, func(call uint8, req *frame.Buffer) exmdbtest.Reply {
		return exmdbtest.Fail(uint8(StatusMisconfigPrefix))
	})
	c := New(transport.DefaultConfig())
	err := c.Connect(context.Background(), srv.Host(), srv.Port(), "/nowhere", false)
	if !errors.Is(err, ErrHandshake) {
		t.Fatalf("expected ErrHandshake, got %v", err)
	}
	if code, ok := StatusOf(err); !ok || code != StatusMisconfigPrefix {
		t.Fatalf("expected misconfig-prefix, got %v %v", code, ok)
	}
	if c.Connected() {
		t.Fatalf("rejected handshake must leave client disconnected")
	}
}

func TestConnectValidatesEndpoint(t *testing.T) {
	testlog.Start(t)

	c := New(transport.DefaultConfig())
	if err := c.Connect(context.Background(), "", "5000", "/p", true); !errors.Is(err, ErrHostRequired) {
		t.Fatalf("expected ErrHostRequired, got %v", err)
	}
	if err := c.Connect(context.Background(), "127.0.0.1", "5000", " ", true); !errors.Is(err, ErrPrefixRequired) {
		t.Fatalf("expected ErrPrefixRequired, got %v", err)
	}
}

func TestWithClosesOnEveryExitPath(t *testing.T) {
	testlog.Start(t)

	srv := exmdbtest.NewServer(t, answerHandler(exmdbtest.OK(0x2a)))
	ep := Endpoint{Host: srv.Host(), Service: srv.Port(), Prefix: "/var/lib/gromox/user/", Private: true}

	var held *Client
	boom := errors.New("boom")
	err := With(context.Background(), transport.DefaultConfig(), ep, func(c *Client) error {
		held = c
		if _, err := Send(context.Background(), c, answerRequest{}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if held == nil || held.Connected() {
		t.Fatalf("expected client closed after error return")
	}

	held = nil
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = With(context.Background(), transport.DefaultConfig(), ep, func(c *Client) error {
			held = c
			panic("fn panicked")
		})
	}()
	if held == nil || held.Connected() {
		t.Fatalf("expected client closed after panic")
	}
}

func TestStatusString(t *testing.T) {
	if got := StatusMisconfigMode.String(); got != "misconfig-mode" {
		t.Fatalf("unexpected name: %q", got)
	}
	if got := Status(200).String(); got != "status(200)" {
		t.Fatalf("unexpected fallback name: %q", got)
	}
	err := &ServerError{Code: StatusAccessDeny, Message: "exmdb: ping_store rejected"}
	if got := err.Error(); got != "exmdb: ping_store rejected: code=1 (access-deny)" {
		t.Fatalf("unexpected error text: %q", got)
	}
}
