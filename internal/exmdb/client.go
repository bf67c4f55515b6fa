package exmdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/exmdbctl/internal/observability"
	"github.com/danmuck/exmdbctl/internal/protocol/frame"
	"github.com/danmuck/exmdbctl/internal/protocol/transport"
	"github.com/rs/zerolog/log"
)

// Endpoint names an exmdb server and the store area a session binds to.
type Endpoint struct {
	Host    string
	Service string
	// Prefix is the store directory prefix announced in the handshake.
	Prefix string
	// Private selects private (user) stores over public (domain) stores.
	Private bool
	// RemoteID identifies this client to the server; defaults to
	// "exmdbctl:<pid>".
	RemoteID string
}

func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" {
		return ErrHostRequired
	}
	if strings.TrimSpace(e.Prefix) == "" {
		return ErrPrefixRequired
	}
	return nil
}

type Client struct {
	conn     *transport.Conn
	buf      frame.Buffer
	endpoint Endpoint
}

func New(cfg transport.Config) *Client {
	return &Client{conn: transport.NewConn(cfg)}
}

// Dial returns a connected, handshaken client. Callers own the returned
// client and must Close it.
func Dial(ctx context.Context, cfg transport.Config, ep Endpoint) (*Client, error) {
	c := New(cfg)
	if err := c.ConnectEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return c, nil
}

// With dials ep, runs fn and closes the client on every exit path,
// including a panic inside fn.
func With(ctx context.Context, cfg transport.Config, ep Endpoint, fn func(*Client) error) (err error) {
	c, err := Dial(ctx, cfg, ep)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(c)
}

// Connect opens the transport and performs the exmdb connect handshake.
func (c *Client) Connect(ctx context.Context, host, service, prefix string, private bool) error {
	return c.ConnectEndpoint(ctx, Endpoint{
		Host:    host,
		Service: service,
		Prefix:  prefix,
		Private: private,
	})
}

func (c *Client) ConnectEndpoint(ctx context.Context, ep Endpoint) error {
	if err := ep.Validate(); err != nil {
		return err
	}
	if ep.RemoteID == "" {
		ep.RemoteID = fmt.Sprintf("exmdbctl:%d", os.Getpid())
	}
	if err := c.conn.Connect(ctx, ep.Host, ep.Service); err != nil {
		return err
	}

	_, err := Send(ctx, c, ConnectRequest{
		Prefix:   ep.Prefix,
		RemoteID: ep.RemoteID,
		Private:  ep.Private,
	})
	if err != nil {
		_ = c.conn.Close()
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}
	c.endpoint = ep
	log.Info().
		Str("addr", c.conn.RemoteAddr()).
		Str("prefix", ep.Prefix).
		Bool("private", ep.Private).
		Msg("exmdb session ready")
	return nil
}

// Close releases the connection. It is safe to call on a closed client.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Connected() bool {
	return c.conn.Connected()
}

// Endpoint returns the endpoint of the last successful handshake.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Send performs one round trip for req and returns the reply type bound to
// it. A non-success status byte yields *ServerError; transport and decode
// failures are returned as-is and leave the client disconnected.
func Send[Resp any, P interface {
	*Resp
	Response
}](ctx context.Context, c *Client, req Request[Resp]) (Resp, error) {
	var resp Resp
	call := callName(req)
	start := time.Now()

	sent, err := c.roundTrip(ctx, req)
	if err != nil {
		c.record(call, "error", start, sent, err)
		return resp, err
	}

	code, err := c.buf.Uint8()
	if err != nil {
		err = c.desync(call, err)
		c.record(call, "error", start, sent, err)
		return resp, err
	}
	if status := Status(code); status != StatusSuccess {
		err := &ServerError{Code: status, Message: "exmdb: " + call + " rejected"}
		c.record(call, status.String(), start, sent, err)
		return resp, err
	}

	if err := P(&resp).Parse(&c.buf); err != nil {
		err = c.desync(call, err)
		c.record(call, "error", start, sent, err)
		return resp, err
	}
	if n := c.buf.Remaining(); n > 0 {
		log.Warn().Str("call", call).Int("bytes", n).Msg("exmdb reply has trailing bytes")
	}
	c.record(call, "ok", start, sent, nil)
	return resp, nil
}

// Invoke is Send for a request written directly from raw arguments.
func Invoke[Resp any, P interface {
	*Resp
	Response
}](ctx context.Context, c *Client, name string, write func(b *frame.Buffer) error) (Resp, error) {
	return Send[Resp, P](ctx, c, Call[Resp]{Name: name, Write: write})
}

func (c *Client) roundTrip(ctx context.Context, req interface {
	Serialize(*frame.Buffer) error
}) (int, error) {
	c.buf.Clear()
	if err := c.buf.Start(); err != nil {
		return 0, err
	}
	if err := req.Serialize(&c.buf); err != nil {
		return 0, err
	}
	if err := c.buf.Finalize(); err != nil {
		return 0, err
	}
	sent := c.buf.Len()
	return sent, c.conn.Send(ctx, &c.buf)
}

// desync closes the connection after a reply could not be decoded; the
// byte stream can no longer be trusted.
func (c *Client) desync(call string, err error) error {
	_ = c.conn.Close()
	return fmt.Errorf("%w: %s: %w", ErrDecode, call, err)
}

func (c *Client) record(call, status string, start time.Time, sent int, err error) {
	elapsed := time.Since(start)
	received := 0
	if err == nil || errors.As(err, new(*ServerError)) {
		received = c.buf.Len()
	}
	observability.RecordRoundTrip(call, status, elapsed, sent, received)

	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Str("call", call).
		Str("status", status).
		Dur("elapsed", elapsed).
		Int("sent", sent).
		Int("received", received).
		Msg("exmdb round trip")
}
