package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/danmuck/exmdbctl/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrDial         = errors.New("transport: dial failed")
)

// Conn owns one connection to an exmdb endpoint. The zero value is not
// usable; construct with NewConn.
type Conn struct {
	cfg  Config
	conn net.Conn
	addr string
}

func NewConn(cfg Config) *Conn {
	return &Conn{cfg: cfg.WithDefaults()}
}

// Connect dials host/service. For unix sockets host is the socket path and
// service is ignored. Any previous connection is closed first; on failure the
// Conn stays disconnected.
func (c *Conn) Connect(ctx context.Context, host, service string) error {
	_ = c.Close()

	if err := c.cfg.ValidateClientTransport(); err != nil {
		return err
	}

	address := host
	if c.cfg.Network == NetworkTCP {
		address = net.JoinHostPort(host, service)
	}

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, c.cfg.Network, address)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDial, c.cfg.Network, address, err)
	}

	conn := rawConn
	if c.cfg.TLS.Enabled {
		tlsCfg, err := c.cfg.clientTLSConfig(address)
		if err != nil {
			_ = rawConn.Close()
			return err
		}
		tlsConn := tls.Client(rawConn, tlsCfg)
		handshakeCtx := ctx
		if c.cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			handshakeCtx, cancel = context.WithTimeout(ctx, c.cfg.ConnectTimeout)
			defer cancel()
		}
		if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
			_ = rawConn.Close()
			return fmt.Errorf("%w: tls handshake %s: %w", ErrDial, address, err)
		}
		conn = tlsConn
	}

	c.conn = conn
	c.addr = address
	log.Debug().
		Str("network", c.cfg.Network).
		Str("addr", address).
		Bool("tls", c.cfg.TLS.Enabled).
		Msg("transport connected")
	return nil
}

// Close releases the connection. Closing a disconnected Conn is a no-op.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	log.Debug().Str("addr", c.addr).Msg("transport closed")
	return err
}

func (c *Conn) Connected() bool {
	return c.conn != nil
}

// RemoteAddr returns the last dialed address.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// Send writes the finalized frame held by b and blocks until one full
// response frame has been read back into b. Any failure closes the
// connection; the stream position is unknown afterwards. Cancelling ctx
// interrupts a blocked write or read. A cancel that lands during the round
// trip closes the connection even when the reply arrived intact, since the
// interrupt may still be rewriting its deadlines.
func (c *Conn) Send(ctx context.Context, b *frame.Buffer) (err error) {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer func() {
		if stop() {
			return
		}
		_ = c.Close()
		if err != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
	}()

	if err := c.conn.SetWriteDeadline(deadline(ctx, c.cfg.WriteTimeout)); err != nil {
		_ = c.Close()
		return err
	}
	if err := frame.WriteFrame(c.conn, b); err != nil {
		if !errors.Is(err, frame.ErrNotFinalized) {
			_ = c.Close()
		}
		return err
	}

	if err := c.conn.SetReadDeadline(deadline(ctx, c.cfg.ReadTimeout)); err != nil {
		_ = c.Close()
		return err
	}
	if err := frame.ReadFrame(c.conn, b, c.cfg.Limits); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

// deadline returns the earlier of now+timeout and the ctx deadline; the
// zero time when neither applies.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}
