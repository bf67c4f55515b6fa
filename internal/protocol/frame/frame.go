package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderLen is the size of the length prefix in front of every frame.
const HeaderLen = 4

// ByteOrder is used for the length header and all fixed-width fields.
var ByteOrder = binary.LittleEndian

var (
	ErrNotStarted       = errors.New("frame: finalize without start")
	ErrAlreadyStarted   = errors.New("frame: frame already started")
	ErrAlreadyFinalized = errors.New("frame: frame already finalized")
	ErrNotFinalized     = errors.New("frame: frame not finalized")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
	ErrTruncated        = errors.New("frame: truncated data")
	ErrInvalidLength    = errors.New("frame: invalid length")
	ErrInvalidString    = errors.New("frame: invalid string")
	ErrInvalidBool      = errors.New("frame: invalid bool value")
)

// Limits constrains frame decode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 64 * 1024 * 1024,
	}
}

// ReadFrame reads one length-prefixed frame from r into b, replacing its
// content. On success the read cursor sits on the first payload byte.
func ReadFrame(r io.Reader, b *Buffer, limits Limits) error {
	var head [HeaderLen]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: header: %w", ErrTruncated, err)
		}
		return err
	}

	n := ByteOrder.Uint32(head[:])
	if limits.MaxPayloadBytes > 0 && n > limits.MaxPayloadBytes {
		return fmt.Errorf("%w: declared=%d max=%d", ErrPayloadTooLarge, n, limits.MaxPayloadBytes)
	}

	data := b.reset(HeaderLen + int(n))
	copy(data, head[:])
	if n > 0 {
		if _, err := io.ReadFull(r, data[HeaderLen:]); err != nil {
			b.Clear()
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: payload: %w", ErrTruncated, err)
			}
			return err
		}
	}
	b.off = HeaderLen
	return nil
}

// WriteFrame writes a finalized frame to w.
func WriteFrame(w io.Writer, b *Buffer) error {
	if !b.Finalized() {
		return ErrNotFinalized
	}
	_, err := w.Write(b.Bytes())
	return err
}
