package frame

import "math"

// Buffer is a growable frame buffer. Writes append at the end, reads consume
// from an internal cursor. A Buffer is reused across round trips; Clear
// resets it without releasing the backing array.
type Buffer struct {
	data      []byte
	off       int
	header    int
	started   bool
	finalized bool
}

// Clear drops all content and resets the read cursor and frame state.
func (b *Buffer) Clear() {
	b.data = b.data[:0]
	b.off = 0
	b.header = 0
	b.started = false
	b.finalized = false
}

// Start reserves the length header at the current write position.
func (b *Buffer) Start() error {
	if b.started || b.finalized {
		return ErrAlreadyStarted
	}
	b.header = len(b.data)
	b.data = append(b.data, 0, 0, 0, 0)
	b.started = true
	return nil
}

// Finalize patches the reserved header with the number of bytes written
// after it.
func (b *Buffer) Finalize() error {
	if b.finalized {
		return ErrAlreadyFinalized
	}
	if !b.started {
		return ErrNotStarted
	}
	n := len(b.data) - b.header - HeaderLen
	if uint64(n) > math.MaxUint32 {
		return ErrPayloadTooLarge
	}
	ByteOrder.PutUint32(b.data[b.header:b.header+HeaderLen], uint32(n))
	b.started = false
	b.finalized = true
	return nil
}

// Finalized reports whether the current frame is ready for transmission.
func (b *Buffer) Finalized() bool {
	return b.finalized
}

// Len returns the number of bytes held, header included.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the buffered bytes. The slice aliases the buffer until the
// next write or Clear.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Payload returns the bytes following the length header of a frame that
// starts at offset zero.
func (b *Buffer) Payload() []byte {
	if len(b.data) < HeaderLen {
		return nil
	}
	return b.data[HeaderLen:]
}

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.off
}

// Offset returns the read cursor.
func (b *Buffer) Offset() int {
	return b.off
}

// reset replaces the content with n zero bytes for a frame read.
func (b *Buffer) reset(n int) []byte {
	if cap(b.data) < n {
		b.data = make([]byte, n)
	} else {
		b.data = b.data[:n]
	}
	b.off = 0
	b.header = 0
	b.started = false
	b.finalized = false
	return b.data
}
