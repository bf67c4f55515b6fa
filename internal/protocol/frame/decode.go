package frame

import "bytes"

func (b *Buffer) next(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, ErrTruncated
	}
	out := b.data[b.off : b.off+n]
	b.off += n
	return out, nil
}

func (b *Buffer) Uint8() (uint8, error) {
	p, err := b.next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *Buffer) Uint16() (uint16, error) {
	p, err := b.next(2)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint16(p), nil
}

func (b *Buffer) Uint32() (uint32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(p), nil
}

func (b *Buffer) Uint64() (uint64, error) {
	p, err := b.next(8)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint64(p), nil
}

func (b *Buffer) Int32() (int32, error) {
	v, err := b.Uint32()
	return int32(v), err
}

func (b *Buffer) Int64() (int64, error) {
	v, err := b.Uint64()
	return int64(v), err
}

func (b *Buffer) Bool() (bool, error) {
	v, err := b.Uint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrInvalidBool
	}
}

// String reads a NUL-terminated string and consumes the terminator.
func (b *Buffer) String() (string, error) {
	i := bytes.IndexByte(b.data[b.off:], 0)
	if i < 0 {
		return "", ErrInvalidString
	}
	s := string(b.data[b.off : b.off+i])
	b.off += i + 1
	return s, nil
}

// Binary reads a uint32 length-prefixed blob. The returned slice is a copy.
func (b *Buffer) Binary() ([]byte, error) {
	n, err := b.Uint32()
	if err != nil {
		return nil, err
	}
	if uint64(n) > uint64(b.Remaining()) {
		b.off -= 4
		return nil, ErrInvalidLength
	}
	p, _ := b.next(int(n))
	out := make([]byte, len(p))
	copy(out, p)
	return out, nil
}

// Uint32Array reads a uint16 count followed by that many uint32 values.
func (b *Buffer) Uint32Array() ([]uint32, error) {
	count, err := b.Uint16()
	if err != nil {
		return nil, err
	}
	if int(count)*4 > b.Remaining() {
		b.off -= 2
		return nil, ErrInvalidLength
	}
	out := make([]uint32, count)
	for i := range out {
		out[i], _ = b.Uint32()
	}
	return out, nil
}

// Skip advances the read cursor by n bytes.
func (b *Buffer) Skip(n int) error {
	_, err := b.next(n)
	return err
}
