package frame

import (
	"math"
	"strings"
)

func (b *Buffer) PutUint8(v uint8) {
	b.data = append(b.data, v)
}

func (b *Buffer) PutUint16(v uint16) {
	b.data = ByteOrder.AppendUint16(b.data, v)
}

func (b *Buffer) PutUint32(v uint32) {
	b.data = ByteOrder.AppendUint32(b.data, v)
}

func (b *Buffer) PutUint64(v uint64) {
	b.data = ByteOrder.AppendUint64(b.data, v)
}

func (b *Buffer) PutInt32(v int32) {
	b.PutUint32(uint32(v))
}

func (b *Buffer) PutInt64(v int64) {
	b.PutUint64(uint64(v))
}

// PutBool writes one byte, 1 for true and 0 for false.
func (b *Buffer) PutBool(v bool) {
	if v {
		b.data = append(b.data, 1)
		return
	}
	b.data = append(b.data, 0)
}

// PutString writes s followed by a NUL terminator. Strings that already
// contain a NUL byte cannot be represented.
func (b *Buffer) PutString(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return ErrInvalidString
	}
	b.data = append(b.data, s...)
	b.data = append(b.data, 0)
	return nil
}

// PutBinary writes a uint32 length prefix followed by v.
func (b *Buffer) PutBinary(v []byte) error {
	if uint64(len(v)) > math.MaxUint32 {
		return ErrInvalidLength
	}
	b.PutUint32(uint32(len(v)))
	b.data = append(b.data, v...)
	return nil
}

// PutRaw appends v without any prefix.
func (b *Buffer) PutRaw(v []byte) {
	b.data = append(b.data, v...)
}

// PutUint32Array writes a uint16 count followed by each value.
func (b *Buffer) PutUint32Array(v []uint32) error {
	if len(v) > math.MaxUint16 {
		return ErrInvalidLength
	}
	b.PutUint16(uint16(len(v)))
	for _, x := range v {
		b.PutUint32(x)
	}
	return nil
}
