package exmdb

import "github.com/danmuck/exmdbctl/internal/protocol/frame"

// Response is implemented by pointer receivers of reply types. Parse reads
// the fields that follow the status byte.
type Response interface {
	Parse(b *frame.Buffer) error
}

// Request binds a request to its reply type Resp. Serialize writes the
// call id and fields after the frame header; Reply is a type marker only
// and is never called for data.
type Request[Resp any] interface {
	Serialize(b *frame.Buffer) error
	Reply() Resp
}

// Call is a request assembled from raw arguments, without an intermediate
// request struct.
type Call[Resp any] struct {
	Name  string
	Write func(b *frame.Buffer) error
}

func (c Call[Resp]) Serialize(b *frame.Buffer) error {
	return c.Write(b)
}

func (Call[Resp]) Reply() (r Resp) {
	return r
}

func (c Call[Resp]) CallName() string {
	return c.Name
}

type namedCall interface {
	CallName() string
}

func callName(req any) string {
	if n, ok := req.(namedCall); ok {
		if name := n.CallName(); name != "" {
			return name
		}
	}
	return "unnamed"
}
