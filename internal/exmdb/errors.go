package exmdb

import (
	"errors"
	"fmt"
)

var (
	ErrDecode         = errors.New("exmdb: decode response")
	ErrHandshake      = errors.New("exmdb: handshake failed")
	ErrPrefixRequired = errors.New("exmdb: store prefix required")
	ErrHostRequired   = errors.New("exmdb: host required")
)

// ServerError reports a well-formed reply whose status byte is not
// StatusSuccess. The connection remains usable.
type ServerError struct {
	Code    Status
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: code=%d (%s)", e.Message, uint8(e.Code), e.Code)
}

// StatusOf returns the server status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return StatusSuccess, false
}
