package exmdb

import "github.com/danmuck/exmdbctl/internal/protocol/frame"

// CallConnect is the handshake call id every session starts with.
const CallConnect uint8 = 0x00

// ConnectRequest binds the connection to a store prefix.
type ConnectRequest struct {
	Prefix   string
	RemoteID string
	Private  bool
}

func (r ConnectRequest) Serialize(b *frame.Buffer) error {
	b.PutUint8(CallConnect)
	if err := b.PutString(r.Prefix); err != nil {
		return err
	}
	if err := b.PutString(r.RemoteID); err != nil {
		return err
	}
	b.PutBool(r.Private)
	return nil
}

func (ConnectRequest) Reply() ConnectResponse { return ConnectResponse{} }

func (ConnectRequest) CallName() string { return "connect" }

// ConnectResponse carries no fields beyond the status byte.
type ConnectResponse struct{}

func (*ConnectResponse) Parse(*frame.Buffer) error { return nil }
