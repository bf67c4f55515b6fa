// Package requests is a small exmdb call catalog used by the CLI and the
// store prober. Each call is available as a request struct and as an
// exmdb.Call built from raw arguments.
package requests

import (
	"github.com/danmuck/exmdbctl/internal/exmdb"
	"github.com/danmuck/exmdbctl/internal/protocol/frame"
)

// Call ids from the exmdb call table.
const (
	CallPingStore           uint8 = 0x02
	CallGetStoreAllPropTags uint8 = 0x08
	CallUnloadStore         uint8 = 0x80
)

func writeDirCall(b *frame.Buffer, call uint8, dir string) error {
	b.PutUint8(call)
	return b.PutString(dir)
}

// PingStoreRequest checks that the store under Dir can be loaded.
type PingStoreRequest struct {
	Dir string
}

func (r PingStoreRequest) Serialize(b *frame.Buffer) error {
	return writeDirCall(b, CallPingStore, r.Dir)
}

func (PingStoreRequest) Reply() PingStoreResponse { return PingStoreResponse{} }

func (PingStoreRequest) CallName() string { return "ping_store" }

type PingStoreResponse struct{}

func (*PingStoreResponse) Parse(*frame.Buffer) error { return nil }

func PingStore(dir string) exmdb.Call[PingStoreResponse] {
	return exmdb.Call[PingStoreResponse]{
		Name:  "ping_store",
		Write: func(b *frame.Buffer) error { return writeDirCall(b, CallPingStore, dir) },
	}
}

// GetStoreAllPropTagsRequest lists the property tags set on a store.
type GetStoreAllPropTagsRequest struct {
	Dir string
}

func (r GetStoreAllPropTagsRequest) Serialize(b *frame.Buffer) error {
	return writeDirCall(b, CallGetStoreAllPropTags, r.Dir)
}

func (GetStoreAllPropTagsRequest) Reply() PropTagsResponse { return PropTagsResponse{} }

func (GetStoreAllPropTagsRequest) CallName() string { return "get_store_all_proptags" }

type PropTagsResponse struct {
	Tags []uint32
}

func (r *PropTagsResponse) Parse(b *frame.Buffer) error {
	tags, err := b.Uint32Array()
	if err != nil {
		return err
	}
	r.Tags = tags
	return nil
}

func GetStoreAllPropTags(dir string) exmdb.Call[PropTagsResponse] {
	return exmdb.Call[PropTagsResponse]{
		Name:  "get_store_all_proptags",
		Write: func(b *frame.Buffer) error { return writeDirCall(b, CallGetStoreAllPropTags, dir) },
	}
}

// UnloadStoreRequest asks the server to drop its cached handle for Dir.
type UnloadStoreRequest struct {
	Dir string
}

func (r UnloadStoreRequest) Serialize(b *frame.Buffer) error {
	return writeDirCall(b, CallUnloadStore, r.Dir)
}

func (UnloadStoreRequest) Reply() UnloadStoreResponse { return UnloadStoreResponse{} }

func (UnloadStoreRequest) CallName() string { return "unload_store" }

type UnloadStoreResponse struct{}

func (*UnloadStoreResponse) Parse(*frame.Buffer) error { return nil }

func UnloadStore(dir string) exmdb.Call[UnloadStoreResponse] {
	return exmdb.Call[UnloadStoreResponse]{
		Name:  "unload_store",
		Write: func(b *frame.Buffer) error { return writeDirCall(b, CallUnloadStore, dir) },
	}
}
