// Package exmdb is the typed request/response client for the exmdb mailbox
// database protocol.
//
// A Client owns one transport.Conn and one frame.Buffer. Send serializes a
// request, performs one blocking round trip, checks the status byte and
// parses the reply into the response type bound to the request type at
// compile time. Request catalogs live outside this package; they only need
// to implement Request and Response.
//
// A Client carries at most one request in flight and must not be shared
// between goroutines without external locking.
package exmdb
