// Package transport owns the single synchronous connection to an exmdb server.
//
// Ownership boundary:
// - dial (tcp, unix, optional tls) and teardown
// - one blocking frame round trip per Send
// - transport/security config and reconnect backoff for callers that supervise
//
// A Conn is not safe for concurrent use. Callers that need parallel traffic
// open one Conn per goroutine.
package transport
