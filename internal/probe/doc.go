// Package probe supervises an exmdb client that pings a fixed set of stores.
//
// Ownership boundary:
// - connect/reconnect with backoff (the client itself never retries)
// - periodic ping_store per configured store
// - per-store status snapshot and the admin HTTP surface over it
package probe
