// Package cache holds the in-memory store for small files. Entries are keyed by
// the canonical absolute path and carry the file's modification time; a lookup
// whose mtime differs from the one on disk counts as a miss so the caller
// re-reads the file. Capacity is counted in entries, and entries also expire a
// fixed TTL after insertion. Eviction and sharded locking come from ristretto,
// so concurrent requests for different paths do not contend on one lock.
package cache
