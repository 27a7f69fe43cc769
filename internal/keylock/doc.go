// Package keylock provides leased per-key locks backed by SQLite so that
// concurrent identification requests for the same content fetch from a
// provider exactly once.
//
// Leases self-expire: a holder that crashes without releasing delays the next
// acquirer by at most one TTL, after which the expired row is taken over
// in place. A generation counter increments on every takeover so handoffs are
// visible in logs. The store never blocks waiting for a lease; callers poll
// with their own bounded wait.
//
// The lock protects work deduplication, not correctness. Callers must treat
// the protected fetch as idempotent, because a lease expiring mid-fetch
// allows a second fetch to proceed.
package keylock
