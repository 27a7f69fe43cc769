// Package resultcache persists normalized provider responses in SQLite and
// deduplicates concurrent fetches for the same content.
//
// Entries are keyed by the derived cache identity (content fingerprint, API
// version, provider, options) and carry individual TTLs. GetOrFetch is the
// main entry point: hits return immediately, misses elect a single fetcher
// through a leased per-key lock, and contended requests wait a bounded
// interval for the winner's fill before fetching themselves. When the lock
// backend itself fails the cache degrades to unprotected fetching; a broken
// lock must never break identification.
//
// Fetch errors are never cached. Corrupt rows are deleted when read and count
// as misses, so a bad write heals on the next fetch.
package resultcache
