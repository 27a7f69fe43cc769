// Package daemon coordinates the long-running Verdant process.
//
// It wires configuration, the aggregation service, the SQLite stores, and the
// HTTP operational API into a single lifecycle with flock-based locking to
// prevent multiple instances. Background janitors sweep expired cache entries
// and stale fill leases while the daemon runs.
//
// Keep orchestration logic here: identification behavior lives in the
// aggregator and provider packages while the daemon focuses on startup,
// shutdown, and the operational surface.
package daemon
