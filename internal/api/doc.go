// Package api defines wire-format types and converters for the daemon HTTP
// API. It translates internal identification models into transport-friendly
// DTOs so HTTP and CLI consumers never couple to internal types.
//
// # Key Types
//
// IdentifyRequest/IdentifyResponse: the identify call surface; the request
// carries a base64 image plus options, the response carries the merged
// suggestion ranking and one ProviderCall per configured provider.
//
// Suggestion: transport representation of one identification candidate with
// taxonomy, details, health assessment, and alternate readings.
//
// DaemonStatus: daemon runtime information including per-provider circuit
// state, cache effectiveness, and lease activity.
//
// # Converters
//
// FromAggregatedResult: identification.AggregatedResult -> IdentifyResponse.
//
// FromBreakerSnapshots: breaker.Snapshot -> BreakerStatus with stringified
// states and formatted open timestamps.
//
// FromCacheStats: resultcache.Stats plus entry count -> CacheStatus.
//
// # Client
//
// Client wraps the daemon's HTTP API for the CLI. It resolves the configured
// bind address into a base URL and reports an unreachable daemon as
// ErrDaemonUnavailable so callers can fall back to local inspection.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (identification.CallStatus,
// breaker.State) are exposed as lowercase strings. Timestamps use RFC3339
// with milliseconds; latencies are integral milliseconds. Empty taxonomy and
// details blocks are omitted rather than serialized as zero objects.
package api
