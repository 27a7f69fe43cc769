// Package identification defines the canonical data model shared by the
// provider adapters and the aggregation pipeline.
//
// Every provider response is normalized into Suggestion values before anything
// downstream touches it: provider-specific payload shapes stay inside the
// adapter subpackages (plantid, plantnet). The package also owns the content
// fingerprint and cache key derivation so equal inputs map to equal cache
// identities everywhere.
//
// Types here are treated as immutable once constructed. Code that needs a
// modified Suggestion clones it rather than mutating in place; the merge
// engine relies on that.
package identification
