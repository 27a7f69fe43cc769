// Package aggregator fans one identification request out to every enabled
// provider and folds the per-provider answers into a single ranked list.
//
// The Service runs each provider call as an independent worker pool task with
// its own timeout and circuit breaker, consults the shared result cache before
// going upstream, and records exactly one ProviderCallResult per configured
// provider no matter how the call ended. One provider failing, timing out, or
// sitting behind an open circuit never disturbs its siblings; the aggregate
// call itself only errors on invalid input.
//
// Merging starts from the primary provider (first in the configured order) and
// attaches matching candidates from later providers as alternate readings, so
// two providers agreeing about a plant produce one row with corroboration
// instead of two rows.
//
// Add new providers by implementing identification.Provider and listing them
// in the configured order; nothing in this package changes for that.
package aggregator
