// Package services defines shared utilities consumed by the aggregation
// pipeline and the provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers, provider names, and
//     calling surfaces for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent call statuses (circuit_open vs timeout vs failure).
//
// Use these helpers when wiring new provider logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
