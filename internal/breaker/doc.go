// Package breaker implements the per-provider circuit breaker that keeps a
// failing classification service from dragging down every request.
//
// Each breaker walks the closed, open, half_open cycle: consecutive failures
// trip it open, the reset timeout admits a single half-open trial, and enough
// trial successes close it again. While open, calls are rejected in constant
// time with ErrOpen so callers degrade immediately instead of queueing on a
// dead provider.
//
// Breakers are independent; the Registry hands out one per provider name and
// never shares state between them.
package breaker
