// Package workerpool bounds the concurrency of outbound provider calls with a
// fixed set of lazily started workers.
//
// One pool is shared across every identification request, so the worker count
// is the process-wide ceiling on simultaneous provider calls regardless of
// request volume. Submit blocks when all workers are busy, which is the
// backpressure signal; callers pass a context to bound that wait.
//
// ParseSize owns the size validation story: operator-supplied values arrive
// as strings and malformed input silently degrades to the default rather
// than refusing to start.
package workerpool
