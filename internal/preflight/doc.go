// Package preflight provides readiness checks for the directories,
// provider credentials, and local stores that Verdant depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll during startup and refuses to serve when a
//     required check fails, so misconfiguration surfaces before the first
//     identification request instead of inside one.
//   - The CLI "verdant status" command renders the same results to show
//     operators what the daemon sees.
//
// Checks gated by a config toggle (the result cache) are skipped when the
// feature is disabled.
package preflight
