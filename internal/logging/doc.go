// Package logging centralizes slog construction and shared logging helpers.
//
// New builds a logger from explicit options while NewFromConfig derives one
// from application configuration, teeing output to stdout and the daemon log
// file. The console format renders compact single-line records with the
// component name folded into the message prefix; the json format emits
// machine-readable records for log shippers.
//
// The package also exports the standardized attribute keys (component,
// provider, correlation_id) and context helpers so every subsystem labels its
// records the same way.
package logging
