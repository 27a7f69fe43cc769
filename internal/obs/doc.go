// Package obs defines the Prometheus collectors exported by the daemon.
//
// NewMetrics registers every collector against a caller-supplied registry so
// tests can use isolated registries. Collectors are plain exported fields;
// subsystems receive the Metrics value and increment what they own.
package obs
