// Package config loads, normalizes, and validates Verdant configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PLANTID_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, allowing data directories, provider credentials, breaker thresholds,
// and cache policy to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical provider order, and clear validation errors.
package config
