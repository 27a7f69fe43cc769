// Package language normalizes the language preferences sent to identification
// providers.
//
// Providers accept ISO 639-1 codes for localized common names. Operators type
// whatever they type ("EN", "eng", "German"), so config, request handling, and
// cache keys funnel through Canonical before a value reaches a provider client.
// DisplayName serves CLI output.
package language
