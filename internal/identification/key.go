package identification

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns the canonical content fingerprint for an image payload.
// Byte-identical uploads always fingerprint identically, which is what makes
// the result cache and stampede protection line up across processes.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CacheKey derives the cache identity for one provider call from the content
// fingerprint, the aggregation API version, the provider, and the
// semantically relevant options. Bumping the API version invalidates every
// cached entry at once.
func CacheKey(fingerprint, apiVersion, providerID string, opts Options) string {
	var builder strings.Builder
	builder.Grow(len(fingerprint) + len(apiVersion) + len(providerID) + 32)
	builder.WriteString(fingerprint)
	builder.WriteByte('|')
	builder.WriteString(strings.TrimSpace(apiVersion))
	builder.WriteByte('|')
	builder.WriteString(strings.TrimSpace(providerID))
	builder.WriteByte('|')
	builder.WriteString(opts.CacheKeyComponent())
	return builder.String()
}
