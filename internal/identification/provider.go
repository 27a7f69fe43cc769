package identification

import (
	"context"
	"sort"
	"strings"

	"verdant/internal/language"
)

// Provider is implemented by each external classification service adapter.
// Implementations normalize their raw API payloads into Suggestion values and
// must be safe for concurrent use.
type Provider interface {
	// ID returns the stable identifier used in configuration, cache keys,
	// logs, and results.
	ID() string
	// Identify submits image content and returns normalized suggestions.
	// Calls are idempotent for identical content and options; the
	// orchestrator relies on that when duplicate work slips past the
	// stampede protection.
	Identify(ctx context.Context, content []byte, opts Options) ([]Suggestion, error)
}

// Options carries the per-request knobs that change what a provider returns.
// Only fields that affect the response payload participate in cache keys.
type Options struct {
	// IncludeHealth asks providers that support it for a health assessment.
	IncludeHealth bool
	// Organs hints which plant parts the photo shows (leaf, flower, fruit,
	// bark). Providers that do not take hints ignore it.
	Organs []string
	// Language selects the locale for common names, ISO 639-1.
	Language string
}

// CacheKeyComponent returns a stable canonical encoding of the semantically
// relevant options. Organ hints are sorted and the language is reduced to its
// ISO 639-1 form so spelling variants never split the cache.
func (o Options) CacheKeyComponent() string {
	organs := make([]string, 0, len(o.Organs))
	for _, organ := range o.Organs {
		if trimmed := strings.ToLower(strings.TrimSpace(organ)); trimmed != "" {
			organs = append(organs, trimmed)
		}
	}
	sort.Strings(organs)

	var builder strings.Builder
	builder.WriteString("h=")
	if o.IncludeHealth {
		builder.WriteString("1")
	} else {
		builder.WriteString("0")
	}
	builder.WriteString("|o=")
	builder.WriteString(strings.Join(organs, ","))
	builder.WriteString("|l=")
	builder.WriteString(language.Canonical(o.Language))
	return builder.String()
}
