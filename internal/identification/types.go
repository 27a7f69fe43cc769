package identification

import (
	"strings"
	"time"
)

// CallStatus classifies the outcome of a single provider call.
type CallStatus string

const (
	CallStatusSuccess     CallStatus = "success"
	CallStatusFailure     CallStatus = "failure"
	CallStatusCircuitOpen CallStatus = "circuit_open"
	CallStatusTimeout     CallStatus = "timeout"
)

// Taxonomy carries the botanical classification chain for a suggestion.
// Fields a provider does not report stay empty.
type Taxonomy struct {
	Kingdom string `json:"kingdom,omitempty"`
	Phylum  string `json:"phylum,omitempty"`
	Class   string `json:"class,omitempty"`
	Order   string `json:"order,omitempty"`
	Family  string `json:"family,omitempty"`
	Genus   string `json:"genus,omitempty"`
}

// Details holds supplementary metadata attached to a suggestion.
type Details struct {
	Description string   `json:"description,omitempty"`
	GBIFID      int64    `json:"gbifId,omitempty"`
	Authorship  string   `json:"authorship,omitempty"`
	EdibleParts []string `json:"edibleParts,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// DiseaseSuggestion describes one candidate disease from a health assessment.
type DiseaseSuggestion struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	Description string  `json:"description,omitempty"`
}

// HealthAssessment captures plant health detection reported by providers that
// support it.
type HealthAssessment struct {
	IsHealthy   bool                `json:"isHealthy"`
	Probability float64             `json:"probability"`
	Diseases    []DiseaseSuggestion `json:"diseases,omitempty"`
}

// AlternateReading records a corroborating match from another provider,
// attached to a suggestion during merging.
type AlternateReading struct {
	Provider       string  `json:"provider"`
	ScientificName string  `json:"scientificName,omitempty"`
	Confidence     float64 `json:"confidence"`
	RawScore       float64 `json:"rawScore,omitempty"`
	GBIFID         int64   `json:"gbifId,omitempty"`
	Authorship     string  `json:"authorship,omitempty"`
}

// Suggestion is one normalized identification candidate. Confidence is always
// scaled to [0, 1]; RawScore preserves whatever the provider reported before
// normalization.
type Suggestion struct {
	Provider       string             `json:"provider"`
	ScientificName string             `json:"scientificName"`
	CommonNames    []string           `json:"commonNames,omitempty"`
	Confidence     float64            `json:"confidence"`
	RawScore       float64            `json:"rawScore,omitempty"`
	Taxonomy       Taxonomy           `json:"taxonomy,omitempty"`
	Details        Details            `json:"details,omitempty"`
	Health         *HealthAssessment  `json:"health,omitempty"`
	Alternates     []AlternateReading `json:"alternates,omitempty"`
}

// IdentityKey returns the normalized key used to match suggestions across
// providers: the scientific name when present, otherwise the first common name
// that survives normalization. Empty means the suggestion cannot be matched
// and always merges as a standalone entry.
func (s Suggestion) IdentityKey() string {
	if key := NormalizeName(s.ScientificName); key != "" {
		return key
	}
	for _, name := range s.CommonNames {
		if key := NormalizeName(name); key != "" {
			return key
		}
	}
	return ""
}

// DisplayName favors the scientific name and falls back to the first common
// name so callers always have something printable.
func (s Suggestion) DisplayName() string {
	if name := strings.TrimSpace(s.ScientificName); name != "" {
		return name
	}
	for _, name := range s.CommonNames {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			return trimmed
		}
	}
	return "unknown"
}

// Clone returns a deep copy. Merging constructs new values from clones so the
// per-provider inputs remain untouched.
func (s Suggestion) Clone() Suggestion {
	out := s
	if len(s.CommonNames) > 0 {
		out.CommonNames = make([]string, len(s.CommonNames))
		copy(out.CommonNames, s.CommonNames)
	}
	if len(s.Details.EdibleParts) > 0 {
		out.Details.EdibleParts = make([]string, len(s.Details.EdibleParts))
		copy(out.Details.EdibleParts, s.Details.EdibleParts)
	}
	if s.Health != nil {
		health := *s.Health
		if len(s.Health.Diseases) > 0 {
			health.Diseases = make([]DiseaseSuggestion, len(s.Health.Diseases))
			copy(health.Diseases, s.Health.Diseases)
		}
		out.Health = &health
	}
	if len(s.Alternates) > 0 {
		out.Alternates = make([]AlternateReading, len(s.Alternates))
		copy(out.Alternates, s.Alternates)
	}
	return out
}

// ProviderCallResult reports the outcome of one provider call inside an
// aggregated response. Exactly one exists per configured provider per request,
// regardless of how the call ended.
type ProviderCallResult struct {
	Provider    string        `json:"provider"`
	Status      CallStatus    `json:"status"`
	Suggestions []Suggestion  `json:"suggestions,omitempty"`
	ErrorDetail string        `json:"errorDetail,omitempty"`
	Latency     time.Duration `json:"latency"`
	FromCache   bool          `json:"fromCache"`
}

// AggregatedResult is the merged response for one identification request.
// ProviderResults preserves the configured provider order.
type AggregatedResult struct {
	Suggestions     []Suggestion         `json:"suggestions"`
	ProviderResults []ProviderCallResult `json:"providerResults"`
}

// SuccessCount reports how many provider calls completed successfully.
func (r AggregatedResult) SuccessCount() int {
	count := 0
	for _, res := range r.ProviderResults {
		if res.Status == CallStatusSuccess {
			count++
		}
	}
	return count
}

// Best returns the top-ranked suggestion, or nil when every provider came back
// empty or failed.
func (r AggregatedResult) Best() *Suggestion {
	if len(r.Suggestions) == 0 {
		return nil
	}
	return &r.Suggestions[0]
}
