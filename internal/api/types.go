package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// IdentifyRequest is the JSON body accepted by the identify endpoint.
type IdentifyRequest struct {
	// Image is the base64-encoded photo to identify.
	Image         string   `json:"image"`
	Organs        []string `json:"organs,omitempty"`
	Language      string   `json:"language,omitempty"`
	IncludeHealth bool     `json:"includeHealth,omitempty"`
}

// IdentifyResponse carries the merged ranking plus per-provider call outcomes
// for one identification request.
type IdentifyResponse struct {
	RequestID       string         `json:"requestId,omitempty"`
	Suggestions     []Suggestion   `json:"suggestions"`
	ProviderResults []ProviderCall `json:"providerResults"`
	SuccessCount    int            `json:"successCount"`
}

// Suggestion describes one identification candidate in a transport-friendly
// format.
type Suggestion struct {
	Provider       string             `json:"provider"`
	ScientificName string             `json:"scientificName,omitempty"`
	CommonNames    []string           `json:"commonNames,omitempty"`
	Confidence     float64            `json:"confidence"`
	RawScore       float64            `json:"rawScore,omitempty"`
	Taxonomy       *Taxonomy          `json:"taxonomy,omitempty"`
	Details        *Details           `json:"details,omitempty"`
	Health         *HealthAssessment  `json:"health,omitempty"`
	Alternates     []AlternateReading `json:"alternates,omitempty"`
}

// Taxonomy is the botanical classification chain for a suggestion.
type Taxonomy struct {
	Kingdom string `json:"kingdom,omitempty"`
	Phylum  string `json:"phylum,omitempty"`
	Class   string `json:"class,omitempty"`
	Order   string `json:"order,omitempty"`
	Family  string `json:"family,omitempty"`
	Genus   string `json:"genus,omitempty"`
}

// Details holds supplementary metadata for a suggestion.
type Details struct {
	Description string   `json:"description,omitempty"`
	GBIFID      int64    `json:"gbifId,omitempty"`
	Authorship  string   `json:"authorship,omitempty"`
	EdibleParts []string `json:"edibleParts,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
}

// HealthAssessment reports plant health detection for the photographed plant.
type HealthAssessment struct {
	IsHealthy   bool                `json:"isHealthy"`
	Probability float64             `json:"probability"`
	Diseases    []DiseaseSuggestion `json:"diseases,omitempty"`
}

// DiseaseSuggestion is one candidate disease from a health assessment.
type DiseaseSuggestion struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	Description string  `json:"description,omitempty"`
}

// AlternateReading is a corroborating match from another provider.
type AlternateReading struct {
	Provider       string  `json:"provider"`
	ScientificName string  `json:"scientificName,omitempty"`
	Confidence     float64 `json:"confidence"`
	RawScore       float64 `json:"rawScore,omitempty"`
	GBIFID         int64   `json:"gbifId,omitempty"`
	Authorship     string  `json:"authorship,omitempty"`
}

// ProviderCall reports how one provider's call ended. The merged suggestions
// already carry the payload, so this keeps per-call accounting only.
type ProviderCall struct {
	Provider        string `json:"provider"`
	Status          string `json:"status"`
	SuggestionCount int    `json:"suggestionCount"`
	ErrorDetail     string `json:"errorDetail,omitempty"`
	LatencyMS       int64  `json:"latencyMs"`
	FromCache       bool   `json:"fromCache"`
}

// BreakerStatus is the per-provider circuit view for status surfaces.
type BreakerStatus struct {
	Provider            string `json:"provider"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutiveFailures"`
	TotalSuccesses      uint64 `json:"totalSuccesses"`
	TotalFailures       uint64 `json:"totalFailures"`
	Rejected            uint64 `json:"rejected"`
	OpenedAt            string `json:"openedAt,omitempty"`
}

// CacheStatus summarizes result cache effectiveness.
type CacheStatus struct {
	Enabled   bool   `json:"enabled"`
	Entries   int64  `json:"entries"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Stores    uint64 `json:"stores"`
	Corrupt   uint64 `json:"corrupt"`
	Contended uint64 `json:"contended"`
	Degraded  uint64 `json:"degraded"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	StartedAt    string          `json:"startedAt,omitempty"`
	ConfigPath   string          `json:"configPath,omitempty"`
	CacheDBPath  string          `json:"cacheDbPath"`
	LockDBPath   string          `json:"lockDbPath"`
	LockFilePath string          `json:"lockFilePath"`
	Workers      int             `json:"workers"`
	Providers    []BreakerStatus `json:"providers"`
	Cache        CacheStatus     `json:"cache"`
	ActiveLeases int64           `json:"activeLeases"`
}

// ErrorResponse is the uniform error payload for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
