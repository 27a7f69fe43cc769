package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"verdant/internal/breaker"
	"verdant/internal/identification"
	"verdant/internal/resultcache"
	"verdant/internal/services"
)

// Options converts the request's option fields to their domain form. Image
// decoding stays with the handler; options are pure data.
func (r IdentifyRequest) Options() identification.Options {
	organs := make([]string, 0, len(r.Organs))
	for _, organ := range r.Organs {
		if trimmed := strings.TrimSpace(organ); trimmed != "" {
			organs = append(organs, trimmed)
		}
	}
	if len(organs) == 0 {
		organs = nil
	}
	return identification.Options{
		IncludeHealth: r.IncludeHealth,
		Organs:        organs,
		Language:      strings.TrimSpace(r.Language),
	}
}

// FromAggregatedResult converts an aggregation outcome to its API payload.
func FromAggregatedResult(result identification.AggregatedResult, requestID string) IdentifyResponse {
	calls := make([]ProviderCall, 0, len(result.ProviderResults))
	for _, call := range result.ProviderResults {
		calls = append(calls, FromProviderCallResult(call))
	}
	return IdentifyResponse{
		RequestID:       requestID,
		Suggestions:     FromSuggestions(result.Suggestions),
		ProviderResults: calls,
		SuccessCount:    result.SuccessCount(),
	}
}

// FromProviderCallResult converts one provider call record.
func FromProviderCallResult(call identification.ProviderCallResult) ProviderCall {
	return ProviderCall{
		Provider:        call.Provider,
		Status:          string(call.Status),
		SuggestionCount: len(call.Suggestions),
		ErrorDetail:     call.ErrorDetail,
		LatencyMS:       call.Latency.Milliseconds(),
		FromCache:       call.FromCache,
	}
}

// FromSuggestions converts a merged suggestion list. The result is never nil
// so the JSON field serializes as an empty array rather than null.
func FromSuggestions(suggestions []identification.Suggestion) []Suggestion {
	out := make([]Suggestion, 0, len(suggestions))
	for _, suggestion := range suggestions {
		out = append(out, FromSuggestion(suggestion))
	}
	return out
}

// FromSuggestion converts one identification candidate.
func FromSuggestion(suggestion identification.Suggestion) Suggestion {
	dto := Suggestion{
		Provider:       suggestion.Provider,
		ScientificName: suggestion.ScientificName,
		CommonNames:    suggestion.CommonNames,
		Confidence:     suggestion.Confidence,
		RawScore:       suggestion.RawScore,
	}
	if suggestion.Taxonomy != (identification.Taxonomy{}) {
		dto.Taxonomy = &Taxonomy{
			Kingdom: suggestion.Taxonomy.Kingdom,
			Phylum:  suggestion.Taxonomy.Phylum,
			Class:   suggestion.Taxonomy.Class,
			Order:   suggestion.Taxonomy.Order,
			Family:  suggestion.Taxonomy.Family,
			Genus:   suggestion.Taxonomy.Genus,
		}
	}
	if details := suggestion.Details; details.Description != "" || details.GBIFID != 0 ||
		details.Authorship != "" || len(details.EdibleParts) > 0 || details.ImageURL != "" {
		dto.Details = &Details{
			Description: details.Description,
			GBIFID:      details.GBIFID,
			Authorship:  details.Authorship,
			EdibleParts: details.EdibleParts,
			ImageURL:    details.ImageURL,
		}
	}
	if suggestion.Health != nil {
		health := &HealthAssessment{
			IsHealthy:   suggestion.Health.IsHealthy,
			Probability: suggestion.Health.Probability,
		}
		for _, disease := range suggestion.Health.Diseases {
			health.Diseases = append(health.Diseases, DiseaseSuggestion{
				Name:        disease.Name,
				Probability: disease.Probability,
				Description: disease.Description,
			})
		}
		dto.Health = health
	}
	for _, alternate := range suggestion.Alternates {
		dto.Alternates = append(dto.Alternates, AlternateReading{
			Provider:       alternate.Provider,
			ScientificName: alternate.ScientificName,
			Confidence:     alternate.Confidence,
			RawScore:       alternate.RawScore,
			GBIFID:         alternate.GBIFID,
			Authorship:     alternate.Authorship,
		})
	}
	return dto
}

// FromBreakerSnapshots converts per-provider circuit snapshots.
func FromBreakerSnapshots(snapshots []breaker.Snapshot) []BreakerStatus {
	out := make([]BreakerStatus, 0, len(snapshots))
	for _, snapshot := range snapshots {
		out = append(out, FromBreakerSnapshot(snapshot))
	}
	return out
}

// FromBreakerSnapshot converts one circuit snapshot.
func FromBreakerSnapshot(snapshot breaker.Snapshot) BreakerStatus {
	dto := BreakerStatus{
		Provider:            snapshot.Name,
		State:               snapshot.State.String(),
		ConsecutiveFailures: snapshot.ConsecutiveFailures,
		TotalSuccesses:      snapshot.TotalSuccesses,
		TotalFailures:       snapshot.TotalFailures,
		Rejected:            snapshot.Rejected,
	}
	if !snapshot.OpenedAt.IsZero() {
		dto.OpenedAt = snapshot.OpenedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromCacheStats converts cache counters plus the live entry count.
func FromCacheStats(enabled bool, entries int64, stats resultcache.Stats) CacheStatus {
	return CacheStatus{
		Enabled:   enabled,
		Entries:   entries,
		Hits:      stats.Hits,
		Misses:    stats.Misses,
		Stores:    stats.Stores,
		Corrupt:   stats.Corrupt,
		Contended: stats.Contended,
		Degraded:  stats.Degraded,
	}
}

// StatusForError maps a service error to its HTTP response code.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
