package plantid

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"verdant/internal/identification"
)

// normalizeResponse converts the raw classification payload into canonical
// suggestions. The health assessment describes the photo rather than any one
// species, so it rides on the leading match.
func normalizeResponse(payload *response, includeHealth bool) []identification.Suggestion {
	raw := payload.Result.Classification.Suggestions
	out := make([]identification.Suggestion, 0, len(raw))
	titler := cases.Title(language.Und)

	for _, item := range raw {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		suggestion := identification.Suggestion{
			Provider:       ProviderID,
			ScientificName: name,
			Confidence:     clamp01(item.Probability),
			RawScore:       item.Probability,
		}
		if details := item.Details; details != nil {
			for _, common := range details.CommonNames {
				if trimmed := strings.TrimSpace(common); trimmed != "" {
					suggestion.CommonNames = append(suggestion.CommonNames, titler.String(trimmed))
				}
			}
			if details.Taxonomy != nil {
				suggestion.Taxonomy = identification.Taxonomy{
					Kingdom: details.Taxonomy.Kingdom,
					Phylum:  details.Taxonomy.Phylum,
					Class:   details.Taxonomy.Class,
					Order:   details.Taxonomy.Order,
					Family:  details.Taxonomy.Family,
					Genus:   details.Taxonomy.Genus,
				}
			}
			if details.Description != nil {
				suggestion.Details.Description = strings.TrimSpace(details.Description.Value)
			}
			suggestion.Details.GBIFID = details.GBIFID
			if details.Image != nil {
				suggestion.Details.ImageURL = details.Image.Value
			}
			for _, part := range details.EdibleParts {
				if trimmed := strings.TrimSpace(part); trimmed != "" {
					suggestion.Details.EdibleParts = append(suggestion.Details.EdibleParts, strings.ToLower(trimmed))
				}
			}
		}
		out = append(out, suggestion)
	}

	if includeHealth && len(out) > 0 {
		if assessment := normalizeHealth(payload.Result.IsHealthy, payload.Result.Disease); assessment != nil {
			out[0].Health = assessment
		}
	}
	return out
}

func normalizeHealth(healthy *binaryProbability, disease *diseaseResult) *identification.HealthAssessment {
	if healthy == nil {
		return nil
	}
	assessment := &identification.HealthAssessment{
		IsHealthy:   healthy.Binary,
		Probability: clamp01(healthy.Probability),
	}
	if disease != nil {
		for _, candidate := range disease.Suggestions {
			name := strings.TrimSpace(candidate.Name)
			if name == "" {
				continue
			}
			entry := identification.DiseaseSuggestion{
				Name:        name,
				Probability: clamp01(candidate.Probability),
			}
			if candidate.Details != nil {
				entry.Description = strings.TrimSpace(candidate.Details.Value)
			}
			assessment.Diseases = append(assessment.Diseases, entry)
		}
	}
	return assessment
}

func clamp01(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}
