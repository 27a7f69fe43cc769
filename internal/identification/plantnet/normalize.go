package plantnet

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"verdant/internal/identification"
)

// response models the subset of the Pl@ntNet v2 payload we consume.
type response struct {
	BestMatch string   `json:"bestMatch"`
	Results   []result `json:"results"`
}

type result struct {
	Score   float64 `json:"score"`
	Species species `json:"species"`
	GBIF    *ref    `json:"gbif"`
}

type species struct {
	ScientificNameWithoutAuthor string   `json:"scientificNameWithoutAuthor"`
	ScientificNameAuthorship    string   `json:"scientificNameAuthorship"`
	Genus                       *rank    `json:"genus"`
	Family                      *rank    `json:"family"`
	CommonNames                 []string `json:"commonNames"`
}

type rank struct {
	ScientificNameWithoutAuthor string `json:"scientificNameWithoutAuthor"`
}

// ref carries an external registry identifier. Pl@ntNet serializes GBIF ids
// as strings.
type ref struct {
	ID string `json:"id"`
}

func decodeResponse(body io.Reader) ([]identification.Suggestion, error) {
	var decoded response
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode plantnet response: %w", err)
	}
	return normalizeResults(decoded.Results), nil
}

func normalizeResults(results []result) []identification.Suggestion {
	out := make([]identification.Suggestion, 0, len(results))
	titler := cases.Title(language.Und)

	for _, item := range results {
		name := strings.TrimSpace(item.Species.ScientificNameWithoutAuthor)
		if name == "" {
			continue
		}
		suggestion := identification.Suggestion{
			Provider:       ProviderID,
			ScientificName: name,
			Confidence:     clamp01(item.Score),
			RawScore:       item.Score,
		}
		for _, common := range item.Species.CommonNames {
			if trimmed := strings.TrimSpace(common); trimmed != "" {
				suggestion.CommonNames = append(suggestion.CommonNames, titler.String(trimmed))
			}
		}
		if item.Species.Family != nil {
			suggestion.Taxonomy.Family = item.Species.Family.ScientificNameWithoutAuthor
		}
		if item.Species.Genus != nil {
			suggestion.Taxonomy.Genus = item.Species.Genus.ScientificNameWithoutAuthor
		}
		suggestion.Details.Authorship = strings.TrimSpace(item.Species.ScientificNameAuthorship)
		if item.GBIF != nil {
			if id, err := strconv.ParseInt(strings.TrimSpace(item.GBIF.ID), 10, 64); err == nil {
				suggestion.Details.GBIFID = id
			}
		}
		out = append(out, suggestion)
	}
	return out
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
