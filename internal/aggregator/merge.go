package aggregator

import (
	"sort"

	"verdant/internal/identification"
)

// mergedEntry tracks one row of the merged list while providers are folded in.
// providers holds every provider already represented on the row (canonical or
// alternate); rank is the priority rank of the provider that seeded the row.
type mergedEntry struct {
	suggestion identification.Suggestion
	providers  map[string]struct{}
	rank       int
}

// mergeRank folds per-provider suggestion lists into one ranked list.
//
// Results must arrive in configured provider order. The first slot is the
// primary provider: its suggestions seed the list, capped at primaryLimit,
// with every field as reported. Each later provider contributes at most
// secondaryLimit suggestions; one that matches a seeded row from a different
// provider becomes an AlternateReading on a rebuilt copy of that row, leaving
// the canonical fields alone. Everything else, including repeats within a
// single provider's own list, lands as its own row.
//
// Ordering is confidence descending, ties broken by provider priority rank
// and then insertion order. Failed provider slots and empty suggestion lists
// contribute nothing. Confidences are compared as-is; providers score on
// different internal scales even after clamping, and pretending otherwise
// would be a lie the ranking quietly tells.
func mergeRank(results []identification.ProviderCallResult, primaryLimit, secondaryLimit int) []identification.Suggestion {
	merged := make([]*mergedEntry, 0, primaryLimit+secondaryLimit)
	byKey := make(map[string]*mergedEntry)

	add := func(sug identification.Suggestion, rank int) *mergedEntry {
		entry := &mergedEntry{
			suggestion: sug.Clone(),
			providers:  map[string]struct{}{sug.Provider: {}},
			rank:       rank,
		}
		merged = append(merged, entry)
		return entry
	}

	for rank, result := range results {
		if result.Status != identification.CallStatusSuccess {
			continue
		}
		contributions := result.Suggestions
		limit := secondaryLimit
		if rank == 0 {
			limit = primaryLimit
		}
		if limit > 0 && len(contributions) > limit {
			contributions = contributions[:limit]
		}

		for _, sug := range contributions {
			key := sug.IdentityKey()
			if key == "" {
				add(sug, rank)
				continue
			}
			existing, ok := byKey[key]
			if !ok {
				byKey[key] = add(sug, rank)
				continue
			}
			if _, seen := existing.providers[sug.Provider]; seen {
				// Same provider repeating a name keeps its own row; the
				// canonical row stays the merge target for other providers.
				add(sug, rank)
				continue
			}
			enriched := existing.suggestion.Clone()
			enriched.Alternates = append(enriched.Alternates, alternateFrom(sug))
			existing.suggestion = enriched
			existing.providers[sug.Provider] = struct{}{}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].suggestion.Confidence != merged[j].suggestion.Confidence {
			return merged[i].suggestion.Confidence > merged[j].suggestion.Confidence
		}
		return merged[i].rank < merged[j].rank
	})

	out := make([]identification.Suggestion, 0, len(merged))
	for _, entry := range merged {
		out = append(out, entry.suggestion)
	}
	return out
}

// alternateFrom keeps the corroborating provider's identity and score fields;
// descriptive metadata stays with the canonical suggestion.
func alternateFrom(sug identification.Suggestion) identification.AlternateReading {
	return identification.AlternateReading{
		Provider:       sug.Provider,
		ScientificName: sug.ScientificName,
		Confidence:     sug.Confidence,
		RawScore:       sug.RawScore,
		GBIFID:         sug.Details.GBIFID,
		Authorship:     sug.Details.Authorship,
	}
}
