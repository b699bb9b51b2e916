package scoring

import (
	"sort"

	"github.com/mentionwatch/dashboard/internal/models"
)

// SortField selects the aggregate dimension used for presentation
// ordering.
type SortField string

const (
	SortByScore      SortField = "score"
	SortByMentions   SortField = "mentions"
	SortByReach      SortField = "reach"
	SortByEngagement SortField = "engagement"
	SortBySentiment  SortField = "sentiment"
)

// FilterBySources keeps aggregates with at least one mention from any
// of the given sources. An empty source list keeps everything.
func FilterBySources(aggs []models.InfluencerAggregate, sources []string) []models.InfluencerAggregate {
	if len(sources) == 0 {
		return aggs
	}
	var filtered []models.InfluencerAggregate
	for _, agg := range aggs {
		for _, src := range sources {
			if agg.Sources[src] {
				filtered = append(filtered, agg)
				break
			}
		}
	}
	return filtered
}

// FilterByMinScore keeps aggregates scoring at or above min.
func FilterByMinScore(aggs []models.InfluencerAggregate, min int) []models.InfluencerAggregate {
	if min <= 0 {
		return aggs
	}
	var filtered []models.InfluencerAggregate
	for _, agg := range aggs {
		if agg.Score >= min {
			filtered = append(filtered, agg)
		}
	}
	return filtered
}

// SortBy returns a re-ordered copy; the input and the aggregates
// themselves are never mutated.
func SortBy(aggs []models.InfluencerAggregate, field SortField, ascending bool) []models.InfluencerAggregate {
	sorted := make([]models.InfluencerAggregate, len(aggs))
	copy(sorted, aggs)

	less := func(a, b models.InfluencerAggregate) bool {
		switch field {
		case SortByMentions:
			return a.MentionCount < b.MentionCount
		case SortByReach:
			return a.TotalReach < b.TotalReach
		case SortByEngagement:
			return a.TotalEngagement < b.TotalEngagement
		case SortBySentiment:
			return a.AvgSentiment < b.AvgSentiment
		default:
			return a.Score < b.Score
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if ascending {
			return less(sorted[i], sorted[j])
		}
		return less(sorted[j], sorted[i])
	})

	return sorted
}
