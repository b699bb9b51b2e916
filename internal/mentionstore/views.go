package mentionstore

import (
	"sort"
	"strings"

	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/mentionwatch/dashboard/internal/normalize"
)

// The functions below are pure derivations over the accumulated set.
// They copy, never mutate, and may run on every render pass.

// Search keeps mentions whose title, text, author or URL contains the
// query as a case-insensitive substring. An empty query keeps all.
func Search(mentions []models.Mention, query string) []models.Mention {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return mentions
	}
	var matched []models.Mention
	for _, m := range mentions {
		haystack := strings.ToLower(m.Title + " " + m.Text + " " + m.Author + " " + m.URL)
		if strings.Contains(haystack, query) {
			matched = append(matched, m)
		}
	}
	return matched
}

// FilterBySources keeps mentions whose normalized source is in the
// selected set. Unknown sources normalize to "" and only match when ""
// is selected. An empty selection keeps everything.
func FilterBySources(mentions []models.Mention, sources []string, n *normalize.Normalizer) []models.Mention {
	if len(sources) == 0 {
		return mentions
	}
	selected := make(map[string]bool, len(sources))
	for _, src := range sources {
		selected[n.Source(src)] = true
	}
	var matched []models.Mention
	for _, m := range mentions {
		if selected[n.Source(m.Source)] {
			matched = append(matched, m)
		}
	}
	return matched
}

// FilterBySentiments keeps mentions whose normalized sentiment is in
// the selected set. An empty selection keeps everything.
func FilterBySentiments(mentions []models.Mention, sentiments []string, n *normalize.Normalizer) []models.Mention {
	if len(sentiments) == 0 {
		return mentions
	}
	selected := make(map[string]bool, len(sentiments))
	for _, label := range sentiments {
		selected[n.Sentiment(label)] = true
	}
	var matched []models.Mention
	for _, m := range mentions {
		if selected[n.Sentiment(m.SentimentLabel)] {
			matched = append(matched, m)
		}
	}
	return matched
}

// SortMentions returns a re-ordered copy: newest-first for SortRecent,
// oldest-first for SortOldest, highest reach first for SortReach.
// Mentions without a publish date sort last under either time order.
func SortMentions(mentions []models.Mention, order string) []models.Mention {
	sorted := make([]models.Mention, len(mentions))
	copy(sorted, mentions)

	switch order {
	case SortReach:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].ReachEstimate > sorted[j].ReachEstimate
		})
	case SortOldest:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i].PublishedAt, sorted[j].PublishedAt
			if a == nil || b == nil {
				return b == nil && a != nil
			}
			return a.Before(*b)
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i].PublishedAt, sorted[j].PublishedAt
			if a == nil || b == nil {
				return b == nil && a != nil
			}
			return a.After(*b)
		})
	}

	return sorted
}
