package scoring

import (
	"math"
	"sort"

	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/mentionwatch/dashboard/internal/normalize"
)

// Weights configures the composite influence score. Each dimension is
// normalized against its cap, clamped to [0,1], then weighted, so the
// score stays within [0, sum-of-weights] by construction.
type Weights struct {
	Reach      float64
	Engagement float64
	Volume     float64
	Sentiment  float64

	ReachCap      float64
	EngagementCap float64
	VolumeCap     float64
}

// DefaultWeights returns the standard 40/30/20/10 split with caps of
// 100k reach, 1k engagement and 10 mentions.
func DefaultWeights() Weights {
	return Weights{
		Reach:         40,
		Engagement:    30,
		Volume:        20,
		Sentiment:     10,
		ReachCap:      100000,
		EngagementCap: 1000,
		VolumeCap:     10,
	}
}

// TierCutoffs are the inclusive lower bounds of each tier.
type TierCutoffs struct {
	Elite  int
	Top    int
	Rising int
}

// DefaultTierCutoffs returns the standard 80/60/40 step function.
func DefaultTierCutoffs() TierCutoffs {
	return TierCutoffs{Elite: 80, Top: 60, Rising: 40}
}

// Tier names, ordered Elite > Top > Rising > Emerging.
const (
	TierElite    = "Elite"
	TierTop      = "Top"
	TierRising   = "Rising"
	TierEmerging = "Emerging"
)

// Engine computes per-author influencer aggregates from a mention set.
// It has no fallible operations; an empty input yields an empty output.
type Engine struct {
	weights    Weights
	tiers      TierCutoffs
	normalizer *normalize.Normalizer
}

// NewEngine creates a scoring engine.
func NewEngine(weights Weights, tiers TierCutoffs, normalizer *normalize.Normalizer) *Engine {
	return &Engine{weights: weights, tiers: tiers, normalizer: normalizer}
}

// NewDefaultEngine creates an engine with default weights and cutoffs.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultWeights(), DefaultTierCutoffs(), normalize.New(nil))
}

// Aggregate groups mentions by author and computes the composite score
// for each. Mentions without an author are excluded entirely; unknown
// authors are never scored. The result is ordered by score descending,
// first-seen author winning ties.
func (e *Engine) Aggregate(mentions []models.Mention) []models.InfluencerAggregate {
	type accumulator struct {
		agg            models.InfluencerAggregate
		sentimentTally int
		classified     int
	}

	byAuthor := make(map[string]*accumulator)
	var order []string

	for i := range mentions {
		m := mentions[i]
		if m.Author == "" {
			continue
		}

		acc, ok := byAuthor[m.Author]
		if !ok {
			acc = &accumulator{agg: models.InfluencerAggregate{
				Author:  m.Author,
				Sources: make(map[string]bool),
			}}
			byAuthor[m.Author] = acc
			order = append(order, m.Author)
		}

		acc.agg.MentionCount++
		acc.agg.TotalReach += m.ReachEstimate
		acc.agg.TotalEngagement += m.Engagement.Total()
		if m.Source != "" {
			acc.agg.Sources[m.Source] = true
		}

		// Labeled mentions enter the sentiment denominator; only
		// positive/negative classifications move the tally.
		if m.SentimentLabel != "" {
			acc.classified++
			switch e.normalizer.Sentiment(m.SentimentLabel) {
			case normalize.SentimentPositive:
				acc.sentimentTally++
			case normalize.SentimentNegative:
				acc.sentimentTally--
			}
		}

		// Ties keep the first encountered mention.
		if acc.agg.TopMention == nil || m.ReachEstimate > acc.agg.TopMention.ReachEstimate {
			acc.agg.TopMention = &mentions[i]
		}
	}

	results := make([]models.InfluencerAggregate, 0, len(order))
	for _, author := range order {
		acc := byAuthor[author]
		if acc.classified > 0 {
			acc.agg.AvgSentiment = float64(acc.sentimentTally) / float64(acc.classified)
		}
		acc.agg.AvgReach = float64(acc.agg.TotalReach) / float64(acc.agg.MentionCount)
		acc.agg.Score = e.score(acc.agg)
		acc.agg.Tier = e.Tier(acc.agg.Score)
		results = append(results, acc.agg)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

func (e *Engine) score(agg models.InfluencerAggregate) int {
	w := e.weights
	score := w.Reach*clamp01(float64(agg.TotalReach)/w.ReachCap) +
		w.Engagement*clamp01(float64(agg.TotalEngagement)/w.EngagementCap) +
		w.Volume*clamp01(float64(agg.MentionCount)/w.VolumeCap) +
		w.Sentiment*((agg.AvgSentiment+1)/2)
	return int(math.Round(score))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Tier maps a score onto the tier step function. Boundaries are
// inclusive on the lower end.
func (e *Engine) Tier(score int) string {
	switch {
	case score >= e.tiers.Elite:
		return TierElite
	case score >= e.tiers.Top:
		return TierTop
	case score >= e.tiers.Rising:
		return TierRising
	default:
		return TierEmerging
	}
}

// AverageScore is the mean score across aggregates, 0 when empty.
func AverageScore(aggs []models.InfluencerAggregate) float64 {
	if len(aggs) == 0 {
		return 0
	}
	sum := 0
	for _, agg := range aggs {
		sum += agg.Score
	}
	return float64(sum) / float64(len(aggs))
}
