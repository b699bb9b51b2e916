package normalize

import "strings"

// Canonical sentiment labels. The empty string means "unclassified" and
// is never an error; scoring and filtering treat it as its own bucket.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// sentimentTable maps raw backend labels to the closed vocabulary.
// Star ratings follow the usual 5-point collapse: 4-5 positive,
// 3 neutral, 1-2 negative.
var sentimentTable = map[string]string{
	"positive":      SentimentPositive,
	"pos":           SentimentPositive,
	"good":          SentimentPositive,
	"very positive": SentimentPositive,
	"4":             SentimentPositive,
	"5":             SentimentPositive,
	"4 stars":       SentimentPositive,
	"5 stars":       SentimentPositive,
	"neutral":       SentimentNeutral,
	"neu":           SentimentNeutral,
	"mixed":         SentimentNeutral,
	"3":             SentimentNeutral,
	"3 stars":       SentimentNeutral,
	"negative":      SentimentNegative,
	"neg":           SentimentNegative,
	"bad":           SentimentNegative,
	"very negative": SentimentNegative,
	"1":             SentimentNegative,
	"2":             SentimentNegative,
	"1 star":        SentimentNegative,
	"2 stars":       SentimentNegative,
}

// sourceTable maps raw source identifiers to canonical source ids.
var sourceTable = map[string]string{
	"x":             "x",
	"twitter":       "x",
	"x.com":         "x",
	"tweet":         "x",
	"reddit":        "reddit",
	"youtube":       "youtube",
	"yt":            "youtube",
	"instagram":     "instagram",
	"ig":            "instagram",
	"insta":         "instagram",
	"facebook":      "facebook",
	"fb":            "facebook",
	"tiktok":        "tiktok",
	"linkedin":      "linkedin",
	"news":          "news",
	"press":         "news",
	"blog":          "blogs",
	"blogs":         "blogs",
	"forum":         "forums",
	"forums":        "forums",
	"web":           "web",
	"review":        "reviews",
	"reviews":       "reviews",
	"google_review": "reviews",
}

// Normalizer performs case-insensitive, whitespace-trimming lookups
// against fixed tables. Pure; safe to call on every derivation pass.
type Normalizer struct {
	sources map[string]string
}

// New creates a Normalizer. extraSourceAliases extends (and may
// override) the built-in source table, keyed by lowercase alias.
func New(extraSourceAliases map[string]string) *Normalizer {
	sources := make(map[string]string, len(sourceTable)+len(extraSourceAliases))
	for alias, canonical := range sourceTable {
		sources[alias] = canonical
	}
	for alias, canonical := range extraSourceAliases {
		sources[strings.ToLower(alias)] = strings.ToLower(canonical)
	}
	return &Normalizer{sources: sources}
}

// Sentiment maps a raw sentiment label to "positive", "neutral",
// "negative", or "" for anything unrecognized.
func (n *Normalizer) Sentiment(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	return sentimentTable[key]
}

// Source maps a raw source string to its canonical id, or "" when the
// source is unknown.
func (n *Normalizer) Source(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	return n.sources[key]
}
