package models

import "time"

// Mention is a single piece of public content matched to a tracked project.
// Immutable once fetched; identified by ID within a project's stream.
type Mention struct {
	ID                  string     `json:"id"`
	Source              string     `json:"source"` // canonical source id, e.g. "x", "news", "youtube"
	Title               string     `json:"title"`
	Text                string     `json:"text"`
	URL                 string     `json:"url,omitempty"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	SentimentLabel      string     `json:"sentiment_label,omitempty"` // raw label as delivered by the backend
	SentimentConfidence float64    `json:"sentiment_confidence,omitempty"`
	ReachEstimate       int64      `json:"reach_estimate"`
	Engagement          Engagement `json:"engagement"`
	Author              string     `json:"author,omitempty"`
}

// Engagement holds per-mention interaction counts.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// Total is likes+comments+shares.
func (e Engagement) Total() int64 {
	return e.Likes + e.Comments + e.Shares
}

// Project status values. Only Status and LastRunAt are mutated by this
// client (through scheduler actions); everything else belongs to the
// management UI.
const (
	ProjectActive = "active"
	ProjectPaused = "paused"
)

// Project is a tracked monitoring project.
type Project struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Keywords        []string        `json:"keywords"`
	BooleanQuery    string          `json:"boolean_query,omitempty"`
	ScheduleMinutes int             `json:"schedule_minutes"`
	GeoFocus        string          `json:"geo_focus,omitempty"`
	Sources         map[string]bool `json:"sources,omitempty"` // sourceId -> enabled
	Status          string          `json:"status"`            // "active" or "paused"
	LastRunAt       *time.Time      `json:"last_run_at,omitempty"`
}

// Alert is a server-created notification pushed over the live channel.
type Alert struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"` // "critical", "warning", "info"
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

// ConnectorHealth is a read-only status snapshot for one data connector.
type ConnectorHealth struct {
	ID          string `json:"id"`
	ConnectorID string `json:"connector_id"`
	Status      string `json:"status"` // "ok", "degraded", "down", "no_data"
}

// Pagination is the cursor returned alongside every mentions page.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalCount  int  `json:"total_count"`
	HasNextPage bool `json:"has_next_page"`
}

// InfluencerAggregate is a per-author rollup derived from the current
// mention set. It is never persisted; it is recomputed whenever the
// underlying mentions change.
type InfluencerAggregate struct {
	Author          string          `json:"author"`
	Sources         map[string]bool `json:"sources"`
	MentionCount    int             `json:"mention_count"`
	TotalReach      int64           `json:"total_reach"`
	AvgReach        float64         `json:"avg_reach"`
	TotalEngagement int64           `json:"total_engagement"`
	AvgSentiment    float64         `json:"avg_sentiment"` // in [-1, 1]
	TopMention      *Mention        `json:"top_mention,omitempty"`
	Score           int             `json:"score"` // in [0, 100]
	Tier            string          `json:"tier"`  // "Elite", "Top", "Rising", "Emerging"
}

// SavedFilters is the per-project filter selection persisted across
// sessions.
type SavedFilters struct {
	DateRange        DateRange `json:"date_range"`
	SourceFilters    []string  `json:"source_filters"`
	SentimentFilters []string  `json:"sentiment_filters"`
}

// DateRange bounds a mention query. Zero values mean unbounded.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// ProjectMetrics is the aggregate breakdown served by the backend. The
// client consumes it as-is and never recomputes these rollups locally.
type ProjectMetrics struct {
	TotalMentions      int             `json:"total_mentions"`
	SentimentBreakdown map[string]int  `json:"sentiment_breakdown"`
	SourceBreakdown    map[string]int  `json:"source_breakdown"`
	VolumeByDay        map[string]int  `json:"volume_by_day,omitempty"`
	TopKeywords        []KeywordMetric `json:"top_keywords,omitempty"`
}

// KeywordMetric is one entry in the backend's keyword rollup.
type KeywordMetric struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}
