package dashboard

import (
	"time"

	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/mentionwatch/dashboard/internal/scheduler"
	"github.com/mentionwatch/dashboard/internal/scoring"
)

// Snapshot is the full dashboard view served to the UI.
type Snapshot struct {
	ActiveProjectID string                       `json:"active_project_id"`
	Connected       bool                         `json:"connected"`
	Loading         bool                         `json:"loading"`
	LoadingMore     bool                         `json:"loading_more"`
	Mentions        []models.Mention             `json:"mentions"`
	Pagination      *models.Pagination           `json:"pagination,omitempty"`
	Influencers     []models.InfluencerAggregate `json:"influencers"`
	AverageScore    float64                      `json:"average_score"`
	Alerts          []models.Alert               `json:"alerts"`
	Countdown       *scheduler.Countdown         `json:"countdown,omitempty"`
	IsOverdue       bool                         `json:"is_overdue"`
	ActionLoading   string                       `json:"action_loading,omitempty"`
	Metrics         *models.ProjectMetrics       `json:"metrics,omitempty"`
	Health          []models.ConnectorHealth     `json:"health,omitempty"`
	Filters         models.SavedFilters          `json:"filters"`
	LastError       string                       `json:"last_error,omitempty"`
	LastRefresh     *time.Time                   `json:"last_refresh,omitempty"`
}

// Snapshot assembles the current dashboard view. Influencer and view
// data are derived fresh from the store on every call.
func (s *Service) Snapshot() Snapshot {
	influencers := s.engine.Aggregate(s.store.Mentions())

	snapshot := Snapshot{
		Mentions:     s.store.Mentions(),
		Pagination:   s.store.Cursor(),
		Loading:      s.store.Loading(),
		LoadingMore:  s.store.LoadingMore(),
		Influencers:  influencers,
		AverageScore: scoring.AverageScore(influencers),
		Filters:      s.store.ActiveFilters(),
	}

	if s.channel != nil {
		snapshot.Alerts = s.channel.Alerts()
		snapshot.Connected = s.channel.Connected()
	}

	s.mu.RLock()
	snapshot.ActiveProjectID = s.activeProjectID
	snapshot.Metrics = s.metrics
	snapshot.Health = s.health
	snapshot.LastError = s.lastError
	if !s.lastRefresh.IsZero() {
		refreshedAt := s.lastRefresh
		snapshot.LastRefresh = &refreshedAt
	}
	tracker := s.trackers[s.activeProjectID]
	s.mu.RUnlock()

	if tracker != nil {
		countdown := tracker.Countdown()
		snapshot.Countdown = &countdown
		snapshot.IsOverdue = tracker.IsOverdue()
		snapshot.ActionLoading = tracker.ActionLoading()
	}

	return snapshot
}
