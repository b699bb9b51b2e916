package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mentionwatch/dashboard/internal/alerts"
	"github.com/mentionwatch/dashboard/internal/api"
	"github.com/mentionwatch/dashboard/internal/config"
	"github.com/mentionwatch/dashboard/internal/filterstore"
	"github.com/mentionwatch/dashboard/internal/mentionstore"
	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/mentionwatch/dashboard/internal/normalize"
	"github.com/mentionwatch/dashboard/internal/scheduler"
	"github.com/mentionwatch/dashboard/internal/scoring"
	"github.com/mentionwatch/dashboard/internal/storage"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service ties the dashboard together: one mention store, one alert
// channel, one scheduler tracker per project, and the derived
// influencer view. All state is per-project; nothing leaks between
// projects sharing the process.
type Service struct {
	config     *config.Config
	backend    api.Backend
	store      *mentionstore.Store
	engine     *scoring.Engine
	normalizer *normalize.Normalizer
	channel    *alerts.Channel
	filters    *filterstore.Store
	archive    storage.ArchiveInterface // nil when archiving is not configured
	cron       *cron.Cron

	mu              sync.RWMutex
	trackers        map[string]*scheduler.Tracker
	activeProjectID string
	metrics         *models.ProjectMetrics
	health          []models.ConnectorHealth
	lastError       string
	lastRefresh     time.Time
}

// NewService creates the dashboard orchestrator. archive may be nil.
func NewService(cfg *config.Config, backend api.Backend, channel *alerts.Channel, filters *filterstore.Store, archive storage.ArchiveInterface) *Service {
	normalizer := normalize.New(cfg.SourceAliases)
	weights := scoring.Weights{
		Reach:         cfg.ReachWeight,
		Engagement:    cfg.EngagementWeight,
		Volume:        cfg.VolumeWeight,
		Sentiment:     cfg.SentimentWeight,
		ReachCap:      cfg.ReachCap,
		EngagementCap: cfg.EngagementCap,
		VolumeCap:     cfg.VolumeCap,
	}
	tiers := scoring.TierCutoffs{Elite: cfg.TierElite, Top: cfg.TierTop, Rising: cfg.TierRising}

	return &Service{
		config:     cfg,
		backend:    backend,
		store:      mentionstore.New(backend, cfg.PageLimit),
		engine:     scoring.NewEngine(weights, tiers, normalizer),
		normalizer: normalizer,
		channel:    channel,
		filters:    filters,
		archive:    archive,
		cron:       cron.New(cron.WithSeconds()),
		trackers:   make(map[string]*scheduler.Tracker),
	}
}

// Start begins the due-project sweep that auto-triggers scheduled
// ingestion runs.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.SweepSchedule, func() {
		s.sweepDueProjects()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler sweep started (%s)", s.config.SweepSchedule)
	return nil
}

// Stop halts the sweep and releases all countdown tickers.
func (s *Service) Stop() {
	s.cron.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tracker := range s.trackers {
		tracker.Stop()
	}
	logrus.Info("Dashboard service stopped")
}

// sweepDueProjects runs every active project whose schedule has
// elapsed. Paused projects are never swept; they require an explicit
// resume.
func (s *Service) sweepDueProjects() {
	s.mu.RLock()
	due := make([]*scheduler.Tracker, 0)
	for _, tracker := range s.trackers {
		// IsDue consults the wall clock; the display countdown may be
		// stale for trackers whose ticker is not running.
		if tracker.IsDue() && tracker.CanRunNow() {
			due = append(due, tracker)
		}
	}
	s.mu.RUnlock()

	for _, tracker := range due {
		project := tracker.Project()
		logrus.Infof("Project %s is due, triggering scheduled run", project.ID)
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if err := tracker.RunNow(ctx); err != nil {
			logrus.Errorf("Scheduled run failed: %v", err)
			s.setError(err)
		}
		cancel()
	}
}

// SelectProject makes a project the active one: its tracker takes over
// the countdown ticker, its saved filters are restored, the push room
// is switched, and the mention view reloads from page 1.
func (s *Service) SelectProject(ctx context.Context, project models.Project) error {
	s.mu.Lock()
	previous := s.trackers[s.activeProjectID]
	s.activeProjectID = project.ID

	tracker, ok := s.trackers[project.ID]
	if !ok {
		tracker = scheduler.NewTracker(s.backend, project, func(projectID string) {
			// A manual or scheduled run invalidates the current view.
			refreshCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := s.Refresh(refreshCtx); err != nil {
				logrus.Errorf("Post-run refresh failed: %v", err)
			}
		})
		s.trackers[project.ID] = tracker
	} else {
		tracker.SetProject(project)
	}
	// Stale metrics and health belong to the previous project.
	s.metrics = nil
	s.health = nil
	s.mu.Unlock()

	// Countdown ticker moves to the newly selected project.
	if previous != nil && previous != tracker {
		previous.Stop()
	}
	tracker.Start(nil)

	// Saved filters load once per project switch; missing or malformed
	// state falls back to defaults.
	saved, _ := s.filters.Load(project.ID)
	s.store.SetFilters(saved)
	s.store.SetProject(project.ID)

	if s.channel != nil {
		s.channel.Join(s.config.UserID, project.ID)
	}

	return s.Refresh(ctx)
}

// Refresh reloads page 1 of the mention stream plus the backend
// metrics and connector health for the active project. Failures keep
// the last-known-good data and surface a dismissible error.
func (s *Service) Refresh(ctx context.Context) error {
	projectID := s.store.ActiveProject()
	if projectID == "" {
		return nil
	}

	if err := s.store.Refresh(ctx); err != nil {
		s.setError(err)
		return err
	}

	filters := s.store.ActiveFilters()
	metrics, err := s.backend.GetProjectMetrics(ctx, projectID, filters.DateRange.From, filters.DateRange.To)
	if err != nil {
		logrus.Errorf("Metrics fetch failed: %v", err)
		s.setError(err)
	}

	health, err := s.backend.GetConnectorHealth(ctx, projectID)
	if err != nil {
		logrus.Errorf("Connector health fetch failed: %v", err)
		s.setError(err)
	}

	s.mu.Lock()
	if metrics != nil {
		s.metrics = metrics
	}
	if health != nil {
		s.health = health
	}
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	if s.archive != nil {
		if err := s.archive.Archive(ctx, projectID, s.store.Mentions()); err != nil {
			logrus.Errorf("Snapshot archive failed: %v", err)
		}
	}

	return nil
}

// LoadMore fetches the next mention page for the active project.
func (s *Service) LoadMore(ctx context.Context) error {
	if err := s.store.LoadMore(ctx); err != nil {
		s.setError(err)
		return err
	}
	return nil
}

// HandleScroll feeds an infinite-scroll position into the store.
func (s *Service) HandleScroll(ctx context.Context, distanceFromBottomPx int) error {
	return s.store.HandleScroll(ctx, distanceFromBottomPx)
}

// RunNow triggers an immediate ingestion run for a project.
func (s *Service) RunNow(ctx context.Context, projectID string) error {
	tracker := s.tracker(projectID)
	if tracker == nil {
		return fmt.Errorf("unknown project %s", projectID)
	}
	if err := tracker.RunNow(ctx); err != nil {
		s.setError(err)
		return err
	}
	return nil
}

// TogglePause flips a project's run/pause state.
func (s *Service) TogglePause(ctx context.Context, projectID string) error {
	tracker := s.tracker(projectID)
	if tracker == nil {
		return fmt.Errorf("unknown project %s", projectID)
	}
	if err := tracker.TogglePause(ctx); err != nil {
		s.setError(err)
		return err
	}
	return nil
}

// DeleteProject removes a project and its tracker.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	tracker := s.tracker(projectID)
	if tracker == nil {
		return fmt.Errorf("unknown project %s", projectID)
	}
	if err := tracker.Delete(ctx); err != nil {
		s.setError(err)
		return err
	}

	s.mu.Lock()
	delete(s.trackers, projectID)
	if s.activeProjectID == projectID {
		s.activeProjectID = ""
	}
	s.mu.Unlock()
	return nil
}

// SaveFilters persists the active filter selection for the project.
// Saving is explicit, never automatic on change.
func (s *Service) SaveFilters(projectID string) error {
	return s.filters.Save(projectID, s.store.ActiveFilters())
}

// SetFilters applies a new filter selection to the mention view.
func (s *Service) SetFilters(filters models.SavedFilters) {
	s.store.SetFilters(filters)
}

// ClearFilters resets the view to defaults and removes the persisted
// entry for the project.
func (s *Service) ClearFilters(projectID string) error {
	s.store.SetFilters(models.SavedFilters{})
	return s.filters.Clear(projectID)
}

// SetSort changes the mention sort order.
func (s *Service) SetSort(sort string) {
	s.store.SetSort(sort)
}

// InfluencerQuery narrows and orders the derived influencer ranking.
type InfluencerQuery struct {
	Sources   []string
	MinScore  int
	SortField scoring.SortField
	Ascending bool
}

// Influencers recomputes the per-author ranking from the accumulated
// mention set. It is a pure derivation; no caches to invalidate.
func (s *Service) Influencers(query InfluencerQuery) []models.InfluencerAggregate {
	aggs := s.engine.Aggregate(s.store.Mentions())
	aggs = scoring.FilterBySources(aggs, query.Sources)
	aggs = scoring.FilterByMinScore(aggs, query.MinScore)
	if query.SortField != "" {
		aggs = scoring.SortBy(aggs, query.SortField, query.Ascending)
	}
	return aggs
}

// Snapshots lists the archived mention snapshots for a project, newest
// names last. An unconfigured archive yields an empty list.
func (s *Service) Snapshots(ctx context.Context, projectID string) ([]string, error) {
	if s.archive == nil {
		return nil, nil
	}
	names, err := s.archive.List(ctx, projectID)
	if err != nil {
		s.setError(err)
		return nil, err
	}
	return names, nil
}

// MarkAlertRead marks one alert read via the alert channel.
func (s *Service) MarkAlertRead(ctx context.Context, alertID string) error {
	if s.channel == nil {
		return nil
	}
	if err := s.channel.MarkRead(ctx, alertID); err != nil {
		s.setError(err)
		return err
	}
	return nil
}

func (s *Service) tracker(projectID string) *scheduler.Tracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackers[projectID]
}

func (s *Service) setError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// DismissError clears the banner-level error string.
func (s *Service) DismissError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}
