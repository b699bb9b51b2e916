package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/mentionwatch/dashboard/internal/api"
	"github.com/mentionwatch/dashboard/internal/config"
	"github.com/mentionwatch/dashboard/internal/filterstore"
	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/mentionwatch/dashboard/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBackend is a mock implementation of the backend client
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) ListMentions(ctx context.Context, query api.MentionQuery) (*api.MentionsPage, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.MentionsPage), args.Error(1)
}

func (m *MockBackend) GetProjectMetrics(ctx context.Context, projectID string, from, to *time.Time) (*models.ProjectMetrics, error) {
	args := m.Called(ctx, projectID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProjectMetrics), args.Error(1)
}

func (m *MockBackend) RunProject(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *MockBackend) UpdateProjectStatus(ctx context.Context, projectID, status string) (*models.Project, error) {
	args := m.Called(ctx, projectID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockBackend) DeleteProject(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *MockBackend) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Alert), args.Error(1)
}

func (m *MockBackend) MarkAlertRead(ctx context.Context, alertID string) (*models.Alert, error) {
	args := m.Called(ctx, alertID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockBackend) GetConnectorHealth(ctx context.Context, projectID string) ([]models.ConnectorHealth, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConnectorHealth), args.Error(1)
}

// MockArchive is a mock implementation of the snapshot archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Archive(ctx context.Context, projectID string, mentions []models.Mention) error {
	args := m.Called(ctx, projectID, mentions)
	return args.Error(0)
}

func (m *MockArchive) List(ctx context.Context, projectID string) ([]string, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]string), args.Error(1)
}

func testConfig() *config.Config {
	return &config.Config{
		PageLimit:         20,
		AlertHistoryLimit: 100,
		SweepSchedule:     "0 * * * * *",
		ReachWeight:       40,
		EngagementWeight:  30,
		VolumeWeight:      20,
		SentimentWeight:   10,
		ReachCap:          100000,
		EngagementCap:     1000,
		VolumeCap:         10,
		TierElite:         80,
		TierTop:           60,
		TierRising:        40,
		UserID:            "user-1",
	}
}

func newTestService(t *testing.T, backend api.Backend) (*Service, *filterstore.Store) {
	t.Helper()
	filters, err := filterstore.Open(":memory:", "mention_filters")
	require.NoError(t, err)
	t.Cleanup(func() { filters.Close() })
	return NewService(testConfig(), backend, nil, filters, nil), filters
}

func stubProjectFetches(backend *MockBackend, projectID string, mentions []models.Mention) {
	backend.On("ListMentions", mock.Anything, mock.Anything).Return(&api.MentionsPage{
		Mentions:   mentions,
		Pagination: models.Pagination{Page: 1, Limit: 20, TotalCount: len(mentions)},
	}, nil)
	backend.On("GetProjectMetrics", mock.Anything, projectID, mock.Anything, mock.Anything).Return(&models.ProjectMetrics{
		TotalMentions:      len(mentions),
		SentimentBreakdown: map[string]int{"positive": 1},
		SourceBreakdown:    map[string]int{"x": 1},
	}, nil)
	backend.On("GetConnectorHealth", mock.Anything, projectID).Return([]models.ConnectorHealth{
		{ID: "h1", ConnectorID: "x", Status: "ok"},
	}, nil)
}

func TestService_SelectProjectRestoresSavedFilters(t *testing.T) {
	backend := &MockBackend{}
	service, filters := newTestService(t, backend)

	require.NoError(t, filters.Save("proj-1", models.SavedFilters{
		SourceFilters: []string{"x"},
	}))

	backend.On("ListMentions", mock.Anything, mock.MatchedBy(func(q api.MentionQuery) bool {
		return q.ProjectID == "proj-1" && len(q.Sources) == 1 && q.Sources[0] == "x" && q.Page == 1
	})).Return(&api.MentionsPage{
		Mentions:   []models.Mention{{ID: "m1", Author: "alice", Source: "x"}},
		Pagination: models.Pagination{Page: 1, Limit: 20, TotalCount: 1},
	}, nil).Once()
	backend.On("GetProjectMetrics", mock.Anything, "proj-1", mock.Anything, mock.Anything).Return(&models.ProjectMetrics{TotalMentions: 1}, nil).Once()
	backend.On("GetConnectorHealth", mock.Anything, "proj-1").Return([]models.ConnectorHealth{}, nil).Once()

	project := models.Project{ID: "proj-1", Status: models.ProjectActive, ScheduleMinutes: 30}
	require.NoError(t, service.SelectProject(context.Background(), project))
	defer service.Stop()

	snapshot := service.Snapshot()
	assert.Equal(t, "proj-1", snapshot.ActiveProjectID)
	assert.Equal(t, []string{"x"}, snapshot.Filters.SourceFilters)
	require.Len(t, snapshot.Mentions, 1)
	require.NotNil(t, snapshot.Countdown)
	assert.Equal(t, scheduler.CountdownPending, snapshot.Countdown.State)

	backend.AssertExpectations(t)
}

func TestService_RefreshFailureKeepsLastKnownGood(t *testing.T) {
	backend := &MockBackend{}
	service, _ := newTestService(t, backend)
	defer service.Stop()

	stubProjectFetches(backend, "proj-1", []models.Mention{{ID: "m1", Author: "alice"}})
	project := models.Project{ID: "proj-1", Status: models.ProjectActive, ScheduleMinutes: 30}
	require.NoError(t, service.SelectProject(context.Background(), project))
	require.Len(t, service.Snapshot().Mentions, 1)

	// Next refresh fails; data stays, error becomes visible.
	backend.ExpectedCalls = nil
	backend.On("ListMentions", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	require.Error(t, service.Refresh(context.Background()))

	snapshot := service.Snapshot()
	assert.Len(t, snapshot.Mentions, 1, "last-known-good mentions kept")
	assert.NotEmpty(t, snapshot.LastError)

	service.DismissError()
	assert.Empty(t, service.Snapshot().LastError)
}

func TestService_InfluencersDerivation(t *testing.T) {
	backend := &MockBackend{}
	service, _ := newTestService(t, backend)
	defer service.Stop()

	stubProjectFetches(backend, "proj-1", []models.Mention{
		{ID: "m1", Author: "alice", Source: "x", ReachEstimate: 50000, SentimentLabel: "positive"},
		{ID: "m2", Author: "bob", Source: "news", ReachEstimate: 100, SentimentLabel: "negative"},
		{ID: "m3", Author: "", Source: "x", ReachEstimate: 999999},
	})
	project := models.Project{ID: "proj-1", Status: models.ProjectActive, ScheduleMinutes: 30}
	require.NoError(t, service.SelectProject(context.Background(), project))

	all := service.Influencers(InfluencerQuery{})
	require.Len(t, all, 2, "authorless mentions are never scored")
	assert.Equal(t, "alice", all[0].Author)

	onlyNews := service.Influencers(InfluencerQuery{Sources: []string{"news"}})
	require.Len(t, onlyNews, 1)
	assert.Equal(t, "bob", onlyNews[0].Author)

	snapshot := service.Snapshot()
	assert.Greater(t, snapshot.AverageScore, 0.0)
}

func TestService_SweepRunsDueProjectsOnly(t *testing.T) {
	backend := &MockBackend{}
	service, _ := newTestService(t, backend)
	defer service.Stop()

	lastRun := time.Now().Add(-2 * time.Hour)

	stubProjectFetches(backend, "due-project", nil)
	stubProjectFetches(backend, "fresh-project", nil)
	stubProjectFetches(backend, "paused-project", nil)

	due := models.Project{ID: "due-project", Status: models.ProjectActive, ScheduleMinutes: 30, LastRunAt: &lastRun}
	fresh := models.Project{ID: "fresh-project", Status: models.ProjectActive, ScheduleMinutes: 30}
	paused := models.Project{ID: "paused-project", Status: models.ProjectPaused, ScheduleMinutes: 30, LastRunAt: &lastRun}

	require.NoError(t, service.SelectProject(context.Background(), due))
	require.NoError(t, service.SelectProject(context.Background(), fresh))
	require.NoError(t, service.SelectProject(context.Background(), paused))

	backend.On("RunProject", mock.Anything, "due-project").Return(nil).Once()

	service.sweepDueProjects()

	backend.AssertExpectations(t)
	backend.AssertNotCalled(t, "RunProject", mock.Anything, "fresh-project")
	backend.AssertNotCalled(t, "RunProject", mock.Anything, "paused-project")
}

func TestService_ClearFiltersRemovesPersistedEntry(t *testing.T) {
	backend := &MockBackend{}
	service, filters := newTestService(t, backend)
	defer service.Stop()

	stubProjectFetches(backend, "proj-1", nil)
	project := models.Project{ID: "proj-1", Status: models.ProjectActive, ScheduleMinutes: 30}
	require.NoError(t, service.SelectProject(context.Background(), project))

	service.SetFilters(models.SavedFilters{SentimentFilters: []string{"negative"}})
	require.NoError(t, service.SaveFilters("proj-1"))
	_, ok := filters.Load("proj-1")
	require.True(t, ok)

	require.NoError(t, service.ClearFilters("proj-1"))
	_, ok = filters.Load("proj-1")
	assert.False(t, ok)
	assert.Empty(t, service.Snapshot().Filters.SentimentFilters)
}

func TestService_ArchivesSnapshotsAfterRefresh(t *testing.T) {
	backend := &MockBackend{}
	archive := &MockArchive{}
	filters, err := filterstore.Open(":memory:", "mention_filters")
	require.NoError(t, err)
	defer filters.Close()

	service := NewService(testConfig(), backend, nil, filters, archive)
	defer service.Stop()

	mentions := []models.Mention{{ID: "m1", Author: "alice"}}
	stubProjectFetches(backend, "proj-1", mentions)
	archive.On("Archive", mock.Anything, "proj-1", mock.MatchedBy(func(ms []models.Mention) bool {
		return len(ms) == 1 && ms[0].ID == "m1"
	})).Return(nil).Once()

	project := models.Project{ID: "proj-1", Status: models.ProjectActive, ScheduleMinutes: 30}
	require.NoError(t, service.SelectProject(context.Background(), project))

	archive.AssertExpectations(t)
}

func TestService_ListsArchivedSnapshots(t *testing.T) {
	backend := &MockBackend{}
	archive := &MockArchive{}
	filters, err := filterstore.Open(":memory:", "mention_filters")
	require.NoError(t, err)
	defer filters.Close()

	service := NewService(testConfig(), backend, nil, filters, archive)
	defer service.Stop()

	archive.On("List", mock.Anything, "proj-1").Return([]string{
		"mentions/proj-1/2026-08-30-12-00-00.json",
		"mentions/proj-1/2026-08-31-12-00-00.json",
	}, nil).Once()

	names, err := service.Snapshots(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Len(t, names, 2)
	archive.AssertExpectations(t)

	// Without an archive the list is empty, never an error.
	bare, _ := newTestService(t, backend)
	defer bare.Stop()
	names, err = bare.Snapshots(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestService_ActionOnUnknownProject(t *testing.T) {
	backend := &MockBackend{}
	service, _ := newTestService(t, backend)
	defer service.Stop()

	assert.Error(t, service.RunNow(context.Background(), "ghost"))
	assert.Error(t, service.TogglePause(context.Background(), "ghost"))
	assert.Error(t, service.DeleteProject(context.Background(), "ghost"))
}
