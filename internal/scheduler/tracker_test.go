package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProjectService is a mock implementation of the project backend
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) RunProject(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

func (m *MockProjectService) UpdateProjectStatus(ctx context.Context, projectID, status string) (*models.Project, error) {
	args := m.Called(ctx, projectID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) DeleteProject(ctx context.Context, projectID string) error {
	args := m.Called(ctx, projectID)
	return args.Error(0)
}

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestTracker(project models.Project, backend ProjectService) *Tracker {
	t := NewTracker(backend, project, nil)
	t.now = func() time.Time { return testNow }
	t.clockRef = testNow
	return t
}

func TestDeriveCountdown(t *testing.T) {
	lastRun := testNow.Add(-10 * time.Minute)
	overdueRun := testNow.Add(-90 * time.Minute)
	longSchedule := testNow.Add(-23*time.Minute - 51*time.Second)

	tests := []struct {
		name     string
		project  models.Project
		expected Countdown
	}{
		{
			name:     "No schedule is unknown",
			project:  models.Project{ScheduleMinutes: 0, Status: models.ProjectActive},
			expected: Countdown{State: CountdownUnknown, Display: "unknown"},
		},
		{
			name:     "Never ran while active is pending",
			project:  models.Project{ScheduleMinutes: 30, Status: models.ProjectActive},
			expected: Countdown{State: CountdownPending, Display: "pending"},
		},
		{
			name:     "Never ran while paused is paused",
			project:  models.Project{ScheduleMinutes: 30, Status: models.ProjectPaused},
			expected: Countdown{State: CountdownPaused, Display: "paused"},
		},
		{
			name:     "Elapsed schedule is due now",
			project:  models.Project{ScheduleMinutes: 30, Status: models.ProjectActive, LastRunAt: &overdueRun},
			expected: Countdown{State: CountdownDue, Display: "due now"},
		},
		{
			name:    "Remaining time under an hour",
			project: models.Project{ScheduleMinutes: 30, Status: models.ProjectActive, LastRunAt: &lastRun},
			expected: Countdown{
				State: CountdownTicking, Display: "20:00", Remaining: 20 * time.Minute,
			},
		},
		{
			name:    "Remaining time over an hour keeps the hour digit",
			project: models.Project{ScheduleMinutes: 90, Status: models.ProjectActive, LastRunAt: &longSchedule},
			expected: Countdown{
				State: CountdownTicking, Display: "1:06:09", Remaining: time.Hour + 6*time.Minute + 9*time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, deriveCountdown(tt.project, testNow))
		})
	}
}

func TestTracker_OverduePausedProject(t *testing.T) {
	lastRun := testNow.Add(-90 * time.Minute)
	project := models.Project{
		ID: "proj-1", ScheduleMinutes: 30,
		Status: models.ProjectPaused, LastRunAt: &lastRun,
	}

	backend := &MockProjectService{}
	tracker := newTestTracker(project, backend)

	assert.True(t, tracker.IsOverdue())
	assert.False(t, tracker.CanRunNow(), "run-now stays disabled until the project is resumed")

	// Run-now while paused is a no-op; no backend call expected.
	require.NoError(t, tracker.RunNow(context.Background()))
	backend.AssertNotCalled(t, "RunProject", mock.Anything, mock.Anything)

	// Resume is still available.
	resumed := project
	resumed.Status = models.ProjectActive
	backend.On("UpdateProjectStatus", mock.Anything, "proj-1", models.ProjectActive).Return(&resumed, nil).Once()

	require.NoError(t, tracker.TogglePause(context.Background()))
	assert.False(t, tracker.IsOverdue())
	assert.True(t, tracker.CanRunNow())
}

func TestTracker_RunNowStampsOptimistically(t *testing.T) {
	project := models.Project{ID: "proj-1", ScheduleMinutes: 30, Status: models.ProjectActive}
	backend := &MockProjectService{}
	backend.On("RunProject", mock.Anything, "proj-1").Return(nil).Once()

	var refetched atomic.Bool
	tracker := NewTracker(backend, project, func(projectID string) {
		assert.Equal(t, "proj-1", projectID)
		refetched.Store(true)
	})
	tracker.now = func() time.Time { return testNow }

	require.NoError(t, tracker.RunNow(context.Background()))

	snapshot := tracker.Project()
	require.NotNil(t, snapshot.LastRunAt)
	assert.True(t, snapshot.LastRunAt.Equal(testNow))
	assert.True(t, refetched.Load(), "run success must trigger a refetch")
	assert.Empty(t, tracker.ActionLoading())
}

func TestTracker_RunNowFailure(t *testing.T) {
	project := models.Project{ID: "proj-1", ScheduleMinutes: 30, Status: models.ProjectActive}
	backend := &MockProjectService{}
	backend.On("RunProject", mock.Anything, "proj-1").Return(fmt.Errorf("backend down")).Once()

	tracker := newTestTracker(project, backend)

	err := tracker.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")

	// Flag cleared so the user may retry; no optimistic stamp applied.
	assert.Empty(t, tracker.ActionLoading())
	assert.Nil(t, tracker.Project().LastRunAt)
}

func TestTracker_ActionsMutuallyExclusive(t *testing.T) {
	project := models.Project{ID: "proj-1", ScheduleMinutes: 30, Status: models.ProjectActive}
	backend := &MockProjectService{}

	inFlight := make(chan struct{})
	release := make(chan struct{})
	backend.On("RunProject", mock.Anything, "proj-1").Run(func(mock.Arguments) {
		close(inFlight)
		<-release
	}).Return(nil).Once()

	tracker := newTestTracker(project, backend)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, tracker.RunNow(context.Background()))
	}()

	<-inFlight
	assert.Equal(t, ActionRun, tracker.ActionLoading())

	// Concurrent clicks are ignored while the flag is set.
	require.NoError(t, tracker.TogglePause(context.Background()))
	require.NoError(t, tracker.Delete(context.Background()))
	require.NoError(t, tracker.RunNow(context.Background()))

	close(release)
	wg.Wait()

	backend.AssertExpectations(t)
	backend.AssertNotCalled(t, "UpdateProjectStatus", mock.Anything, mock.Anything, mock.Anything)
	backend.AssertNotCalled(t, "DeleteProject", mock.Anything, mock.Anything)
}

func TestTracker_TogglePause(t *testing.T) {
	project := models.Project{ID: "proj-1", ScheduleMinutes: 30, Status: models.ProjectActive}
	backend := &MockProjectService{}

	paused := project
	paused.Status = models.ProjectPaused
	backend.On("UpdateProjectStatus", mock.Anything, "proj-1", models.ProjectPaused).Return(&paused, nil).Once()

	tracker := newTestTracker(project, backend)
	require.NoError(t, tracker.TogglePause(context.Background()))
	assert.Equal(t, models.ProjectPaused, tracker.Project().Status)

	active := project
	backend.On("UpdateProjectStatus", mock.Anything, "proj-1", models.ProjectActive).Return(&active, nil).Once()
	require.NoError(t, tracker.TogglePause(context.Background()))
	assert.Equal(t, models.ProjectActive, tracker.Project().Status)

	backend.AssertExpectations(t)
}

func TestTracker_Delete(t *testing.T) {
	project := models.Project{ID: "proj-1", ScheduleMinutes: 30, Status: models.ProjectActive}
	backend := &MockProjectService{}
	backend.On("DeleteProject", mock.Anything, "proj-1").Return(nil).Once()

	tracker := newTestTracker(project, backend)
	require.NoError(t, tracker.Delete(context.Background()))

	// All further actions are no-ops on a deleted project.
	require.NoError(t, tracker.RunNow(context.Background()))
	require.NoError(t, tracker.TogglePause(context.Background()))
	backend.AssertExpectations(t)
}

func tickerRunning(tracker *Tracker) bool {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.stopTick != nil
}

func TestTracker_PauseReleasesTickerResumeRestartsIt(t *testing.T) {
	lastRun := testNow.Add(-10 * time.Minute)
	project := models.Project{ID: "proj-1", ScheduleMinutes: 30, Status: models.ProjectActive, LastRunAt: &lastRun}
	backend := &MockProjectService{}

	paused := project
	paused.Status = models.ProjectPaused
	backend.On("UpdateProjectStatus", mock.Anything, "proj-1", models.ProjectPaused).Return(&paused, nil).Once()
	active := project
	backend.On("UpdateProjectStatus", mock.Anything, "proj-1", models.ProjectActive).Return(&active, nil).Once()

	tracker := newTestTracker(project, backend)
	tracker.tickInterval = time.Hour

	// The orchestrator starts trackers without a tick handler; the
	// ticker lifecycle must not depend on one being registered.
	tracker.Start(nil)
	defer tracker.Stop()
	require.True(t, tickerRunning(tracker))

	require.NoError(t, tracker.TogglePause(context.Background()))
	assert.False(t, tickerRunning(tracker), "ticker must be released when the project enters paused")

	require.NoError(t, tracker.TogglePause(context.Background()))
	assert.True(t, tickerRunning(tracker), "ticker must restart on resume")
}

func TestTracker_IsDueIgnoresStaleClockReference(t *testing.T) {
	lastRun := testNow.Add(-2 * time.Hour)
	project := models.Project{ID: "proj-1", ScheduleMinutes: 30, Status: models.ProjectActive, LastRunAt: &lastRun}
	tracker := newTestTracker(project, &MockProjectService{})

	// Freeze the display reference before the deadline, as happens for
	// any tracker whose ticker is not running. The rendered countdown
	// is stale; due detection must still follow the wall clock.
	tracker.mu.Lock()
	tracker.clockRef = testNow.Add(-100 * time.Minute)
	tracker.mu.Unlock()

	assert.Equal(t, CountdownTicking, tracker.Countdown().State)
	assert.True(t, tracker.IsDue())
}

func TestTracker_TickerOnlyWhileActive(t *testing.T) {
	lastRun := testNow.Add(-10 * time.Minute)
	backend := &MockProjectService{}

	t.Run("Active project ticks", func(t *testing.T) {
		project := models.Project{ID: "proj-1", ScheduleMinutes: 30, Status: models.ProjectActive, LastRunAt: &lastRun}
		tracker := newTestTracker(project, backend)
		tracker.tickInterval = 5 * time.Millisecond

		var ticks atomic.Int32
		tracker.Start(func(c Countdown) {
			assert.Equal(t, CountdownTicking, c.State)
			ticks.Add(1)
		})
		defer tracker.Stop()

		assert.Eventually(t, func() bool { return ticks.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

		tracker.Stop()
		settled := ticks.Load()
		time.Sleep(30 * time.Millisecond)
		assert.LessOrEqual(t, ticks.Load(), settled+1, "ticker must stop after Stop")
	})

	t.Run("Paused project does not tick", func(t *testing.T) {
		project := models.Project{ID: "proj-2", ScheduleMinutes: 30, Status: models.ProjectPaused, LastRunAt: &lastRun}
		tracker := newTestTracker(project, backend)
		tracker.tickInterval = 5 * time.Millisecond

		var ticks atomic.Int32
		tracker.Start(func(Countdown) { ticks.Add(1) })
		defer tracker.Stop()

		time.Sleep(30 * time.Millisecond)
		assert.Zero(t, ticks.Load())
	})
}
