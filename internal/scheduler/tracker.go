package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// CountdownState classifies the next-run countdown of a project.
type CountdownState string

const (
	// CountdownUnknown means no schedule is configured.
	CountdownUnknown CountdownState = "unknown"
	// CountdownPending means the project runs on a schedule but has
	// never run yet.
	CountdownPending CountdownState = "pending"
	// CountdownPaused means the project is paused and has never run.
	CountdownPaused CountdownState = "paused"
	// CountdownDue means the scheduled time has passed.
	CountdownDue CountdownState = "due"
	// CountdownTicking means a positive remaining duration is counting
	// down.
	CountdownTicking CountdownState = "ticking"
)

// Countdown is the derived next-run view for one project.
type Countdown struct {
	State     CountdownState `json:"state"`
	Display   string         `json:"display"`
	Remaining time.Duration  `json:"remaining,omitempty"`
}

// Scheduler action names, also used as the mutual-exclusion key.
const (
	ActionRun    = "run"
	ActionToggle = "toggle"
	ActionDelete = "delete"
)

// ProjectService is the slice of the backend the tracker mutates
// projects through.
type ProjectService interface {
	RunProject(ctx context.Context, projectID string) error
	UpdateProjectStatus(ctx context.Context, projectID, status string) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
}

// Tracker owns the run/pause state machine for a single project. Each
// project gets its own independent tracker; the countdown ticker runs
// only while the project is active and is released on pause, project
// switch or Stop.
type Tracker struct {
	backend ProjectService
	now     func() time.Time

	mu            sync.Mutex
	project       models.Project
	clockRef      time.Time // countdown "now"; refreshed on tick, resume and run-now
	actionLoading string    // one action in flight at a time, keyed by name
	tickInterval  time.Duration
	stopTick      chan struct{}
	onTick        func(Countdown)
	onRunSuccess  func(projectID string)
	deleted       bool
}

// NewTracker creates a tracker for the given project snapshot.
// onRunSuccess fires after a successful run-now so the caller can
// refetch mentions and metrics; it may be nil.
func NewTracker(backend ProjectService, project models.Project, onRunSuccess func(projectID string)) *Tracker {
	t := &Tracker{
		backend:      backend,
		now:          time.Now,
		project:      project,
		tickInterval: time.Second,
		onRunSuccess: onRunSuccess,
	}
	t.clockRef = t.now()
	return t
}

// Countdown derives the next-run view from the current project state
// and clock reference. It never reports a negative duration.
func (t *Tracker) Countdown() Countdown {
	t.mu.Lock()
	defer t.mu.Unlock()
	return deriveCountdown(t.project, t.clockRef)
}

func deriveCountdown(project models.Project, now time.Time) Countdown {
	if project.ScheduleMinutes <= 0 {
		return Countdown{State: CountdownUnknown, Display: "unknown"}
	}
	if project.LastRunAt == nil {
		if project.Status == models.ProjectPaused {
			return Countdown{State: CountdownPaused, Display: "paused"}
		}
		return Countdown{State: CountdownPending, Display: "pending"}
	}

	nextRunAt := project.LastRunAt.Add(time.Duration(project.ScheduleMinutes) * time.Minute)
	if !now.Before(nextRunAt) {
		return Countdown{State: CountdownDue, Display: "due now"}
	}

	remaining := nextRunAt.Sub(now)
	return Countdown{State: CountdownTicking, Display: formatRemaining(remaining), Remaining: remaining}
}

// formatRemaining renders H:MM:SS, dropping the hour field when zero.
func formatRemaining(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// IsDue reports whether the project's scheduled time has passed. It
// evaluates against the wall clock rather than the display clock
// reference, so it stays accurate while the countdown ticker is
// stopped.
func (t *Tracker) IsDue() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return deriveCountdown(t.project, t.now()).State == CountdownDue
}

// IsOverdue is true exactly when the project is paused and its
// scheduled time has already passed. An overdue paused project must be
// explicitly resumed before it may run again.
func (t *Tracker) IsOverdue() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isOverdueLocked()
}

func (t *Tracker) isOverdueLocked() bool {
	if t.project.Status != models.ProjectPaused {
		return false
	}
	if t.project.ScheduleMinutes <= 0 || t.project.LastRunAt == nil {
		return false
	}
	nextRunAt := t.project.LastRunAt.Add(time.Duration(t.project.ScheduleMinutes) * time.Minute)
	return !t.now().Before(nextRunAt)
}

// CanRunNow reports whether the run-now action is currently allowed:
// no action in flight and the project not paused. A paused project,
// overdue or not, must be resumed first.
func (t *Tracker) CanRunNow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actionLoading == "" && t.project.Status == models.ProjectActive
}

// RunNow triggers an immediate ingestion cycle. Disallowed calls are
// no-ops, matching a disabled button.
func (t *Tracker) RunNow(ctx context.Context) error {
	t.mu.Lock()
	if t.actionLoading != "" || t.project.Status != models.ProjectActive || t.deleted {
		t.mu.Unlock()
		return nil
	}
	t.actionLoading = ActionRun
	// Refresh the clock reference immediately so the countdown does
	// not display stale time during the request.
	t.clockRef = t.now()
	projectID := t.project.ID
	t.mu.Unlock()

	err := t.backend.RunProject(ctx, projectID)

	t.mu.Lock()
	t.actionLoading = ""
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("run-now failed for project %s: %w", projectID, err)
	}
	// Optimistic local stamp; the server sets its own lastRunAt and the
	// next project reload reconciles.
	ranAt := t.now()
	t.project.LastRunAt = &ranAt
	t.clockRef = ranAt
	onRunSuccess := t.onRunSuccess
	t.mu.Unlock()

	logrus.Infof("Triggered ingestion run for project %s", projectID)
	if onRunSuccess != nil {
		onRunSuccess(projectID)
	}
	return nil
}

// TogglePause flips the project between active and paused. On resume
// the clock reference is refreshed so the countdown restarts from an
// accurate now; on pause the ticker is released.
func (t *Tracker) TogglePause(ctx context.Context) error {
	t.mu.Lock()
	if t.actionLoading != "" || t.deleted {
		t.mu.Unlock()
		return nil
	}
	t.actionLoading = ActionToggle
	projectID := t.project.ID
	target := models.ProjectPaused
	if t.project.Status == models.ProjectPaused {
		target = models.ProjectActive
	}
	t.mu.Unlock()

	updated, err := t.backend.UpdateProjectStatus(ctx, projectID, target)

	t.mu.Lock()
	t.actionLoading = ""
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("status toggle failed for project %s: %w", projectID, err)
	}
	t.project = *updated
	resumed := updated.Status == models.ProjectActive
	if resumed {
		t.clockRef = t.now()
	}
	t.mu.Unlock()

	logrus.Infof("Project %s is now %s", projectID, updated.Status)

	// Ticker runs only while active.
	if resumed {
		t.startTicker()
	} else {
		t.stopTicker()
	}
	return nil
}

// Delete removes the project and permanently stops the tracker.
func (t *Tracker) Delete(ctx context.Context) error {
	t.mu.Lock()
	if t.actionLoading != "" || t.deleted {
		t.mu.Unlock()
		return nil
	}
	t.actionLoading = ActionDelete
	projectID := t.project.ID
	t.mu.Unlock()

	err := t.backend.DeleteProject(ctx, projectID)

	t.mu.Lock()
	t.actionLoading = ""
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("delete failed for project %s: %w", projectID, err)
	}
	t.deleted = true
	t.mu.Unlock()

	t.stopTicker()
	logrus.Infof("Deleted project %s", projectID)
	return nil
}

// ActionLoading returns the name of the in-flight action, or "".
func (t *Tracker) ActionLoading() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actionLoading
}

// Project returns the tracker's current project snapshot.
func (t *Tracker) Project() models.Project {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.project
}

// SetProject replaces the tracked snapshot, e.g. after a reload.
func (t *Tracker) SetProject(project models.Project) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.project = project
	t.clockRef = t.now()
}

// Start begins the 1-second countdown tick loop, delivering a fresh
// Countdown to onTick. No ticker is started while the project is
// paused. Stop releases the ticker; Start and Stop must pair across
// project switches and teardown.
func (t *Tracker) Start(onTick func(Countdown)) {
	t.mu.Lock()
	t.onTick = onTick
	active := t.project.Status == models.ProjectActive
	t.mu.Unlock()

	if active {
		t.startTicker()
	}
}

// Stop releases the countdown ticker and drops the tick handler.
func (t *Tracker) Stop() {
	t.stopTicker()
	t.mu.Lock()
	t.onTick = nil
	t.mu.Unlock()
}

func (t *Tracker) startTicker() {
	t.mu.Lock()
	if t.stopTick != nil || t.deleted {
		t.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	t.stopTick = stop
	interval := t.tickInterval
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				t.clockRef = t.now()
				countdown := deriveCountdown(t.project, t.clockRef)
				onTick := t.onTick
				t.mu.Unlock()
				if onTick != nil {
					onTick(countdown)
				}
			}
		}
	}()
}

func (t *Tracker) stopTicker() {
	t.mu.Lock()
	stop := t.stopTick
	t.stopTick = nil
	t.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}
