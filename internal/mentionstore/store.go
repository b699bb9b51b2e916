package mentionstore

import (
	"context"
	"sync"

	"github.com/mentionwatch/dashboard/internal/api"
	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// scrollThresholdPx is how close to the list bottom an infinite-scroll
// event must be before it triggers a load-more.
const scrollThresholdPx = 180

// Sort orders accepted by the store and the backend.
const (
	SortRecent = "recent"
	SortOldest = "oldest"
	SortReach  = "reach"
)

// Store accumulates mentions for one project across sequential page
// fetches. Page 1 replaces the accumulation, later pages merge by id.
// Changing the project, sort order or filter set resets the store to
// page 1 and invalidates any fetch still in flight.
type Store struct {
	mu      sync.Mutex
	backend api.Backend
	limit   int

	projectID string
	sort      string
	filters   models.SavedFilters

	mentions []models.Mention
	seen     map[string]bool
	cursor   *models.Pagination
	page     int

	loading     bool
	loadingMore bool

	// epoch advances on every reset; responses captured under an older
	// epoch are discarded so stale data never overwrites newer state.
	epoch int
}

// New creates a Store fetching pages of the given size.
func New(backend api.Backend, limit int) *Store {
	return &Store{
		backend: backend,
		limit:   limit,
		sort:    SortRecent,
		seen:    make(map[string]bool),
		page:    1,
	}
}

// SetProject switches the active project, resetting the accumulation.
func (s *Store) SetProject(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projectID == projectID {
		return
	}
	s.projectID = projectID
	s.resetLocked()
}

// SetSort changes the server-side sort order, resetting the
// accumulation.
func (s *Store) SetSort(sort string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sort == sort {
		return
	}
	s.sort = sort
	s.resetLocked()
}

// SetFilters replaces the active filter set, resetting the
// accumulation.
func (s *Store) SetFilters(filters models.SavedFilters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = filters
	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.page = 1
	s.mentions = nil
	s.seen = make(map[string]bool)
	s.cursor = nil
	s.loading = false
	s.loadingMore = false
	s.epoch++
}

// Refresh fetches page 1 and replaces the accumulated list. A refresh
// already in flight makes this a no-op.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || s.projectID == "" {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	epoch := s.epoch
	query := s.queryLocked(1)
	s.mu.Unlock()

	page, err := s.backend.ListMentions(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		// State moved on while we were fetching; drop the response.
		logrus.Debugf("Discarding stale page-1 response for project %s", query.ProjectID)
		return nil
	}
	s.loading = false
	if err != nil {
		return err
	}

	s.page = 1
	s.mentions = page.Mentions
	s.seen = make(map[string]bool, len(page.Mentions))
	for _, m := range page.Mentions {
		s.seen[m.ID] = true
	}
	cursor := page.Pagination
	s.cursor = &cursor
	return nil
}

// LoadMore fetches the next page and merges it into the accumulation,
// appending only mentions whose id is not already present. It is a
// no-op while any fetch is in flight or when the cursor reports no
// further pages.
func (s *Store) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || s.loadingMore || s.cursor == nil || !s.cursor.HasNextPage {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	epoch := s.epoch
	nextPage := s.page + 1
	query := s.queryLocked(nextPage)
	s.mu.Unlock()

	page, err := s.backend.ListMentions(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		logrus.Debugf("Discarding stale page-%d response for project %s", nextPage, query.ProjectID)
		return nil
	}
	s.loadingMore = false
	if err != nil {
		return err
	}

	for _, m := range page.Mentions {
		if s.seen[m.ID] {
			continue
		}
		s.seen[m.ID] = true
		s.mentions = append(s.mentions, m)
	}
	s.page = nextPage
	cursor := page.Pagination
	s.cursor = &cursor
	return nil
}

// HandleScroll triggers LoadMore when the scroll position is within the
// pixel threshold of the list bottom. Duplicate triggers from rapid
// scroll events are absorbed by the in-flight guard, not a timer.
func (s *Store) HandleScroll(ctx context.Context, distanceFromBottomPx int) error {
	if distanceFromBottomPx > scrollThresholdPx {
		return nil
	}
	return s.LoadMore(ctx)
}

func (s *Store) queryLocked(page int) api.MentionQuery {
	return api.MentionQuery{
		ProjectID:  s.projectID,
		From:       s.filters.DateRange.From,
		To:         s.filters.DateRange.To,
		Sources:    s.filters.SourceFilters,
		Sentiments: s.filters.SentimentFilters,
		Page:       page,
		Limit:      s.limit,
		Sort:       s.sort,
	}
}

// Mentions returns a copy of the accumulated list in arrival order.
func (s *Store) Mentions() []models.Mention {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Mention, len(s.mentions))
	copy(out, s.mentions)
	return out
}

// Cursor returns the latest pagination cursor, or nil before the first
// successful fetch.
func (s *Store) Cursor() *models.Pagination {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return nil
	}
	cursor := *s.cursor
	return &cursor
}

// Loading reports whether a page-1 refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LoadingMore reports whether a load-more fetch is in flight.
func (s *Store) LoadingMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingMore
}

// Page returns the highest page merged so far.
func (s *Store) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// ActiveFilters returns the filter set the store is fetching with.
func (s *Store) ActiveFilters() models.SavedFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// ActiveProject returns the active project id.
func (s *Store) ActiveProject() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}
