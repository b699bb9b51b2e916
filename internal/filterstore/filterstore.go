package filterstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store persists one saved filter selection per project in a local
// sqlite database, namespaced as "<prefix>_<projectID>". Saving is
// explicit, loading happens once per project switch, and malformed
// saved state falls back to defaults without error.
type Store struct {
	db     *sql.DB
	prefix string
}

// Open opens (and creates if needed) the filter database at path. Use
// ":memory:" for tests.
func Open(path, prefix string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open filter database: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS saved_filters (
		key     TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create filter table: %w", err)
	}

	return &Store{db: db, prefix: prefix}, nil
}

func (s *Store) key(projectID string) string {
	return s.prefix + "_" + projectID
}

// Save persists the filter selection for one project.
func (s *Store) Save(projectID string, filters models.SavedFilters) error {
	payload, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("failed to encode filters: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO saved_filters (key, payload) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`,
		s.key(projectID), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to save filters: %w", err)
	}
	return nil
}

// Load returns the saved selection for a project and whether one was
// found. Missing or malformed entries yield (zero, false) silently;
// callers fall back to defaults.
func (s *Store) Load(projectID string) (models.SavedFilters, bool) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM saved_filters WHERE key = ?`, s.key(projectID),
	).Scan(&payload)
	if err != nil {
		if err != sql.ErrNoRows {
			logrus.Warnf("Failed to load saved filters for project %s: %v", projectID, err)
		}
		return models.SavedFilters{}, false
	}

	var filters models.SavedFilters
	if err := json.Unmarshal([]byte(payload), &filters); err != nil {
		logrus.Warnf("Ignoring malformed saved filters for project %s: %v", projectID, err)
		return models.SavedFilters{}, false
	}

	return filters, true
}

// Clear removes the saved selection for a project. Clearing filters in
// the UI calls this so defaults apply on the next load.
func (s *Store) Clear(projectID string) error {
	if _, err := s.db.Exec(`DELETE FROM saved_filters WHERE key = ?`, s.key(projectID)); err != nil {
		return fmt.Errorf("failed to clear filters: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
