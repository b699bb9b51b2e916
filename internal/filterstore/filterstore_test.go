package filterstore

import (
	"testing"
	"time"

	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", "mention_filters")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	saved := models.SavedFilters{
		DateRange:        models.DateRange{From: &from},
		SourceFilters:    []string{"x", "news"},
		SentimentFilters: []string{"negative"},
	}
	require.NoError(t, store.Save("proj-1", saved))

	loaded, ok := store.Load("proj-1")
	require.True(t, ok)
	assert.Equal(t, saved.SourceFilters, loaded.SourceFilters)
	assert.Equal(t, saved.SentimentFilters, loaded.SentimentFilters)
	require.NotNil(t, loaded.DateRange.From)
	assert.True(t, loaded.DateRange.From.Equal(from))
}

func TestStore_LoadMissingProject(t *testing.T) {
	store := openTestStore(t)

	_, ok := store.Load("never-saved")
	assert.False(t, ok)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("proj-1", models.SavedFilters{SourceFilters: []string{"x"}}))
	require.NoError(t, store.Save("proj-1", models.SavedFilters{SourceFilters: []string{"reddit"}}))

	loaded, ok := store.Load("proj-1")
	require.True(t, ok)
	assert.Equal(t, []string{"reddit"}, loaded.SourceFilters)
}

func TestStore_ProjectsAreNamespaced(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("proj-1", models.SavedFilters{SourceFilters: []string{"x"}}))
	require.NoError(t, store.Save("proj-2", models.SavedFilters{SourceFilters: []string{"news"}}))

	one, _ := store.Load("proj-1")
	two, _ := store.Load("proj-2")
	assert.Equal(t, []string{"x"}, one.SourceFilters)
	assert.Equal(t, []string{"news"}, two.SourceFilters)
}

func TestStore_Clear(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("proj-1", models.SavedFilters{SourceFilters: []string{"x"}}))
	require.NoError(t, store.Clear("proj-1"))

	_, ok := store.Load("proj-1")
	assert.False(t, ok)

	// Clearing an absent entry is not an error.
	require.NoError(t, store.Clear("proj-1"))
}

func TestStore_MalformedPayloadIgnored(t *testing.T) {
	store := openTestStore(t)

	_, err := store.db.Exec(
		`INSERT INTO saved_filters (key, payload) VALUES (?, ?)`,
		"mention_filters_proj-1", "{not json",
	)
	require.NoError(t, err)

	loaded, ok := store.Load("proj-1")
	assert.False(t, ok)
	assert.Empty(t, loaded.SourceFilters)
}
