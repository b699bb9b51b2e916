package storage

import (
	"context"

	"github.com/mentionwatch/dashboard/internal/models"
)

// ArchiveInterface persists mention snapshots for offline analysis
type ArchiveInterface interface {
	Archive(ctx context.Context, projectID string, mentions []models.Mention) error
	List(ctx context.Context, projectID string) ([]string, error)
}
