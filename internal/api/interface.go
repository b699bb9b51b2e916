package api

import (
	"context"
	"time"

	"github.com/mentionwatch/dashboard/internal/models"
)

// MentionQuery is the parameter set for a paginated mention fetch.
type MentionQuery struct {
	ProjectID  string
	From       *time.Time
	To         *time.Time
	Sources    []string
	Sentiments []string
	Page       int
	Limit      int
	Sort       string // "recent", "oldest", "reach"
}

// MentionsPage is one page of the backend mention stream.
type MentionsPage struct {
	Mentions   []models.Mention  `json:"mentions"`
	Pagination models.Pagination `json:"pagination"`
}

// Backend is the dashboard backend surface consumed by this client.
type Backend interface {
	ListMentions(ctx context.Context, query MentionQuery) (*MentionsPage, error)
	GetProjectMetrics(ctx context.Context, projectID string, from, to *time.Time) (*models.ProjectMetrics, error)
	RunProject(ctx context.Context, projectID string) error
	UpdateProjectStatus(ctx context.Context, projectID, status string) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	ListAlerts(ctx context.Context) ([]models.Alert, error)
	MarkAlertRead(ctx context.Context, alertID string) (*models.Alert, error)
	GetConnectorHealth(ctx context.Context, projectID string) ([]models.ConnectorHealth, error)
}
