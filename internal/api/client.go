package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mentionwatch/dashboard/internal/models"
)

// Client talks to the dashboard backend over REST. All requests carry
// the session credential; failures never panic and are returned to the
// caller for banner-level display.
type Client struct {
	client *resty.Client
}

// Ensure Client implements Backend
var _ Backend = (*Client)(nil)

// NewClient creates a backend client for the given base URL. token may
// be empty when the deployment authenticates by other means.
func NewClient(baseURL, token string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "mentionwatch-dashboard/1.0")

	if token != "" {
		client.SetHeader("Authorization", "Bearer "+token)
	}

	return &Client{client: client}
}

// ListMentions fetches one page of the project's mention stream.
func (c *Client) ListMentions(ctx context.Context, query MentionQuery) (*MentionsPage, error) {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("projectId", query.ProjectID).
		SetQueryParam("page", strconv.Itoa(query.Page)).
		SetQueryParam("limit", strconv.Itoa(query.Limit))

	if query.From != nil {
		req.SetQueryParam("from", query.From.Format(time.RFC3339))
	}
	if query.To != nil {
		req.SetQueryParam("to", query.To.Format(time.RFC3339))
	}
	if len(query.Sources) > 0 {
		req.SetQueryParam("source", strings.Join(query.Sources, ","))
	}
	if len(query.Sentiments) > 0 {
		req.SetQueryParam("sentiment", strings.Join(query.Sentiments, ","))
	}
	if query.Sort != "" {
		req.SetQueryParam("sort", query.Sort)
	}

	resp, err := req.Get("/mentions")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mentions: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("mentions API returned status %d", resp.StatusCode())
	}

	var page MentionsPage
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("failed to decode mentions page: %w", err)
	}

	return &page, nil
}

// GetProjectMetrics fetches the backend's aggregate breakdowns.
func (c *Client) GetProjectMetrics(ctx context.Context, projectID string, from, to *time.Time) (*models.ProjectMetrics, error) {
	req := c.client.R().SetContext(ctx)
	if from != nil {
		req.SetQueryParam("from", from.Format(time.RFC3339))
	}
	if to != nil {
		req.SetQueryParam("to", to.Format(time.RFC3339))
	}

	resp, err := req.Get(fmt.Sprintf("/projects/%s/metrics", projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metrics: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("metrics API returned status %d", resp.StatusCode())
	}

	var metrics models.ProjectMetrics
	if err := json.Unmarshal(resp.Body(), &metrics); err != nil {
		return nil, fmt.Errorf("failed to decode metrics: %w", err)
	}

	return &metrics, nil
}

// RunProject triggers an immediate ingestion cycle for the project.
func (c *Client) RunProject(ctx context.Context, projectID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Post(fmt.Sprintf("/projects/%s/run", projectID))

	if err != nil {
		return fmt.Errorf("failed to trigger ingestion run: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("run API returned status %d", resp.StatusCode())
	}

	return nil
}

// UpdateProjectStatus patches the project's status and returns the
// updated project.
func (c *Client) UpdateProjectStatus(ctx context.Context, projectID, status string) (*models.Project, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"status": status}).
		Patch(fmt.Sprintf("/projects/%s", projectID))

	if err != nil {
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("project API returned status %d", resp.StatusCode())
	}

	var project models.Project
	if err := json.Unmarshal(resp.Body(), &project); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}

	return &project, nil
}

// DeleteProject removes the project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/projects/%s", projectID))

	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("project API returned status %d", resp.StatusCode())
	}

	return nil
}

// ListAlerts fetches the current alert list.
func (c *Client) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get("/alerts")

	if err != nil {
		return nil, fmt.Errorf("failed to fetch alerts: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("alerts API returned status %d", resp.StatusCode())
	}

	var alerts []models.Alert
	if err := json.Unmarshal(resp.Body(), &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode alerts: %w", err)
	}

	return alerts, nil
}

// MarkAlertRead marks one alert as read and returns the updated copy.
func (c *Client) MarkAlertRead(ctx context.Context, alertID string) (*models.Alert, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Patch(fmt.Sprintf("/alerts/%s/read", alertID))

	if err != nil {
		return nil, fmt.Errorf("failed to mark alert read: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("alerts API returned status %d", resp.StatusCode())
	}

	var alert models.Alert
	if err := json.Unmarshal(resp.Body(), &alert); err != nil {
		return nil, fmt.Errorf("failed to decode alert: %w", err)
	}

	return &alert, nil
}

// GetConnectorHealth fetches read-only connector status snapshots.
func (c *Client) GetConnectorHealth(ctx context.Context, projectID string) ([]models.ConnectorHealth, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/projects/%s/health", projectID))

	if err != nil {
		return nil, fmt.Errorf("failed to fetch connector health: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("health API returned status %d", resp.StatusCode())
	}

	var health []models.ConnectorHealth
	if err := json.Unmarshal(resp.Body(), &health); err != nil {
		return nil, fmt.Errorf("failed to decode connector health: %w", err)
	}

	return health, nil
}
