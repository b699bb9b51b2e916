package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mentionwatch/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// Notifier forwards selected alerts to external channels (Teams,
// email). Implementations must be safe for concurrent use.
type Notifier interface {
	SendAlert(alert *models.Alert) error
}

// AlertService is the slice of the backend the channel needs for
// mark-read requests.
type AlertService interface {
	MarkAlertRead(ctx context.Context, alertID string) (*models.Alert, error)
}

// joinMessage scopes alert delivery to one user+project room. The next
// join implicitly replaces the previous room; no explicit leave exists.
type joinMessage struct {
	Event     string `json:"event"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id"`
}

// pushEnvelope is one message received from the push channel.
type pushEnvelope struct {
	Event string        `json:"event"`
	Alert *models.Alert `json:"alert,omitempty"`
}

// Channel owns the persistent push connection and the in-memory alert
// list. It is the only writer of that list: incoming pushes funnel
// through a single append path with at-most-once insertion semantics.
type Channel struct {
	url      string
	backend  AlertService
	notifier Notifier

	limit         int
	retryAttempts int
	retryDelay    time.Duration
	sessionID     string

	// writeMu serializes websocket writes; gorilla/websocket allows at
	// most one concurrent writer per connection.
	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	join      *joinMessage // deferred until the connection is open
	alerts    []models.Alert
	seen      map[string]bool
	closed    bool
	running   bool
}

// NewChannel creates a push channel client. notifier may be nil.
func NewChannel(url string, backend AlertService, notifier Notifier, historyLimit, retryAttempts int, retryDelay time.Duration) *Channel {
	return &Channel{
		url:           url,
		backend:       backend,
		notifier:      notifier,
		limit:         historyLimit,
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
		sessionID:     uuid.NewString(),
		seen:          make(map[string]bool),
	}
}

// Start opens the connection and begins receiving pushes. Calling it
// again after retries were exhausted acts as the manual reconnect
// trigger. It is a no-op while a connection loop is already running.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.closed || c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.run()
}

func (c *Channel) run() {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		conn, ok := c.dial()
		if !ok {
			return
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.connected = true
		join := c.join
		c.mu.Unlock()

		logrus.Info("Push channel connected")

		// A join requested while disconnected is sent now, so joins
		// survive connect/disconnect races.
		if join != nil {
			if err := c.writeJSON(conn, join); err != nil {
				logrus.Errorf("Failed to send join message: %v", err)
			}
		}

		c.readLoop(conn)

		c.mu.Lock()
		c.connected = false
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return
		}
		logrus.Warn("Push channel disconnected, reconnecting")
	}
}

// dial attempts the bounded reconnect sequence. After exhausting the
// attempts the channel stays disconnected until Start is called again.
func (c *Channel) dial() (*websocket.Conn, bool) {
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, false
		}
		c.mu.Unlock()

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err == nil {
			return conn, true
		}

		logrus.Warnf("Push channel connect attempt %d/%d failed: %v", attempt, c.retryAttempts, err)
		if attempt < c.retryAttempts {
			time.Sleep(c.retryDelay)
		}
	}

	logrus.Error("Push channel retries exhausted; staying disconnected until next manual start")
	return nil, false
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var envelope pushEnvelope
		if err := conn.ReadJSON(&envelope); err != nil {
			conn.Close()
			return
		}

		if envelope.Event == "alert" && envelope.Alert != nil {
			c.handleAlert(*envelope.Alert)
		}
	}
}

// handleAlert is the append path for freshly pushed alerts. New
// critical alerts are forwarded to the notifier; duplicates are not.
func (c *Channel) handleAlert(alert models.Alert) {
	if !c.insert(alert) {
		return
	}

	c.mu.Lock()
	notifier := c.notifier
	c.mu.Unlock()

	if notifier != nil && alert.Type == "critical" {
		go func() {
			if err := notifier.SendAlert(&alert); err != nil {
				logrus.Errorf("Failed to forward critical alert %s: %v", alert.ID, err)
			}
		}()
	}
}

// insert adds one alert to the list: newest at the front, duplicates
// dropped, history capped with the oldest evicted. It reports whether
// the alert was actually inserted.
func (c *Channel) insert(alert models.Alert) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[alert.ID] {
		return false
	}
	c.seen[alert.ID] = true
	c.alerts = append([]models.Alert{alert}, c.alerts...)
	if len(c.alerts) > c.limit {
		evicted := c.alerts[c.limit:]
		c.alerts = c.alerts[:c.limit]
		for _, old := range evicted {
			delete(c.seen, old.ID)
		}
	}
	return true
}

// Join subscribes the session to a user+project room. When the
// connection is not open yet the join is deferred to the next connect.
func (c *Channel) Join(userID, projectID string) {
	join := &joinMessage{
		Event:     "join",
		UserID:    userID,
		ProjectID: projectID,
		SessionID: c.sessionID,
	}

	c.mu.Lock()
	c.join = join
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if connected && conn != nil {
		if err := c.writeJSON(conn, join); err != nil {
			logrus.Errorf("Failed to send join message: %v", err)
		}
	}
}

// writeJSON is the single write path for the connection. Join and the
// run loop's deferred join may race around a reconnect otherwise.
func (c *Channel) writeJSON(conn *websocket.Conn, v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Seed loads an initial alert list (from the REST endpoint) through the
// same dedup/cap path used for pushes. Seeded alerts are history and
// are never forwarded to the notifier.
func (c *Channel) Seed(alerts []models.Alert) {
	// Seed is newest-first already; walk backwards so the newest ends
	// up at the front.
	for i := len(alerts) - 1; i >= 0; i-- {
		c.insert(alerts[i])
	}
}

// MarkRead marks an alert read on the backend and, on success, updates
// the local copy in place. On failure the local list is untouched.
func (c *Channel) MarkRead(ctx context.Context, alertID string) error {
	updated, err := c.backend.MarkAlertRead(ctx, alertID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.alerts {
		if c.alerts[i].ID == alertID {
			c.alerts[i].ReadAt = updated.ReadAt
			break
		}
	}
	return nil
}

// Alerts returns a copy of the alert list, newest first.
func (c *Channel) Alerts() []models.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Alert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// Connected reports the live status of the channel. It drives the
// "reconnecting" indicator only and never gates other operations.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close tears the channel down and discards all handlers. The channel
// cannot be restarted afterwards.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.notifier = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
