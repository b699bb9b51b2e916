package notifications

import "github.com/mentionwatch/dashboard/internal/models"

// NotificationInterface forwards dashboard alerts to external channels
type NotificationInterface interface {
	SendAlert(alert *models.Alert) error
}
