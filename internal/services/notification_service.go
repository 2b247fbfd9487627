// internal/services/notification_service.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/config"
	"github.com/agritrace/agritrace-backend/internal/models"
)

// NotificationService replaces the chain's emitted events: after a
// successful commit the originating service publishes a named event,
// which is persisted and pushed to the configured webhook sink.
type NotificationService struct {
	db     *gorm.DB
	config *config.Config
	client *http.Client
}

func NewNotificationService(db *gorm.DB, cfg *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish records the event and delivers it to the webhook sink in the
// background. Delivery failures are logged and kept on the row; they
// never fail the originating operation.
func (s *NotificationService) Publish(event string, payload map[string]interface{}) {
	if s == nil {
		return
	}

	notification := &models.Notification{
		Event:   event,
		Payload: models.JSONB(payload),
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to persist notification")
		return
	}

	if s.config.Webhook.URL == "" {
		return
	}

	go s.deliver(notification)
}

func (s *NotificationService) deliver(notification *models.Notification) {
	body := map[string]interface{}{
		"id":      notification.ID.String(),
		"event":   notification.Event,
		"payload": map[string]interface{}(notification.Payload),
		"sent_at": time.Now().UTC(),
	}

	data, err := json.Marshal(body)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode webhook payload")
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.config.Webhook.URL, bytes.NewReader(data))
	if err != nil {
		logrus.WithError(err).Error("Failed to build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Webhook.Secret != "" {
		req.Header.Set("X-Webhook-Secret", s.config.Webhook.Secret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.markFailed(notification, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.markFailed(notification, fmt.Sprintf("webhook returned status %d", resp.StatusCode))
		return
	}

	now := time.Now()
	s.db.Model(notification).Updates(map[string]interface{}{
		"delivered":    true,
		"delivered_at": &now,
		"last_error":   "",
	})
}

func (s *NotificationService) markFailed(notification *models.Notification, reason string) {
	logrus.WithFields(logrus.Fields{
		"event":  notification.Event,
		"reason": reason,
	}).Warn("Webhook delivery failed")

	s.db.Model(notification).Update("last_error", reason)
}
