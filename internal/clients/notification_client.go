package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// NotificationClient sends notifications via the notification service
type NotificationClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewNotificationClient creates a new notification client
func NewNotificationClient(baseURL string, logger *logrus.Logger) *NotificationClient {
	return &NotificationClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.WithField("component", "notification_client"),
	}
}

type notificationRequest struct {
	UserID   string                 `json:"userId"`
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Notify sends a notification to a user. Delivery is best-effort; errors are
// returned for logging only and must not affect settlement state.
func (c *NotificationClient) Notify(ctx context.Context, userID, notifType, title, message string, metadata map[string]interface{}) error {
	if c.baseURL == "" {
		return nil
	}

	payload := notificationRequest{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/notifications", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification service returned %d", resp.StatusCode)
	}

	c.logger.WithFields(logrus.Fields{
		"user_id": userID,
		"type":    notifType,
	}).Debug("Notification sent")
	return nil
}
