package model

import "time"

// Notification mirrors the backend's notification record, shown in the
// SMS mock panel and the in-app notification list.
type Notification struct {
	ID        string              `json:"id"`
	Channel   NotificationChannel `json:"channel"`
	Message   string              `json:"message"`
	CreatedAt time.Time           `json:"created_at"`
	Meta      map[string]any      `json:"meta"`
}
