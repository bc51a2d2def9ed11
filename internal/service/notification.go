package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/absher-demo/portal-server-go/internal/model"
	"github.com/absher-demo/portal-server-go/internal/sse"
)

type notificationBackend interface {
	Notifications(ctx context.Context, userID string) ([]model.Notification, error)
	RunProactive(ctx context.Context) error
}

// NotificationService serves the session's notification feed and fans
// new entries out to connected SSE clients.
type NotificationService struct {
	backend notificationBackend
	broker  *sse.Broker
}

func NewNotificationService(backend notificationBackend, broker *sse.Broker) *NotificationService {
	return &NotificationService{backend: backend, broker: broker}
}

func (s *NotificationService) List(ctx context.Context, session *model.Session) ([]model.Notification, error) {
	notifications, err := s.backend.Notifications(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	return notifications, nil
}

// TriggerProactive asks the backend to generate its proactive
// reminders, then pushes the refreshed feed to the session's SSE
// clients. The feed itself is still fetched on demand.
func (s *NotificationService) TriggerProactive(ctx context.Context, session *model.Session) ([]model.Notification, error) {
	if err := s.backend.RunProactive(ctx); err != nil {
		return nil, err
	}

	notifications, err := s.List(ctx, session)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, session.ID, notifications)
	return notifications, nil
}

func (s *NotificationService) publish(ctx context.Context, sessionID string, notifications []model.Notification) {
	data, err := json.Marshal(notifications)
	if err != nil {
		log.Error().Err(err).Msg("marshal notifications")
		return
	}

	event := sse.Event{Type: "notifications", Data: data}
	if err := s.broker.Publish(ctx, sessionID, event); err != nil {
		log.Warn().Err(err).
			Str("sessionId", sessionID).
			Msg("publish notifications event")
	}
}
