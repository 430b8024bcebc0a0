package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/findme/internal/model"
)

const defaultNotificationLink = "/dashboard"

// CreateNotification добавляет непрочитанное уведомление (без дедупликации) и рассылает его.
func (s *Service) CreateNotification(ctx context.Context, recipientID, message, link string) (_ *model.Notification, err error) {
	ctx, end := s.startSpan(ctx, "CreateNotification", attribute.String("user.id", recipientID))
	defer end(&err)

	message = strings.TrimSpace(message)
	if recipientID == "" || message == "" {
		return nil, newError(ErrBadRequest, "userId and message are required")
	}
	if link == "" {
		link = defaultNotificationLink
	}
	n := &model.Notification{
		ID:        s.newID(),
		UserID:    recipientID,
		Message:   message,
		Link:      link,
		CreatedAt: s.now(),
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return nil, storeErr("service.CreateNotification", err, "Notification not found")
	}
	s.publish(ctx, EventNotificationCreated, n, recipientID)
	return n, nil
}

// ListUnread — непрочитанные уведомления actor, новые первыми.
func (s *Service) ListUnread(ctx context.Context, actor model.Actor) (_ []*model.Notification, err error) {
	ctx, end := s.startSpan(ctx, "ListUnreadNotifications", attribute.String("user.id", actor.UserID))
	defer end(&err)

	list, err := s.notifications.ListUnread(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr("service.ListUnread", err, "Notification not found")
	}
	return list, nil
}

// MarkRead отмечает уведомление прочитанным. Повторная отметка — no-op.
// Отметить может только получатель или администратор.
func (s *Service) MarkRead(ctx context.Context, actor model.Actor, id string) (err error) {
	ctx, end := s.startSpan(ctx, "MarkRead", attribute.String("notification.id", id))
	defer end(&err)

	n, err := s.notifications.GetNotification(ctx, id)
	if err != nil {
		return storeErr("service.MarkRead", err, "Notification not found")
	}
	if n.UserID != actor.UserID && !actor.IsAdmin() {
		return newError(ErrForbidden, "Not authorized")
	}
	if n.IsRead {
		return nil
	}
	if err := s.notifications.MarkRead(ctx, id); err != nil {
		return storeErr("service.MarkRead", err, "Notification not found")
	}
	return nil
}

func (s *Service) UnreadCount(ctx context.Context, actor model.Actor) (_ int, err error) {
	ctx, end := s.startSpan(ctx, "UnreadNotificationCount", attribute.String("user.id", actor.UserID))
	defer end(&err)

	n, err := s.notifications.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, storeErr("service.UnreadCount", err, "Notification not found")
	}
	return n, nil
}
