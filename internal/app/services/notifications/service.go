// Package notifications serves and maintains per-user notifications.
package notifications

import (
	"context"
	"time"

	"github.com/wolfchat/wolfchat/internal/app/domain/notification"
	"github.com/wolfchat/wolfchat/internal/app/storage"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/logging"
)

// Service manages notification reads and retention.
type Service struct {
	store storage.NotificationStore
	log   *logging.Logger
}

// New constructs a notifications service.
func New(store storage.NotificationStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// Unread returns the user's unread notifications, newest first, capped.
func (s *Service) Unread(ctx context.Context, userID string) ([]notification.Notification, error) {
	list, err := s.store.ListUnreadNotifications(ctx, userID, notification.UnreadLimit)
	if err != nil {
		return nil, errors.Internal("failed to fetch notifications", err)
	}
	if list == nil {
		list = []notification.Notification{}
	}
	return list, nil
}

// MarkAllRead marks every notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.store.MarkAllNotificationsRead(ctx, userID); err != nil {
		return errors.Internal("failed to mark notifications read", err)
	}
	return nil
}

// PruneRead deletes read notifications older than the retention window.
func (s *Service) PruneRead(ctx context.Context, retention time.Duration) (int, error) {
	pruned, err := s.store.PruneReadNotifications(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, errors.Internal("failed to prune notifications", err)
	}
	if pruned > 0 {
		s.log.WithField("pruned", pruned).Info("read notifications pruned")
	}
	return pruned, nil
}
