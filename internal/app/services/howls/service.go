// Package howls manages posting, replying to and deleting howls.
package howls

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/wolfchat/wolfchat/internal/app/domain/howl"
	"github.com/wolfchat/wolfchat/internal/app/domain/notification"
	"github.com/wolfchat/wolfchat/internal/app/metrics"
	"github.com/wolfchat/wolfchat/internal/app/services/feed"
	"github.com/wolfchat/wolfchat/internal/app/storage"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/logging"
)

// notifyPreviewLength is how much reply text a notification quotes.
const notifyPreviewLength = 30

// Service manages howl and reply lifecycles.
type Service struct {
	users storage.UserStore
	howls storage.HowlStore
	feed  *feed.Service
	log   *logging.Logger
}

// New constructs a howls service.
func New(users storage.UserStore, howls storage.HowlStore, feedSvc *feed.Service, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("howls")
	}
	return &Service{users: users, howls: howls, feed: feedSvc, log: log}
}

func validateContent(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", errors.Validation("content is required")
	}
	if len([]rune(content)) > howl.MaxContentLength {
		return "", errors.Validation("content must be at most 280 characters")
	}
	return content, nil
}

// Post creates a howl and returns it populated for display.
func (s *Service) Post(ctx context.Context, authorID, content string) (howl.Populated, error) {
	content, err := validateContent(content)
	if err != nil {
		return howl.Populated{}, err
	}

	created, err := s.howls.CreateHowl(ctx, howl.Howl{AuthorID: authorID, Content: content})
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return howl.Populated{}, errors.NotFound("user not found")
		}
		return howl.Populated{}, errors.Internal("failed to post howl", err)
	}

	metrics.RecordHowlCreated()
	s.log.WithField("howl_id", created.ID).WithField("author_id", authorID).Info("howl posted")
	return s.feed.PopulateOne(ctx, created)
}

// Delete removes a howl. Only its author may delete it.
func (s *Service) Delete(ctx context.Context, actorID, howlID string) error {
	h, err := s.howls.GetHowl(ctx, howlID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("howl not found")
		}
		return errors.Internal("failed to fetch howl", err)
	}
	if h.AuthorID != actorID {
		return errors.Forbidden("not authorized to delete this howl")
	}

	if err := s.howls.DeleteHowl(ctx, howlID); err != nil {
		return errors.Internal("failed to delete howl", err)
	}
	s.log.WithField("howl_id", howlID).WithField("author_id", actorID).Info("howl deleted")
	return nil
}

// Reply appends a reply to a howl and notifies the howl's author, unless the
// author is replying to their own howl. The reply and the notification are
// recorded atomically.
func (s *Service) Reply(ctx context.Context, actorID, howlID, content string) (howl.Populated, error) {
	content, err := validateContent(content)
	if err != nil {
		return howl.Populated{}, err
	}

	h, err := s.howls.GetHowl(ctx, howlID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return howl.Populated{}, errors.NotFound("howl not found")
		}
		return howl.Populated{}, errors.Internal("failed to fetch howl", err)
	}

	var notif *notification.Notification
	if h.AuthorID != actorID {
		actor, err := s.users.GetUser(ctx, actorID)
		if err != nil {
			return howl.Populated{}, errors.Internal("failed to resolve actor", err)
		}
		notif = &notification.Notification{
			UserID:  h.AuthorID,
			Message: fmt.Sprintf("%s replied to your howl: %q", actor.Username, preview(content)),
		}
	}

	if _, err := s.howls.AddReply(ctx, howl.Reply{HowlID: howlID, AuthorID: actorID, Content: content}, notif); err != nil {
		return howl.Populated{}, errors.Internal("failed to post reply", err)
	}

	metrics.RecordReplyCreated()
	if notif != nil {
		metrics.RecordNotificationCreated()
	}
	s.log.WithField("howl_id", howlID).WithField("author_id", actorID).Info("reply posted")

	updated, err := s.howls.GetHowl(ctx, howlID)
	if err != nil {
		return howl.Populated{}, errors.Internal("failed to fetch howl", err)
	}
	return s.feed.PopulateOne(ctx, updated)
}

// DeleteReply removes a reply. Only the reply's own author may delete it,
// regardless of who owns the parent howl.
func (s *Service) DeleteReply(ctx context.Context, actorID, howlID, replyID string) error {
	rpl, err := s.howls.GetReply(ctx, howlID, replyID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("reply not found")
		}
		return errors.Internal("failed to fetch reply", err)
	}
	if rpl.AuthorID != actorID {
		return errors.Forbidden("not authorized to delete this reply")
	}

	if err := s.howls.DeleteReply(ctx, howlID, replyID); err != nil {
		return errors.Internal("failed to delete reply", err)
	}
	s.log.WithField("howl_id", howlID).WithField("reply_id", replyID).Info("reply deleted")
	return nil
}

// Get fetches a single howl populated for display.
func (s *Service) Get(ctx context.Context, howlID string) (howl.Populated, error) {
	h, err := s.howls.GetHowl(ctx, howlID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return howl.Populated{}, errors.NotFound("howl not found")
		}
		return howl.Populated{}, errors.Internal("failed to fetch howl", err)
	}
	return s.feed.PopulateOne(ctx, h)
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= notifyPreviewLength {
		return content + "..."
	}
	return string(runes[:notifyPreviewLength]) + "..."
}
