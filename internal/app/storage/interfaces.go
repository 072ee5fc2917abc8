// Package storage defines the persistence interfaces consumed by the
// application services. Implementations live in the memory and postgres
// subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/wolfchat/wolfchat/internal/app/domain/howl"
	"github.com/wolfchat/wolfchat/internal/app/domain/notification"
	"github.com/wolfchat/wolfchat/internal/app/domain/session"
	"github.com/wolfchat/wolfchat/internal/app/domain/user"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned on uniqueness violations.
var ErrConflict = errors.New("conflict")

// UserStore persists user records and the follow relation. The follow graph
// is stored once, as (follower, followee) pairs; follower lists are the
// reverse index of the same relation, so the two sides can never diverge.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]user.User, error)

	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	ListFollowing(ctx context.Context, userID string) ([]string, error)
	ListFollowers(ctx context.Context, userID string) ([]string, error)
}

// HowlStore persists howls and their replies. Replies are stored in their
// own collection keyed by howl id, and the author's replies-made counter is
// maintained in the same transaction as every reply insert or delete.
type HowlStore interface {
	CreateHowl(ctx context.Context, h howl.Howl) (howl.Howl, error)
	GetHowl(ctx context.Context, id string) (howl.Howl, error)
	DeleteHowl(ctx context.Context, id string) error
	ListHowls(ctx context.Context) ([]howl.Howl, error)
	ListHowlsByAuthors(ctx context.Context, authorIDs []string) ([]howl.Howl, error)
	ListRecentHowlsByAuthor(ctx context.Context, authorID string, limit int) ([]howl.Howl, error)
	CountHowlsByAuthor(ctx context.Context, authorID string) (int, error)

	// AddReply appends a reply and, when notif is non-nil, records the
	// notification atomically with it.
	AddReply(ctx context.Context, rpl howl.Reply, notif *notification.Notification) (howl.Reply, error)
	DeleteReply(ctx context.Context, howlID, replyID string) error
	GetReply(ctx context.Context, howlID, replyID string) (howl.Reply, error)
	CountRepliesByAuthor(ctx context.Context, authorID string) (int, error)
	CountRepliesReceived(ctx context.Context, authorID string) (int, error)
}

// NotificationStore persists per-user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ListUnreadNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	PruneReadNotifications(ctx context.Context, olderThan time.Time) (int, error)
}

// SessionStore persists login sessions keyed by token hash.
type SessionStore interface {
	CreateSession(ctx context.Context, tokenHash string, s session.Session) (session.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (session.Session, error)
	TouchSession(ctx context.Context, tokenHash string, seenAt time.Time) error
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}
