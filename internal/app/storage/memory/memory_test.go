package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wolfchat/wolfchat/internal/app/domain/howl"
	"github.com/wolfchat/wolfchat/internal/app/domain/notification"
	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/storage"
)

func TestDuplicateUsernameConflicts(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{Username: "wolfie"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := store.CreateUser(ctx, user.User{Username: "Wolfie"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestFollowGraphStaysSymmetric(t *testing.T) {
	store := New()
	ctx := context.Background()

	a, _ := store.CreateUser(ctx, user.User{Username: "a"})
	b, _ := store.CreateUser(ctx, user.User{Username: "b"})

	if err := store.Follow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	// Idempotent.
	if err := store.Follow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("follow again: %v", err)
	}

	following, _ := store.ListFollowing(ctx, a.ID)
	if len(following) != 1 || following[0] != b.ID {
		t.Fatalf("expected a to follow b, got %v", following)
	}
	followers, _ := store.ListFollowers(ctx, b.ID)
	if len(followers) != 1 || followers[0] != a.ID {
		t.Fatalf("expected b to be followed by a, got %v", followers)
	}

	if err := store.Unfollow(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	followers, _ = store.ListFollowers(ctx, b.ID)
	if len(followers) != 0 {
		t.Fatalf("expected empty followers, got %v", followers)
	}
}

func TestDeleteHowlClearsDanglingPin(t *testing.T) {
	store := New()
	ctx := context.Background()

	u, _ := store.CreateUser(ctx, user.User{Username: "wolfie"})
	h, _ := store.CreateHowl(ctx, howl.Howl{AuthorID: u.ID, Content: "awoo"})

	u.FeaturedHowlID = h.ID
	if _, err := store.UpdateUser(ctx, u); err != nil {
		t.Fatalf("update user: %v", err)
	}

	if err := store.DeleteHowl(ctx, h.ID); err != nil {
		t.Fatalf("delete howl: %v", err)
	}
	got, _ := store.GetUser(ctx, u.ID)
	if got.FeaturedHowlID != "" {
		t.Fatalf("expected pin cleared, got %q", got.FeaturedHowlID)
	}
}

func TestAddReplyRecordsNotificationAtomically(t *testing.T) {
	store := New()
	ctx := context.Background()

	author, _ := store.CreateUser(ctx, user.User{Username: "author"})
	replier, _ := store.CreateUser(ctx, user.User{Username: "replier"})
	h, _ := store.CreateHowl(ctx, howl.Howl{AuthorID: author.ID, Content: "first"})

	_, err := store.AddReply(ctx, howl.Reply{HowlID: h.ID, AuthorID: replier.ID, Content: "nice!"},
		&notification.Notification{UserID: author.ID, Message: "replier replied to your howl"})
	if err != nil {
		t.Fatalf("add reply: %v", err)
	}

	unread, _ := store.ListUnreadNotifications(ctx, author.ID, notification.UnreadLimit)
	if len(unread) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(unread))
	}

	count, _ := store.CountRepliesByAuthor(ctx, replier.ID)
	if count != 1 {
		t.Fatalf("expected 1 reply made, got %d", count)
	}
	received, _ := store.CountRepliesReceived(ctx, author.ID)
	if received != 1 {
		t.Fatalf("expected 1 reply received, got %d", received)
	}
}

func TestDeleteHowlDropsRepliesFromCounts(t *testing.T) {
	store := New()
	ctx := context.Background()

	author, _ := store.CreateUser(ctx, user.User{Username: "author"})
	replier, _ := store.CreateUser(ctx, user.User{Username: "replier"})
	h, _ := store.CreateHowl(ctx, howl.Howl{AuthorID: author.ID, Content: "first"})
	keep, _ := store.CreateHowl(ctx, howl.Howl{AuthorID: author.ID, Content: "second"})

	if _, err := store.AddReply(ctx, howl.Reply{HowlID: h.ID, AuthorID: replier.ID, Content: "one"}, nil); err != nil {
		t.Fatalf("add reply: %v", err)
	}
	if _, err := store.AddReply(ctx, howl.Reply{HowlID: keep.ID, AuthorID: replier.ID, Content: "two"}, nil); err != nil {
		t.Fatalf("add reply: %v", err)
	}

	if err := store.DeleteHowl(ctx, h.ID); err != nil {
		t.Fatalf("delete howl: %v", err)
	}

	// Counts must track the surviving replies only.
	made, _ := store.CountRepliesByAuthor(ctx, replier.ID)
	if made != 1 {
		t.Fatalf("replies made after howl delete = %d, want 1", made)
	}
	received, _ := store.CountRepliesReceived(ctx, author.ID)
	if received != 1 {
		t.Fatalf("replies received after howl delete = %d, want 1", received)
	}
}

func TestPruneReadNotifications(t *testing.T) {
	store := New()
	ctx := context.Background()

	u, _ := store.CreateUser(ctx, user.User{Username: "wolfie"})
	if _, err := store.CreateNotification(ctx, notification.Notification{UserID: u.ID, Message: "old"}); err != nil {
		t.Fatalf("create notification: %v", err)
	}
	if err := store.MarkAllNotificationsRead(ctx, u.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	pruned, err := store.PruneReadNotifications(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned, got %d", pruned)
	}
}
