package profiles

import (
	"context"
	"fmt"
	"testing"

	"github.com/wolfchat/wolfchat/internal/app/domain/howl"
	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/services/feed"
	"github.com/wolfchat/wolfchat/internal/app/storage/memory"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/logging"
)

func newFixture(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	feedSvc := feed.New(store, store, logging.NewNop())
	return New(store, store, feedSvc, logging.NewNop()), store
}

func seedUser(t *testing.T, store *memory.Store, username string) user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), user.User{Username: username})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func TestGetUnknownUser(t *testing.T) {
	svc, _ := newFixture(t)
	if _, err := svc.Get(context.Background(), "nobody"); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("error = %v", err)
	}
}

func TestGetStats(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	alpha := seedUser(t, store, "alpha")
	beta := seedUser(t, store, "beta")

	var howls []howl.Howl
	for i := 0; i < 6; i++ {
		h, err := store.CreateHowl(ctx, howl.Howl{AuthorID: alpha.ID, Content: fmt.Sprintf("howl %d", i)})
		if err != nil {
			t.Fatalf("seed howl: %v", err)
		}
		howls = append(howls, h)
	}

	// beta replies to alpha, alpha replies back on their own howl.
	if _, err := store.AddReply(ctx, howl.Reply{HowlID: howls[0].ID, AuthorID: beta.ID, Content: "hi"}, nil); err != nil {
		t.Fatalf("AddReply: %v", err)
	}
	if _, err := store.AddReply(ctx, howl.Reply{HowlID: howls[0].ID, AuthorID: alpha.ID, Content: "welcome"}, nil); err != nil {
		t.Fatalf("AddReply: %v", err)
	}

	if err := store.Follow(ctx, beta.ID, alpha.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	profile, err := svc.Get(ctx, "alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if profile.HowlCount != 6 {
		t.Fatalf("HowlCount = %d", profile.HowlCount)
	}
	// Replies alpha received, including their own, counted against their howls.
	if profile.PackStats.RepliesReceived != 2 {
		t.Fatalf("RepliesReceived = %d", profile.PackStats.RepliesReceived)
	}
	if profile.PackStats.RepliesMade != 1 {
		t.Fatalf("RepliesMade = %d", profile.PackStats.RepliesMade)
	}
	if want := 2 + 1 + 6; profile.PackStats.TotalInteractions != want {
		t.Fatalf("TotalInteractions = %d, want %d", profile.PackStats.TotalInteractions, want)
	}

	if len(profile.RecentHowls) != 5 {
		t.Fatalf("RecentHowls = %d, want 5", len(profile.RecentHowls))
	}
	if profile.RecentHowls[0].Content != "howl 5" {
		t.Fatalf("newest recent howl = %q", profile.RecentHowls[0].Content)
	}

	if profile.Followers != 1 || profile.Following != 0 {
		t.Fatalf("followers/following = %d/%d", profile.Followers, profile.Following)
	}
	if profile.FeaturedHowl != nil {
		t.Fatalf("FeaturedHowl = %v, want nil", profile.FeaturedHowl)
	}
}

func TestGetFeaturedHowl(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	alpha := seedUser(t, store, "alpha")

	h, err := store.CreateHowl(ctx, howl.Howl{AuthorID: alpha.ID, Content: "pinned"})
	if err != nil {
		t.Fatalf("seed howl: %v", err)
	}
	alpha.FeaturedHowlID = h.ID
	if _, err := store.UpdateUser(ctx, alpha); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	profile, err := svc.Get(ctx, "alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if profile.FeaturedHowl == nil || profile.FeaturedHowl.Content != "pinned" {
		t.Fatalf("FeaturedHowl = %v", profile.FeaturedHowl)
	}
}

func TestGetStaleFeaturedHowlServedWithout(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()
	alpha := seedUser(t, store, "alpha")

	alpha.FeaturedHowlID = "long-gone"
	if _, err := store.UpdateUser(ctx, alpha); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	profile, err := svc.Get(ctx, "alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if profile.FeaturedHowl != nil {
		t.Fatalf("stale FeaturedHowl = %v, want nil", profile.FeaturedHowl)
	}
}
