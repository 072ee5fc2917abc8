// Package profiles builds the profile read model: identity fields plus
// derived statistics composed from the user and howl stores.
package profiles

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/wolfchat/wolfchat/internal/app/domain/howl"
	"github.com/wolfchat/wolfchat/internal/app/services/feed"
	"github.com/wolfchat/wolfchat/internal/app/storage"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/logging"
)

// recentHowlLimit caps how many recent howls a profile embeds.
const recentHowlLimit = 5

// PackStats are the social/achievement statistics shown on a profile.
type PackStats struct {
	RepliesReceived   int `json:"repliesReceived"`
	RepliesMade       int `json:"repliesMade"`
	TotalInteractions int `json:"totalInteractions"`
}

// Profile is the read model returned for a profile view.
type Profile struct {
	ID           string           `json:"_id"`
	Username     string           `json:"username"`
	Avatar       string           `json:"avatar,omitempty"`
	AvatarColor  string           `json:"avatarColor"`
	Blurb        string           `json:"blurb"`
	HowlCount    int              `json:"howlCount"`
	PackStats    PackStats        `json:"packStats"`
	JoinDate     time.Time        `json:"joinDate"`
	RecentHowls  []howl.Populated `json:"recentHowls"`
	FeaturedHowl *howl.Populated  `json:"featuredHowl"`
	Following    int              `json:"followingCount"`
	Followers    int              `json:"followerCount"`
}

// Service assembles profiles.
type Service struct {
	users storage.UserStore
	howls storage.HowlStore
	feed  *feed.Service
	log   *logging.Logger
}

// New constructs a profile service.
func New(users storage.UserStore, howls storage.HowlStore, feedSvc *feed.Service, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("profiles")
	}
	return &Service{users: users, howls: howls, feed: feedSvc, log: log}
}

// Get builds the profile read model for a username.
func (s *Service) Get(ctx context.Context, username string) (Profile, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return Profile{}, errors.NotFound("user not found")
		}
		return Profile{}, errors.Internal("failed to fetch user", err)
	}

	howlCount, err := s.howls.CountHowlsByAuthor(ctx, u.ID)
	if err != nil {
		return Profile{}, errors.Internal("failed to count howls", err)
	}
	repliesReceived, err := s.howls.CountRepliesReceived(ctx, u.ID)
	if err != nil {
		return Profile{}, errors.Internal("failed to count replies received", err)
	}
	repliesMade, err := s.howls.CountRepliesByAuthor(ctx, u.ID)
	if err != nil {
		return Profile{}, errors.Internal("failed to count replies made", err)
	}

	recent, err := s.howls.ListRecentHowlsByAuthor(ctx, u.ID, recentHowlLimit)
	if err != nil {
		return Profile{}, errors.Internal("failed to fetch recent howls", err)
	}
	recentPopulated, err := s.feed.Populate(ctx, recent)
	if err != nil {
		return Profile{}, err
	}

	following, err := s.users.ListFollowing(ctx, u.ID)
	if err != nil {
		return Profile{}, errors.Internal("failed to resolve follow list", err)
	}
	followers, err := s.users.ListFollowers(ctx, u.ID)
	if err != nil {
		return Profile{}, errors.Internal("failed to resolve followers", err)
	}

	profile := Profile{
		ID:          u.ID,
		Username:    u.Username,
		Avatar:      u.Avatar,
		AvatarColor: u.AvatarColor,
		Blurb:       u.Blurb,
		HowlCount:   howlCount,
		PackStats: PackStats{
			RepliesReceived:   repliesReceived,
			RepliesMade:       repliesMade,
			TotalInteractions: repliesReceived + repliesMade + howlCount,
		},
		JoinDate:    u.CreatedAt,
		RecentHowls: recentPopulated,
		Following:   len(following),
		Followers:   len(followers),
	}

	if u.FeaturedHowlID != "" {
		featured, err := s.howls.GetHowl(ctx, u.FeaturedHowlID)
		switch {
		case err == nil:
			populated, err := s.feed.PopulateOne(ctx, featured)
			if err == nil {
				profile.FeaturedHowl = &populated
			}
		case stderrors.Is(err, storage.ErrNotFound):
			// Stale pin; serve the profile without it.
			s.log.WithField("user_id", u.ID).WithField("featured_howl_id", u.FeaturedHowlID).
				Warn("featured howl missing")
		default:
			return Profile{}, errors.Internal("failed to fetch featured howl", err)
		}
	}

	return profile, nil
}
