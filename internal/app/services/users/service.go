// Package users manages profile settings, the follow graph and the featured
// howl pin.
package users

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/storage"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/logging"
)

const bcryptCost = 10

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Service manages user records.
type Service struct {
	users storage.UserStore
	howls storage.HowlStore
	log   *logging.Logger
}

// New constructs a users service.
func New(users storage.UserStore, howls storage.HowlStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	return &Service{users: users, howls: howls, log: log}
}

// Get fetches a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return user.User{}, mapStoreError(err, "user not found")
	}
	return u, nil
}

// GetByUsername fetches a user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (user.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return user.User{}, mapStoreError(err, "user not found")
	}
	return u, nil
}

// Follow adds the target to the actor's following set. Following an already
// followed user is a no-op.
func (s *Service) Follow(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return errors.Validation("cannot follow yourself")
	}
	if _, err := s.users.GetUser(ctx, targetID); err != nil {
		return mapStoreError(err, "user not found")
	}

	if err := s.users.Follow(ctx, actorID, targetID); err != nil {
		return errors.Internal("failed to follow user", err)
	}
	s.log.WithField("user_id", actorID).WithField("target_id", targetID).Info("user followed")
	return nil
}

// Unfollow removes the target from the actor's following set. Unfollowing a
// user who was never followed is a no-op.
func (s *Service) Unfollow(ctx context.Context, actorID, targetID string) error {
	if err := s.users.Unfollow(ctx, actorID, targetID); err != nil {
		return errors.Internal("failed to unfollow user", err)
	}
	s.log.WithField("user_id", actorID).WithField("target_id", targetID).Info("user unfollowed")
	return nil
}

// Pin toggles the actor's featured howl: pinning the currently featured howl
// clears it, pinning anything else sets it. The target must exist and must
// be authored by the actor.
func (s *Service) Pin(ctx context.Context, actorID, howlID string) (string, error) {
	u, err := s.users.GetUser(ctx, actorID)
	if err != nil {
		return "", mapStoreError(err, "user not found")
	}

	if u.FeaturedHowlID == howlID {
		u.FeaturedHowlID = ""
	} else {
		h, err := s.howls.GetHowl(ctx, howlID)
		if err != nil {
			return "", mapStoreError(err, "howl not found")
		}
		if h.AuthorID != actorID {
			return "", errors.Forbidden("can only feature your own howls")
		}
		u.FeaturedHowlID = howlID
	}

	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return "", errors.Internal("failed to update pin", err)
	}
	s.log.WithField("user_id", actorID).WithField("featured_howl_id", updated.FeaturedHowlID).Info("pin toggled")
	return updated.FeaturedHowlID, nil
}

// SetAvatarColor updates the avatar background color.
func (s *Service) SetAvatarColor(ctx context.Context, userID, color string) (user.User, error) {
	if !hexColor.MatchString(color) {
		return user.User{}, errors.Validation("color must be a hex value like #4a4a4a")
	}
	return s.update(ctx, userID, func(u *user.User) { u.AvatarColor = color })
}

// ResetAvatar clears the uploaded avatar and restores the default color.
func (s *Service) ResetAvatar(ctx context.Context, userID string) (user.User, error) {
	return s.update(ctx, userID, func(u *user.User) {
		u.Avatar = ""
		u.AvatarColor = user.DefaultAvatarColor
	})
}

// SetAvatar records the path of an uploaded avatar image.
func (s *Service) SetAvatar(ctx context.Context, userID, path string) (user.User, error) {
	if strings.TrimSpace(path) == "" {
		return user.User{}, errors.Validation("avatar path is required")
	}
	return s.update(ctx, userID, func(u *user.User) { u.Avatar = path })
}

// SetTheme persists the theme preference on the user record.
func (s *Service) SetTheme(ctx context.Context, userID string, theme user.Theme) (user.User, error) {
	if !user.ValidTheme(theme) {
		return user.User{}, errors.Validation("unknown theme")
	}
	return s.update(ctx, userID, func(u *user.User) { u.Theme = theme })
}

// SetBlurb updates the profile blurb.
func (s *Service) SetBlurb(ctx context.Context, userID, blurb string) (user.User, error) {
	if len(blurb) > user.MaxBlurbLength {
		return user.User{}, errors.Validation("blurb must be at most 500 characters")
	}
	return s.update(ctx, userID, func(u *user.User) { u.Blurb = blurb })
}

// ChangePassword verifies the current password before setting the new one.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return errors.Validation("new password is required")
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return mapStoreError(err, "user not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)) != nil {
		return errors.Unauthorized("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return errors.Internal("failed to hash password", err)
	}
	if _, err := s.update(ctx, userID, func(u *user.User) { u.PasswordHash = string(hash) }); err != nil {
		return err
	}
	s.log.WithField("user_id", userID).Info("password changed")
	return nil
}

func (s *Service) update(ctx context.Context, userID string, mutate func(*user.User)) (user.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, mapStoreError(err, "user not found")
	}
	mutate(&u)

	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, errors.Internal("failed to update user", err)
	}
	return updated, nil
}

func mapStoreError(err error, notFoundMsg string) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFound(notFoundMsg)
	}
	return errors.Internal("storage failure", err)
}
