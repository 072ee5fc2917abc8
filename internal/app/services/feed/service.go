// Package feed composes the howl store and the social graph into display
// feeds, with every author resolved to its public fields.
package feed

import (
	"context"

	"github.com/wolfchat/wolfchat/internal/app/domain/howl"
	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/storage"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/logging"
)

// Service aggregates howls into feeds. All operations are read-only.
type Service struct {
	users storage.UserStore
	howls storage.HowlStore
	log   *logging.Logger
}

// New constructs a feed service.
func New(users storage.UserStore, howls storage.HowlStore, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("feed")
	}
	return &Service{users: users, howls: howls, log: log}
}

// All returns every howl newest-first, populated for display.
func (s *Service) All(ctx context.Context) ([]howl.Populated, error) {
	howls, err := s.howls.ListHowls(ctx)
	if err != nil {
		return nil, errors.Internal("failed to fetch howls", err)
	}
	return s.Populate(ctx, howls)
}

// Following returns howls authored by users the viewer follows, newest-first.
// A viewer following nobody gets an empty feed, not an error.
func (s *Service) Following(ctx context.Context, viewerID string) ([]howl.Populated, error) {
	following, err := s.users.ListFollowing(ctx, viewerID)
	if err != nil {
		return nil, errors.Internal("failed to resolve follow list", err)
	}
	if len(following) == 0 {
		return []howl.Populated{}, nil
	}

	howls, err := s.howls.ListHowlsByAuthors(ctx, following)
	if err != nil {
		return nil, errors.Internal("failed to fetch howls", err)
	}
	return s.Populate(ctx, howls)
}

// Populate resolves howl and reply authors to their public fields. Howls
// whose author can no longer be resolved are dropped rather than served with
// a null author; replies by unresolved authors are dropped the same way.
func (s *Service) Populate(ctx context.Context, howls []howl.Howl) ([]howl.Populated, error) {
	authors, err := s.resolveAuthors(ctx, howls)
	if err != nil {
		return nil, err
	}

	result := make([]howl.Populated, 0, len(howls))
	for _, h := range howls {
		author, ok := authors[h.AuthorID]
		if !ok {
			s.log.WithField("howl_id", h.ID).WithField("author_id", h.AuthorID).
				Warn("dropping howl with unresolved author")
			continue
		}

		populated := howl.Populated{
			ID:        h.ID,
			Author:    author.AuthorView(),
			Content:   h.Content,
			Replies:   make([]howl.PopulatedReply, 0, len(h.Replies)),
			CreatedAt: h.CreatedAt,
		}
		for _, r := range h.Replies {
			replyAuthor, ok := authors[r.AuthorID]
			if !ok {
				continue
			}
			populated.Replies = append(populated.Replies, howl.PopulatedReply{
				ID:        r.ID,
				Author:    replyAuthor.AuthorView(),
				Content:   r.Content,
				CreatedAt: r.CreatedAt,
			})
		}
		result = append(result, populated)
	}
	return result, nil
}

// PopulateOne resolves a single howl for display.
func (s *Service) PopulateOne(ctx context.Context, h howl.Howl) (howl.Populated, error) {
	populated, err := s.Populate(ctx, []howl.Howl{h})
	if err != nil {
		return howl.Populated{}, err
	}
	if len(populated) == 0 {
		return howl.Populated{}, errors.NotFound("howl author no longer exists")
	}
	return populated[0], nil
}

func (s *Service) resolveAuthors(ctx context.Context, howls []howl.Howl) (map[string]user.User, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, h := range howls {
		if !seen[h.AuthorID] {
			seen[h.AuthorID] = true
			ids = append(ids, h.AuthorID)
		}
		for _, r := range h.Replies {
			if !seen[r.AuthorID] {
				seen[r.AuthorID] = true
				ids = append(ids, r.AuthorID)
			}
		}
	}

	authors, err := s.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, errors.Internal("failed to resolve authors", err)
	}
	return authors, nil
}
