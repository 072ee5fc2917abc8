// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wolfchat/wolfchat/internal/app/domain/howl"
	"github.com/wolfchat/wolfchat/internal/app/domain/notification"
	"github.com/wolfchat/wolfchat/internal/app/domain/session"
	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/storage"
)

// Store is the in-memory implementation of every storage interface.
type Store struct {
	mu              sync.RWMutex
	nextID          int64
	users           map[string]user.User
	usersByName     map[string]string
	follows         map[string]map[string]bool // follower -> set of followees
	howls           map[string]howl.Howl
	replies         map[string][]howl.Reply // howl id -> ordered replies
	notifications   map[string][]notification.Notification
	notificationIDs map[string]string // notification id -> user id
	sessions        map[string]session.Session
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.HowlStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:          1,
		users:           make(map[string]user.User),
		usersByName:     make(map[string]string),
		follows:         make(map[string]map[string]bool),
		howls:           make(map[string]howl.Howl),
		replies:         make(map[string][]howl.Reply),
		notifications:   make(map[string][]notification.Notification),
		notificationIDs: make(map[string]string),
		sessions:        make(map[string]session.Session),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// idAfter orders sequential ids, longer (and therefore larger) ids first.
func idAfter(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, exists := s.usersByName[key]; exists {
		return user.User{}, fmt.Errorf("username %s: %w", u.Username, storage.ErrConflict)
	}

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	}
	u.CreatedAt = time.Now().UTC()

	s.users[u.ID] = u
	s.usersByName[key] = u.ID
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}

	// Username and creation time are immutable.
	u.Username = original.Username
	u.CreatedAt = original.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[strings.ToLower(username)]
	if !ok {
		return user.User{}, fmt.Errorf("user %s: %w", username, storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) (map[string]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]user.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}

func (s *Store) Follow(_ context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[followerID]; !ok {
		return fmt.Errorf("user %s: %w", followerID, storage.ErrNotFound)
	}
	if _, ok := s.users[followeeID]; !ok {
		return fmt.Errorf("user %s: %w", followeeID, storage.ErrNotFound)
	}

	set, ok := s.follows[followerID]
	if !ok {
		set = make(map[string]bool)
		s.follows[followerID] = set
	}
	set[followeeID] = true
	return nil
}

func (s *Store) Unfollow(_ context.Context, followerID, followeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[followerID]; !ok {
		return fmt.Errorf("user %s: %w", followerID, storage.ErrNotFound)
	}
	delete(s.follows[followerID], followeeID)
	return nil
}

func (s *Store) ListFollowing(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.follows[userID]))
	for id := range s.follows[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListFollowers(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for follower, set := range s.follows {
		if set[userID] {
			ids = append(ids, follower)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// HowlStore implementation ----------------------------------------------------

func (s *Store) CreateHowl(_ context.Context, h howl.Howl) (howl.Howl, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[h.AuthorID]; !ok {
		return howl.Howl{}, fmt.Errorf("user %s: %w", h.AuthorID, storage.ErrNotFound)
	}

	if h.ID == "" {
		h.ID = s.nextIDLocked()
	}
	h.CreatedAt = time.Now().UTC()
	h.Replies = nil

	s.howls[h.ID] = h
	return h, nil
}

func (s *Store) GetHowl(_ context.Context, id string) (howl.Howl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getHowlLocked(id)
}

func (s *Store) getHowlLocked(id string) (howl.Howl, error) {
	h, ok := s.howls[id]
	if !ok {
		return howl.Howl{}, fmt.Errorf("howl %s: %w", id, storage.ErrNotFound)
	}
	h.Replies = append([]howl.Reply(nil), s.replies[id]...)
	return h, nil
}

func (s *Store) DeleteHowl(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.howls[id]; !ok {
		return fmt.Errorf("howl %s: %w", id, storage.ErrNotFound)
	}
	delete(s.howls, id)
	delete(s.replies, id)

	// Clear dangling featured references.
	for uid, u := range s.users {
		if u.FeaturedHowlID == id {
			u.FeaturedHowlID = ""
			s.users[uid] = u
		}
	}
	return nil
}

func (s *Store) ListHowls(_ context.Context) ([]howl.Howl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listHowlsLocked(nil), nil
}

func (s *Store) ListHowlsByAuthors(_ context.Context, authorIDs []string) ([]howl.Howl, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[string]bool, len(authorIDs))
	for _, id := range authorIDs {
		allowed[id] = true
	}
	return s.listHowlsLocked(allowed), nil
}

// listHowlsLocked returns howls newest-first, filtered to the allowed author
// set when non-nil.
func (s *Store) listHowlsLocked(allowed map[string]bool) []howl.Howl {
	result := make([]howl.Howl, 0, len(s.howls))
	for id, h := range s.howls {
		if allowed != nil && !allowed[h.AuthorID] {
			continue
		}
		h.Replies = append([]howl.Reply(nil), s.replies[id]...)
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return idAfter(result[i].ID, result[j].ID)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (s *Store) ListRecentHowlsByAuthor(ctx context.Context, authorID string, limit int) ([]howl.Howl, error) {
	howls, err := s.ListHowlsByAuthors(ctx, []string{authorID})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(howls) > limit {
		howls = howls[:limit]
	}
	return howls, nil
}

func (s *Store) CountHowlsByAuthor(_ context.Context, authorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, h := range s.howls {
		if h.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

func (s *Store) AddReply(_ context.Context, rpl howl.Reply, notif *notification.Notification) (howl.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.howls[rpl.HowlID]; !ok {
		return howl.Reply{}, fmt.Errorf("howl %s: %w", rpl.HowlID, storage.ErrNotFound)
	}
	if _, ok := s.users[rpl.AuthorID]; !ok {
		return howl.Reply{}, fmt.Errorf("user %s: %w", rpl.AuthorID, storage.ErrNotFound)
	}

	if rpl.ID == "" {
		rpl.ID = s.nextIDLocked()
	}
	rpl.CreatedAt = time.Now().UTC()
	s.replies[rpl.HowlID] = append(s.replies[rpl.HowlID], rpl)

	if notif != nil {
		n := *notif
		if n.ID == "" {
			n.ID = s.nextIDLocked()
		}
		n.CreatedAt = time.Now().UTC()
		s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
		s.notificationIDs[n.ID] = n.UserID
	}
	return rpl, nil
}

func (s *Store) DeleteReply(_ context.Context, howlID, replyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replies := s.replies[howlID]
	for i, r := range replies {
		if r.ID == replyID {
			s.replies[howlID] = append(replies[:i:i], replies[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("reply %s: %w", replyID, storage.ErrNotFound)
}

func (s *Store) GetReply(_ context.Context, howlID, replyID string) (howl.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.replies[howlID] {
		if r.ID == replyID {
			return r, nil
		}
	}
	return howl.Reply{}, fmt.Errorf("reply %s: %w", replyID, storage.ErrNotFound)
}

func (s *Store) CountRepliesByAuthor(_ context.Context, authorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, replies := range s.replies {
		for _, r := range replies {
			if r.AuthorID == authorID {
				count++
			}
		}
	}
	return count, nil
}

func (s *Store) CountRepliesReceived(_ context.Context, authorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for howlID, replies := range s.replies {
		if h, ok := s.howls[howlID]; ok && h.AuthorID == authorID {
			count += len(replies)
		}
	}
	return count, nil
}

// NotificationStore implementation --------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	}
	n.CreatedAt = time.Now().UTC()
	s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	s.notificationIDs[n.ID] = n.UserID
	return n, nil
}

func (s *Store) ListUnreadNotifications(_ context.Context, userID string, limit int) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []notification.Notification
	for _, n := range s.notifications[userID] {
		if !n.Read {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return idAfter(result[i].ID, result[j].ID)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	for i := range list {
		list[i].Read = true
	}
	return nil
}

func (s *Store) PruneReadNotifications(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for userID, list := range s.notifications {
		kept := list[:0]
		for _, n := range list {
			if n.Read && n.CreatedAt.Before(olderThan) {
				delete(s.notificationIDs, n.ID)
				pruned++
				continue
			}
			kept = append(kept, n)
		}
		s.notifications[userID] = kept
	}
	return pruned, nil
}

// SessionStore implementation -------------------------------------------------

func (s *Store) CreateSession(_ context.Context, tokenHash string, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now
	s.sessions[tokenHash] = sess
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, tokenHash string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return session.Session{}, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	return sess, nil
}

func (s *Store) TouchSession(_ context.Context, tokenHash string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[tokenHash]
	if !ok {
		return fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	sess.LastSeenAt = seenAt
	s.sessions[tokenHash] = sess
	return nil
}

func (s *Store) DeleteSessionByTokenHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for hash, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, hash)
			deleted++
		}
	}
	return deleted, nil
}
