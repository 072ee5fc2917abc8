// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wolfchat/wolfchat/internal/app/domain/howl"
	"github.com/wolfchat/wolfchat/internal/app/domain/notification"
	"github.com/wolfchat/wolfchat/internal/app/domain/session"
	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/storage"
)

// Store implements the storage interfaces on a PostgreSQL database.
type Store struct {
	db *sqlx.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.HowlStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const pqUniqueViolation = "23505"

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return storage.ErrConflict
	}
	return err
}

type userRow struct {
	ID             string         `db:"id"`
	Username       string         `db:"username"`
	PasswordHash   string         `db:"password_hash"`
	Avatar         string         `db:"avatar"`
	AvatarColor    string         `db:"avatar_color"`
	Blurb          string         `db:"blurb"`
	Theme          string         `db:"theme"`
	FeaturedHowlID sql.NullString `db:"featured_howl_id"`
	RepliesMade    int            `db:"replies_made"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:             r.ID,
		Username:       r.Username,
		PasswordHash:   r.PasswordHash,
		Avatar:         r.Avatar,
		AvatarColor:    r.AvatarColor,
		Blurb:          r.Blurb,
		Theme:          user.Theme(r.Theme),
		FeaturedHowlID: r.FeaturedHowlID.String,
		CreatedAt:      r.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const userColumns = `id, username, password_hash, avatar, avatar_color, blurb, theme, featured_howl_id, replies_made, created_at`

// --- UserStore ---------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, avatar, avatar_color, blurb, theme, featured_howl_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Username, u.PasswordHash, u.Avatar, u.AvatarColor, u.Blurb, string(u.Theme), nullString(u.FeaturedHowlID), u.CreatedAt)
	if err != nil {
		return user.User{}, fmt.Errorf("create user: %w", mapError(err))
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, avatar = $3, avatar_color = $4, blurb = $5, theme = $6, featured_howl_id = $7
		WHERE id = $1
	`, u.ID, u.PasswordHash, u.Avatar, u.AvatarColor, u.Blurb, string(u.Theme), nullString(u.FeaturedHowlID))
	if err != nil {
		return user.User{}, fmt.Errorf("update user: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, fmt.Errorf("user %s: %w", u.ID, storage.ErrNotFound)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return user.User{}, fmt.Errorf("get user %s: %w", id, mapError(err))
	}
	return row.toDomain(), nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	if err != nil {
		return user.User{}, fmt.Errorf("get user %s: %w", username, mapError(err))
	}
	return row.toDomain(), nil
}

func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]user.User, error) {
	result := make(map[string]user.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get users: %w", mapError(err))
	}
	for _, row := range rows {
		result[row.ID] = row.toDomain()
	}
	return result, nil
}

func (s *Store) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING
	`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("follow: %w", mapError(err))
	}
	return nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2
	`, followerID, followeeID)
	if err != nil {
		return fmt.Errorf("unfollow: %w", mapError(err))
	}
	return nil
}

func (s *Store) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY followee_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", mapError(err))
	}
	return ids, nil
}

func (s *Store) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY follower_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", mapError(err))
	}
	return ids, nil
}

// --- HowlStore ---------------------------------------------------------------

type howlRow struct {
	ID        string    `db:"id"`
	AuthorID  string    `db:"author_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

type replyRow struct {
	ID        string    `db:"id"`
	HowlID    string    `db:"howl_id"`
	AuthorID  string    `db:"author_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

func (r replyRow) toDomain() howl.Reply {
	return howl.Reply{ID: r.ID, HowlID: r.HowlID, AuthorID: r.AuthorID, Content: r.Content, CreatedAt: r.CreatedAt}
}

func (s *Store) CreateHowl(ctx context.Context, h howl.Howl) (howl.Howl, error) {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.CreatedAt = time.Now().UTC()
	h.Replies = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO howls (id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4)
	`, h.ID, h.AuthorID, h.Content, h.CreatedAt)
	if err != nil {
		return howl.Howl{}, fmt.Errorf("create howl: %w", mapError(err))
	}
	return h, nil
}

func (s *Store) GetHowl(ctx context.Context, id string) (howl.Howl, error) {
	var row howlRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, author_id, content, created_at FROM howls WHERE id = $1
	`, id)
	if err != nil {
		return howl.Howl{}, fmt.Errorf("get howl %s: %w", id, mapError(err))
	}

	h := howl.Howl{ID: row.ID, AuthorID: row.AuthorID, Content: row.Content, CreatedAt: row.CreatedAt}
	replies, err := s.repliesFor(ctx, []string{id})
	if err != nil {
		return howl.Howl{}, err
	}
	h.Replies = replies[id]
	return h, nil
}

// DeleteHowl removes a howl. Its replies go with it (FK cascade), so the
// reply authors' replies-made counters are rolled back in the same
// transaction to keep them equal to the surviving reply rows.
func (s *Store) DeleteHowl(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete howl: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE users u
		SET replies_made = GREATEST(replies_made - d.c, 0)
		FROM (
			SELECT author_id, COUNT(*) AS c
			FROM replies
			WHERE howl_id = $1
			GROUP BY author_id
		) d
		WHERE u.id = d.author_id
	`, id)
	if err != nil {
		return fmt.Errorf("drop replies counters: %w", mapError(err))
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM howls WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete howl: %w", mapError(err))
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("howl %s: %w", id, storage.ErrNotFound)
	}

	return tx.Commit()
}

func (s *Store) ListHowls(ctx context.Context) ([]howl.Howl, error) {
	var rows []howlRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, author_id, content, created_at
		FROM howls
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list howls: %w", mapError(err))
	}
	return s.attachReplies(ctx, rows)
}

func (s *Store) ListHowlsByAuthors(ctx context.Context, authorIDs []string) ([]howl.Howl, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	var rows []howlRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, author_id, content, created_at
		FROM howls
		WHERE author_id = ANY($1)
		ORDER BY created_at DESC, id
	`, pq.Array(authorIDs))
	if err != nil {
		return nil, fmt.Errorf("list howls by authors: %w", mapError(err))
	}
	return s.attachReplies(ctx, rows)
}

func (s *Store) ListRecentHowlsByAuthor(ctx context.Context, authorID string, limit int) ([]howl.Howl, error) {
	var rows []howlRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, author_id, content, created_at
		FROM howls
		WHERE author_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent howls: %w", mapError(err))
	}
	return s.attachReplies(ctx, rows)
}

func (s *Store) CountHowlsByAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM howls WHERE author_id = $1`, authorID)
	if err != nil {
		return 0, fmt.Errorf("count howls: %w", mapError(err))
	}
	return count, nil
}

func (s *Store) attachReplies(ctx context.Context, rows []howlRow) ([]howl.Howl, error) {
	howls := make([]howl.Howl, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		howls = append(howls, howl.Howl{ID: row.ID, AuthorID: row.AuthorID, Content: row.Content, CreatedAt: row.CreatedAt})
		ids = append(ids, row.ID)
	}

	replies, err := s.repliesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range howls {
		howls[i].Replies = replies[howls[i].ID]
	}
	return howls, nil
}

func (s *Store) repliesFor(ctx context.Context, howlIDs []string) (map[string][]howl.Reply, error) {
	result := make(map[string][]howl.Reply)
	if len(howlIDs) == 0 {
		return result, nil
	}

	var rows []replyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, howl_id, author_id, content, created_at
		FROM replies
		WHERE howl_id = ANY($1)
		ORDER BY created_at, id
	`, pq.Array(howlIDs))
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", mapError(err))
	}
	for _, row := range rows {
		result[row.HowlID] = append(result[row.HowlID], row.toDomain())
	}
	return result, nil
}

// AddReply inserts the reply, bumps the author's replies-made counter and,
// when notif is non-nil, records the notification, all in one transaction.
func (s *Store) AddReply(ctx context.Context, rpl howl.Reply, notif *notification.Notification) (howl.Reply, error) {
	if rpl.ID == "" {
		rpl.ID = uuid.NewString()
	}
	rpl.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return howl.Reply{}, fmt.Errorf("begin add reply: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO replies (id, howl_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rpl.ID, rpl.HowlID, rpl.AuthorID, rpl.Content, rpl.CreatedAt)
	if err != nil {
		return howl.Reply{}, fmt.Errorf("insert reply: %w", mapError(err))
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET replies_made = replies_made + 1 WHERE id = $1
	`, rpl.AuthorID)
	if err != nil {
		return howl.Reply{}, fmt.Errorf("bump replies counter: %w", mapError(err))
	}

	if notif != nil {
		id := notif.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, message, read, created_at)
			VALUES ($1, $2, $3, FALSE, $4)
		`, id, notif.UserID, notif.Message, rpl.CreatedAt)
		if err != nil {
			return howl.Reply{}, fmt.Errorf("insert notification: %w", mapError(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return howl.Reply{}, fmt.Errorf("commit add reply: %w", err)
	}
	return rpl, nil
}

// DeleteReply removes the reply and decrements its author's replies-made
// counter in one transaction.
func (s *Store) DeleteReply(ctx context.Context, howlID, replyID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete reply: %w", err)
	}
	defer tx.Rollback()

	var authorID string
	err = tx.GetContext(ctx, &authorID, `
		DELETE FROM replies WHERE id = $1 AND howl_id = $2 RETURNING author_id
	`, replyID, howlID)
	if err != nil {
		return fmt.Errorf("delete reply: %w", mapError(err))
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET replies_made = GREATEST(replies_made - 1, 0) WHERE id = $1
	`, authorID)
	if err != nil {
		return fmt.Errorf("drop replies counter: %w", mapError(err))
	}

	return tx.Commit()
}

func (s *Store) GetReply(ctx context.Context, howlID, replyID string) (howl.Reply, error) {
	var row replyRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, howl_id, author_id, content, created_at
		FROM replies
		WHERE id = $1 AND howl_id = $2
	`, replyID, howlID)
	if err != nil {
		return howl.Reply{}, fmt.Errorf("get reply %s: %w", replyID, mapError(err))
	}
	return row.toDomain(), nil
}

// CountRepliesByAuthor reads the maintained counter instead of scanning the
// replies of every howl.
func (s *Store) CountRepliesByAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT replies_made FROM users WHERE id = $1`, authorID)
	if err != nil {
		return 0, fmt.Errorf("count replies by author: %w", mapError(err))
	}
	return count, nil
}

func (s *Store) CountRepliesReceived(ctx context.Context, authorID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM replies r
		JOIN howls h ON h.id = r.howl_id
		WHERE h.author_id = $1
	`, authorID)
	if err != nil {
		return 0, fmt.Errorf("count replies received: %w", mapError(err))
	}
	return count, nil
}

// --- NotificationStore -------------------------------------------------------

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.UserID, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, fmt.Errorf("create notification: %w", mapError(err))
	}
	return n, nil
}

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Message   string    `db:"message"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Store) ListUnreadNotifications(ctx context.Context, userID string, limit int) ([]notification.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, message, read, created_at
		FROM notifications
		WHERE user_id = $1 AND NOT read
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", mapError(err))
	}

	result := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		result = append(result, notification.Notification{
			ID: row.ID, UserID: row.UserID, Message: row.Message, Read: row.Read, CreatedAt: row.CreatedAt,
		})
	}
	return result, nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read
	`, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", mapError(err))
	}
	return nil
}

func (s *Store) PruneReadNotifications(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE read AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune notifications: %w", mapError(err))
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- SessionStore ------------------------------------------------------------

type sessionRow struct {
	TokenHash  string    `db:"token_hash"`
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Username   string    `db:"username"`
	CreatedAt  time.Time `db:"created_at"`
	LastSeenAt time.Time `db:"last_seen_at"`
	ExpiresAt  time.Time `db:"expires_at"`
}

func (s *Store) CreateSession(ctx context.Context, tokenHash string, sess session.Session) (session.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token_hash, id, user_id, username, created_at, last_seen_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tokenHash, sess.ID, sess.UserID, sess.Username, sess.CreatedAt, sess.LastSeenAt, sess.ExpiresAt)
	if err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", mapError(err))
	}
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (session.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT token_hash, id, user_id, username, created_at, last_seen_at, expires_at
		FROM sessions
		WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return session.Session{}, fmt.Errorf("get session: %w", mapError(err))
	}
	return session.Session{
		ID: row.ID, UserID: row.UserID, Username: row.Username,
		CreatedAt: row.CreatedAt, LastSeenAt: row.LastSeenAt, ExpiresAt: row.ExpiresAt,
	}, nil
}

func (s *Store) TouchSession(ctx context.Context, tokenHash string, seenAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at = $2 WHERE token_hash = $1
	`, tokenHash, seenAt)
	if err != nil {
		return fmt.Errorf("touch session: %w", mapError(err))
	}
	return nil
}

func (s *Store) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete session: %w", mapError(err))
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", mapError(err))
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
