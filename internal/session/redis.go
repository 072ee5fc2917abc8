package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	domain "github.com/wolfchat/wolfchat/internal/app/domain/session"
	"github.com/wolfchat/wolfchat/internal/app/storage"
)

const redisKeyPrefix = "wolfchat:session:"

// RedisStore implements storage.SessionStore on Redis. Expiry is enforced by
// per-key TTLs, so the expired-session sweep is a no-op here.
type RedisStore struct {
	client *redis.Client
}

var _ storage.SessionStore = (*RedisStore)(nil)

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(tokenHash string) string { return redisKeyPrefix + tokenHash }

func (s *RedisStore) CreateSession(ctx context.Context, tokenHash string, sess domain.Session) (domain.Session, error) {
	if sess.ID == "" {
		sess.ID = HashToken(tokenHash)[:16]
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now

	payload, err := json.Marshal(sess)
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := s.client.Set(ctx, redisKey(tokenHash), payload, ttl).Err(); err != nil {
		return domain.Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error) {
	payload, err := s.client.Get(ctx, redisKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("fetch session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) TouchSession(ctx context.Context, tokenHash string, seenAt time.Time) error {
	sess, err := s.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		return err
	}
	sess.LastSeenAt = seenAt

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	// KeepTTL preserves the original expiry.
	return s.client.Set(ctx, redisKey(tokenHash), payload, redis.KeepTTL).Err()
}

func (s *RedisStore) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	return s.client.Del(ctx, redisKey(tokenHash)).Err()
}

func (s *RedisStore) DeleteExpiredSessions(_ context.Context, _ time.Time) (int, error) {
	// Redis evicts expired keys on its own.
	return 0, nil
}
