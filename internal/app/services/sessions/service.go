// Package sessions handles signup, login and session validation.
package sessions

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	domain "github.com/wolfchat/wolfchat/internal/app/domain/session"
	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/storage"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/logging"
	"github.com/wolfchat/wolfchat/internal/session"
)

// MaxUsernameLength bounds usernames at signup.
const MaxUsernameLength = 32

const bcryptCost = 10

// Service manages accounts' credentials and their login sessions.
type Service struct {
	users    storage.UserStore
	sessions storage.SessionStore
	tokens   *session.TokenManager
	log      *logging.Logger
}

// New constructs a sessions service.
func New(users storage.UserStore, sessions storage.SessionStore, tokens *session.TokenManager, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("sessions")
	}
	return &Service{users: users, sessions: sessions, tokens: tokens, log: log}
}

// Login is the result of a successful signup or login.
type Login struct {
	User      user.User
	Token     string
	ExpiresAt time.Time
}

// SignUp registers a new account and opens a session for it.
func (s *Service) SignUp(ctx context.Context, username, password string) (Login, error) {
	username = user.NormalizeUsername(username)
	if username == "" || len(username) > MaxUsernameLength {
		return Login{}, errors.Validation("username must be 1-32 characters")
	}
	if password == "" {
		return Login{}, errors.Validation("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return Login{}, errors.Internal("failed to hash password", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{
		Username:     username,
		PasswordHash: string(hash),
		AvatarColor:  user.DefaultAvatarColor,
		Theme:        user.ThemeLight,
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return Login{}, errors.Conflict("username already exists")
		}
		return Login{}, errors.Internal("failed to create user", err)
	}

	s.log.WithField("user_id", created.ID).WithField("username", created.Username).Info("user signed up")
	return s.open(ctx, created)
}

// LogIn verifies credentials and opens a session. Unknown usernames and bad
// passwords produce the same error.
func (s *Service) LogIn(ctx context.Context, username, password string) (Login, error) {
	u, err := s.users.GetUserByUsername(ctx, user.NormalizeUsername(username))
	if err != nil {
		return Login{}, errors.Unauthorized("invalid credentials")
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Login{}, errors.Unauthorized("invalid credentials")
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return s.open(ctx, u)
}

func (s *Service) open(ctx context.Context, u user.User) (Login, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Login{}, errors.Internal("failed to issue token", err)
	}

	_, err = s.sessions.CreateSession(ctx, session.HashToken(token), domain.Session{
		UserID:    u.ID,
		Username:  u.Username,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return Login{}, errors.Internal("failed to store session", err)
	}
	return Login{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a token to its session, refreshing last-seen time.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Session{}, errors.Unauthorized("")
	}

	if _, err := s.tokens.Validate(token); err != nil {
		return domain.Session{}, errors.Unauthorized("invalid token")
	}

	hash := session.HashToken(token)
	sess, err := s.sessions.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Session{}, errors.Unauthorized("session expired")
	}

	now := time.Now().UTC()
	if sess.Expired(now) {
		_ = s.sessions.DeleteSessionByTokenHash(ctx, hash)
		return domain.Session{}, errors.Unauthorized("session expired")
	}

	_ = s.sessions.TouchSession(ctx, hash, now)
	return sess, nil
}

// LogOut closes the session for the token. Unknown tokens are a no-op.
func (s *Service) LogOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSessionByTokenHash(ctx, session.HashToken(token))
}

// SweepExpired removes expired sessions. Called by the janitor.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	return s.sessions.DeleteExpiredSessions(ctx, time.Now().UTC())
}
