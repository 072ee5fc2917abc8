package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfchat/wolfchat/internal/app/domain/user"
	"github.com/wolfchat/wolfchat/internal/app/storage/memory"
	"github.com/wolfchat/wolfchat/internal/errors"
	"github.com/wolfchat/wolfchat/internal/logging"
	"github.com/wolfchat/wolfchat/internal/session"
)

func newService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	store := memory.New()
	tokens := session.NewTokenManager("test-secret", ttl)
	return New(store, store, tokens, logging.NewNop())
}

func TestSignUp(t *testing.T) {
	svc := newService(t, time.Hour)
	ctx := context.Background()

	login, err := svc.SignUp(ctx, "Luna", "moonhowl1")
	require.NoError(t, err)
	assert.Equal(t, "luna", login.User.Username)
	assert.Equal(t, user.DefaultAvatarColor, login.User.AvatarColor)
	assert.Equal(t, user.ThemeLight, login.User.Theme)
	assert.NotEqual(t, "moonhowl1", login.User.PasswordHash)
	assert.NotEmpty(t, login.Token)
	assert.True(t, login.ExpiresAt.After(time.Now()))
}

func TestSignUpValidation(t *testing.T) {
	svc := newService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "   ", "secret")
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = svc.SignUp(ctx, strings.Repeat("a", MaxUsernameLength+1), "secret")
	assert.True(t, errors.Is(err, errors.CodeValidation))

	_, err = svc.SignUp(ctx, "luna", "")
	assert.True(t, errors.Is(err, errors.CodeValidation))
}

func TestSignUpDuplicate(t *testing.T) {
	svc := newService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "luna", "moonhowl1")
	require.NoError(t, err)

	_, err = svc.SignUp(ctx, "LUNA", "other")
	assert.True(t, errors.Is(err, errors.CodeConflict))
}

func TestLogIn(t *testing.T) {
	svc := newService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "luna", "moonhowl1")
	require.NoError(t, err)

	login, err := svc.LogIn(ctx, "LUNA", "moonhowl1")
	require.NoError(t, err)
	assert.Equal(t, "luna", login.User.Username)

	_, err = svc.LogIn(ctx, "luna", "wrong")
	require.Error(t, err)
	wrongPassword := errors.GetServiceError(err)

	_, err = svc.LogIn(ctx, "ghost", "wrong")
	require.Error(t, err)
	unknownUser := errors.GetServiceError(err)

	// Unknown users and wrong passwords are indistinguishable.
	assert.Equal(t, wrongPassword.Code, unknownUser.Code)
	assert.Equal(t, wrongPassword.Message, unknownUser.Message)
}

func TestAuthenticateRoundTrip(t *testing.T) {
	svc := newService(t, time.Hour)
	ctx := context.Background()

	login, err := svc.SignUp(ctx, "luna", "moonhowl1")
	require.NoError(t, err)

	sess, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, login.User.ID, sess.UserID)
	assert.Equal(t, "luna", sess.Username)

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))
}

func TestLogOutInvalidatesToken(t *testing.T) {
	svc := newService(t, time.Hour)
	ctx := context.Background()

	login, err := svc.SignUp(ctx, "luna", "moonhowl1")
	require.NoError(t, err)

	require.NoError(t, svc.LogOut(ctx, login.Token))

	_, err = svc.Authenticate(ctx, login.Token)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	// Logging out an already-closed session is fine.
	assert.NoError(t, svc.LogOut(ctx, ""))
}

func TestExpiredSessionRejected(t *testing.T) {
	svc := newService(t, time.Nanosecond)
	ctx := context.Background()

	login, err := svc.SignUp(ctx, "luna", "moonhowl1")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = svc.Authenticate(ctx, login.Token)
	assert.True(t, errors.Is(err, errors.CodeUnauthorized))

	swept, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
}
