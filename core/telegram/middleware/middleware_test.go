package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

type fakeCtx struct {
	tele.Context
	user   *tele.User
	chat   *tele.Chat
	values map[string]any
}

func newCtx(userID, chatID int64) *fakeCtx {
	return &fakeCtx{
		user:   &tele.User{ID: userID, Username: "neo"},
		chat:   &tele.Chat{ID: chatID},
		values: map[string]any{},
	}
}

func (c *fakeCtx) Update() tele.Update { return tele.Update{ID: 1} }
func (c *fakeCtx) Sender() *tele.User { return c.user }
func (c *fakeCtx) Chat() *tele.Chat { return c.chat }
func (c *fakeCtx) Get(key string) any { return c.values[key] }
func (c *fakeCtx) Set(key string, v any) { c.values[key] = v }

type fakeUsers struct {
	calls int
	err   error
}

func (u *fakeUsers) EnsureUser(_ context.Context, externalID int64, _ string) (int64, error) {
	u.calls++
	if u.err != nil {
		return 0, u.err
	}
	return externalID + 1000, nil
}

func TestIdentityRemembersSenders(t *testing.T) {
	users := &fakeUsers{}
	passed := 0
	h := Identity(users, IdentityOptions{})(func(tele.Context) error {
		passed++
		return nil
	})

	require.NoError(t, h(newCtx(42, 42)))
	require.NoError(t, h(newCtx(42, 42)))
	require.NoError(t, h(newCtx(7, 7)))
	assert.Equal(t, 2, users.calls)
	assert.Equal(t, 3, passed)
}

func TestIdentityContinuesOnStoreError(t *testing.T) {
	users := &fakeUsers{err: errors.New("down")}
	passed := false
	h := Identity(users, IdentityOptions{})(func(tele.Context) error {
		passed = true
		return nil
	})
	require.NoError(t, h(newCtx(42, 42)))
	assert.True(t, passed)

	// failures are not remembered
	require.NoError(t, h(newCtx(42, 42)))
	assert.Equal(t, 2, users.calls)
}

func TestIdentitySkipsBots(t *testing.T) {
	users := &fakeUsers{}
	c := newCtx(42, 42)
	c.user.IsBot = true
	require.NoError(t, Identity(users, IdentityOptions{})(func(tele.Context) error { return nil })(c))
	assert.Zero(t, users.calls)
}

func TestIsAdmin(t *testing.T) {
	opts := AdminOptions{AdminID: 7, AdminChatID: -100}
	assert.True(t, opts.IsAdmin(newCtx(7, 7)))
	assert.True(t, opts.IsAdmin(newCtx(42, -100)))
	assert.False(t, opts.IsAdmin(newCtx(42, 42)))
	assert.True(t, AdminOptions{}.IsAdmin(newCtx(42, 42)))
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected, passed := 0, 0
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminID: 7,
		OnReject: func(tele.Context) error {
			rejected++
			return nil
		},
	})
	h := mw(func(tele.Context) error {
		passed++
		return nil
	})
	require.NoError(t, h(newCtx(42, 42)))
	require.NoError(t, h(newCtx(7, 7)))
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, passed)
}

type replyCtx struct {
	*fakeCtx
	sent int
}

func (c *replyCtx) Send(interface{}, ...interface{}) error { c.sent++; return nil }
func (c *replyCtx) Reply(interface{}, ...interface{}) error {
	return errors.New("message to reply not found")
}

func TestMessageMetricsCountsReplies(t *testing.T) {
	c := &replyCtx{fakeCtx: newCtx(7, 7)}
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		require.NoError(t, c.Send("plain"))
		require.NoError(t, c.Send("menu", &tele.ReplyMarkup{}))
		assert.Error(t, c.Reply("lost"))
		return nil
	})
	require.NoError(t, h(c))

	n, kb := GetCounters(c)
	assert.Equal(t, 2, n, "failed replies are not counted")
	assert.True(t, kb)
	assert.Equal(t, 2, c.sent)
}
