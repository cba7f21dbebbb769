package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/m3rciful/flowbot/core/engine"
	tg "github.com/m3rciful/flowbot/core/telegram"
	"github.com/m3rciful/flowbot/core/telegram/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

const adminChat = int64(-100500)

type fakeCtx struct {
	tele.Context
	upd       tele.Update
	values    map[string]any
	responded bool
}

func newMessageCtx(chat *tele.Chat, thread int, text string) *fakeCtx {
	return &fakeCtx{
		upd: tele.Update{ID: 1, Message: &tele.Message{
			Sender:   &tele.User{ID: 42, Username: "neo"},
			Chat:     chat,
			ThreadID: thread,
			Text:     text,
		}},
		values: map[string]any{},
	}
}

func newCallbackCtx(data string) *fakeCtx {
	return &fakeCtx{
		upd: tele.Update{ID: 2, Callback: &tele.Callback{
			Sender:  &tele.User{ID: 42},
			Data:    data,
			Message: &tele.Message{Chat: &tele.Chat{ID: 42, Type: tele.ChatPrivate}},
		}},
		values: map[string]any{},
	}
}

func (c *fakeCtx) Update() tele.Update { return c.upd }

func (c *fakeCtx) Message() *tele.Message { return c.upd.Message }

func (c *fakeCtx) Callback() *tele.Callback { return c.upd.Callback }

func (c *fakeCtx) Sender() *tele.User {
	switch {
	case c.upd.Message != nil:
		return c.upd.Message.Sender
	case c.upd.Callback != nil:
		return c.upd.Callback.Sender
	}
	return nil
}

func (c *fakeCtx) Chat() *tele.Chat {
	switch {
	case c.upd.Message != nil:
		return c.upd.Message.Chat
	case c.upd.Callback != nil && c.upd.Callback.Message != nil:
		return c.upd.Callback.Message.Chat
	}
	return nil
}

func (c *fakeCtx) Text() string {
	if c.upd.Message != nil {
		return c.upd.Message.Text
	}
	return ""
}

func (c *fakeCtx) Get(key string) any { return c.values[key] }

func (c *fakeCtx) Set(key string, v any) { c.values[key] = v }

func (c *fakeCtx) Respond(...*tele.CallbackResponse) error {
	c.responded = true
	return nil
}

type call struct {
	kind  string
	actor int64
	text  string
}

type fakeFlows struct {
	calls  []call
	topics []int64
	res    engine.Result
}

func (f *fakeFlows) HandleIncomingMessage(_ context.Context, actor int64, text string) engine.Result {
	f.calls = append(f.calls, call{"message", actor, text})
	return f.res
}

func (f *fakeFlows) HandleTopicMessage(_ context.Context, admin, topicID int64, text string) engine.Result {
	f.calls = append(f.calls, call{"topic", admin, text})
	f.topics = append(f.topics, topicID)
	return f.res
}

func (f *fakeFlows) HandleIncomingCallback(_ context.Context, actor int64, payload string) engine.Result {
	f.calls = append(f.calls, call{"callback", actor, payload})
	return f.res
}

func private() *tele.Chat { return &tele.Chat{ID: 42, Type: tele.ChatPrivate} }

func textHandler(t *testing.T, flows Flows, reg *tg.Registry, opts TextOptions) tele.HandlerFunc {
	t.Helper()
	routes := TextRoutes(flows, reg, opts)
	require.NotEmpty(t, routes)
	require.Equal(t, tele.OnText, routes[0].Endpoint)
	return routes[0].Handler
}

func TestTextConsumedByFlow(t *testing.T) {
	flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeOK}}
	reg := tg.NewRegistry()
	fallbackHit := false
	reg.SetTextFallback(func(tele.Context) error { fallbackHit = true; return nil })

	h := textHandler(t, flows, reg, TextOptions{})
	require.NoError(t, h(newMessageCtx(private(), 0, "me@example.com")))

	assert.Equal(t, []call{{"message", 42, "me@example.com"}}, flows.calls)
	assert.False(t, fallbackHit)
}

func TestIgnoredTextFallsBack(t *testing.T) {
	flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeIgnored, Reason: engine.ReasonNoWaitState}}
	reg := tg.NewRegistry()
	fallbackHit := false
	reg.SetTextFallback(func(tele.Context) error { fallbackHit = true; return nil })

	h := textHandler(t, flows, reg, TextOptions{})
	require.NoError(t, h(newMessageCtx(private(), 0, "hello")))

	assert.Len(t, flows.calls, 1)
	assert.True(t, fallbackHit)
}

func TestUnknownTextWithoutFallback(t *testing.T) {
	flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeIgnored}}
	unknown := 0
	h := textHandler(t, flows, tg.NewRegistry(), TextOptions{
		UnknownText: func(tele.Context) error { unknown++; return nil },
	})

	// group chats never feed wait-states
	require.NoError(t, h(newMessageCtx(&tele.Chat{ID: -5, Type: tele.ChatGroup}, 0, "hi")))
	assert.Empty(t, flows.calls)
	assert.Equal(t, 1, unknown)
}

func TestCommandAliasBeatsFlow(t *testing.T) {
	flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeOK}}
	reg := tg.NewRegistry()
	hits := 0
	reg.RegisterCommand("/flows", commands.Command{
		Handler:     func(tele.Context) error { hits++; return nil },
		Description: "List flows",
		Aliases:     []string{"menu"},
	})

	h := textHandler(t, flows, reg, TextOptions{})
	require.NoError(t, h(newMessageCtx(private(), 0, "menu")))

	assert.Equal(t, 1, hits)
	assert.Empty(t, flows.calls)
}

func TestAdminTopicMessage(t *testing.T) {
	topicChat := &tele.Chat{ID: adminChat, Type: tele.ChatSuperGroup}

	t.Run("topic flow consumes", func(t *testing.T) {
		flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeOK}}
		relayed := false
		h := textHandler(t, flows, tg.NewRegistry(), TextOptions{
			AdminChatID:   adminChat,
			TopicFallback: func(tele.Context) error { relayed = true; return nil },
		})
		require.NoError(t, h(newMessageCtx(topicChat, 77, "12")))
		assert.Equal(t, []call{{"topic", 42, "12"}}, flows.calls)
		assert.Equal(t, []int64{77}, flows.topics)
		assert.False(t, relayed)
	})

	t.Run("ignored goes to relay", func(t *testing.T) {
		flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeIgnored, Reason: engine.ReasonNotInTopic}}
		relayed := false
		h := textHandler(t, flows, tg.NewRegistry(), TextOptions{
			AdminChatID:   adminChat,
			TopicFallback: func(tele.Context) error { relayed = true; return nil },
		})
		require.NoError(t, h(newMessageCtx(topicChat, 77, "hello user")))
		assert.True(t, relayed)
	})

	t.Run("general topic is not a topic", func(t *testing.T) {
		flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeIgnored}}
		relayed := false
		h := textHandler(t, flows, tg.NewRegistry(), TextOptions{
			AdminChatID:   adminChat,
			TopicFallback: func(tele.Context) error { relayed = true; return nil },
		})
		require.NoError(t, h(newMessageCtx(topicChat, 0, "hi")))
		assert.False(t, relayed)
		assert.Empty(t, flows.calls)
	})
}

func TestCallbackRouting(t *testing.T) {
	t.Run("registry unique", func(t *testing.T) {
		flows := &fakeFlows{}
		reg := tg.NewRegistry()
		var got string
		require.NoError(t, reg.RegisterCallback("flow", func(c tele.Context) error {
			got = c.Callback().Data
			return nil
		}))
		ctx := newCallbackCtx("\fflow|onboarding")
		require.NoError(t, CallbackRoute(reg, flows, CallbackOptions{}).Handler(ctx))
		assert.Equal(t, "\fflow|onboarding", got)
		assert.Empty(t, flows.calls)
		assert.True(t, ctx.responded)
	})

	t.Run("raw payload goes to flows", func(t *testing.T) {
		flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeOK}}
		missed := false
		reg := tg.NewRegistry()
		reg.SetCallbackNotFound(func(tele.Context) error { missed = true; return nil })

		require.NoError(t, CallbackRoute(reg, flows, CallbackOptions{}).Handler(newCallbackCtx(`{"v":"a"}`)))
		assert.Equal(t, []call{{"callback", 42, `{"v":"a"}`}}, flows.calls)
		assert.False(t, missed)
	})

	t.Run("unresolved payload", func(t *testing.T) {
		flows := &fakeFlows{res: engine.Result{Outcome: engine.OutcomeIgnored, Reason: engine.ReasonUnresolved}}
		missed := false
		reg := tg.NewRegistry()
		reg.SetCallbackNotFound(func(tele.Context) error { missed = true; return nil })

		require.NoError(t, CallbackRoute(reg, flows, CallbackOptions{}).Handler(newCallbackCtx("nope")))
		assert.True(t, missed)
	})

	t.Run("unknown unique", func(t *testing.T) {
		flows := &fakeFlows{}
		missed := false
		reg := tg.NewRegistry()
		reg.SetCallbackNotFound(func(tele.Context) error { missed = true; return nil })

		require.NoError(t, CallbackRoute(reg, flows, CallbackOptions{}).Handler(newCallbackCtx("\fghost|x")))
		assert.True(t, missed)
		assert.Empty(t, flows.calls)
	})
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string { return "store down" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", errorCode(nil))
	assert.Equal(t, "API_403", errorCode(fmt.Errorf("send: %w", tele.NewError(403, "Forbidden: bot was blocked by the user"))))
	assert.Equal(t, "FLOOD_WAIT", errorCode(tele.FloodError{RetryAfter: 3}))
	assert.Equal(t, "STORE_DOWN", errorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "ERRORSTRING", errorCode(errors.New("plain")))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "flow", normalizeHandlerName(" /Flow "))
	assert.Equal(t, "open_menu", normalizeHandlerName("open menu"))
	assert.Equal(t, "unknown", normalizeHandlerName("/"))
}
