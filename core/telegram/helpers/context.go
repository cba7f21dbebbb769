package helpers

import (
	"context"
	"sync/atomic"

	"github.com/m3rciful/flowbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const updateCtxKey = "flowbot.ctx"

type repliesKey struct{}

// Replies counts what the bot sent while handling one update. Flow sends go
// through the engine transport, not tele.Context, so the tally lives in the
// update's context.Context where both paths can reach it.
type Replies struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// Add records one delivered message.
func (r *Replies) Add(withKeyboard bool) {
	if r == nil {
		return
	}
	r.messages.Add(1)
	if withKeyboard {
		r.keyboard.Store(true)
	}
}

// Snapshot returns the message count and whether any message carried a keyboard.
func (r *Replies) Snapshot() (int, bool) {
	if r == nil {
		return 0, false
	}
	return int(r.messages.Load()), r.keyboard.Load()
}

// RepliesFrom returns the update's counters, or nil outside an update.
func RepliesFrom(ctx context.Context) *Replies {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(repliesKey{}).(*Replies)
	return r
}

// CountReply adds a delivered message to the counters carried by ctx, if any.
func CountReply(ctx context.Context, withKeyboard bool) {
	RepliesFrom(ctx).Add(withKeyboard)
}

// StoreContext replaces the context cached on c.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(updateCtxKey, ctx)
}

// ContextFrom returns the context cached on c by BuildContext or StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(updateCtxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the update's context, creating and caching it on first use.
// It carries the rid, update/user/chat ids, the "tg" logger and fresh Replies.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}

	var userID, chatID int64
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}

	ctx := logger.WithLogger(context.Background(), logger.Component("tg"))
	ctx = logger.WithRID(ctx, rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = context.WithValue(ctx, repliesKey{}, &Replies{})
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the update's context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
