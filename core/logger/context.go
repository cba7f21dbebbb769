package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	metaKey
)

// meta is the correlation data of one update. With* helpers store an edited copy,
// so a parent context never sees fields added below it.
type meta struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
	flow     string
	step     int
}

func metaFrom(ctx context.Context) meta {
	if ctx == nil {
		return meta{}
	}
	if m, ok := ctx.Value(metaKey).(*meta); ok && m != nil {
		return *m
	}
	return meta{}
}

func withMeta(ctx context.Context, edit func(*meta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	edit(&m)
	return context.WithValue(ctx, metaKey, &m)
}

// fill copies the set correlation fields into rec without overriding explicit attrs.
func (m meta) fill(rec record) {
	if m.rid != "" {
		rec.setDefault("rid", m.rid)
	}
	if m.userID != 0 {
		rec.setDefault("user_id", m.userID)
	}
	if m.updateID != 0 {
		rec.setDefault("update_id", int64(m.updateID))
	}
	if m.chatID != 0 {
		rec.setDefault("chat_id", m.chatID)
	}
	if m.handler != "" {
		rec.setDefault("handler", m.handler)
	}
	if m.flow != "" {
		if _, set := rec["flow"]; !set {
			rec["flow"] = m.flow
			rec["step"] = int64(m.step)
		}
	}
}

// WithLogger stores log in ctx for handlers further down the chain.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *meta) { m.rid = rid })
}

// RIDFrom returns the correlation id, if any.
func RIDFrom(ctx context.Context) string {
	return metaFrom(ctx).rid
}

// WithUpdateMeta attaches the identifiers of the update being handled.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *meta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

// UpdateIDFrom returns the Telegram update id.
func UpdateIDFrom(ctx context.Context) int {
	return metaFrom(ctx).updateID
}

// UserIDFrom returns the Telegram user id.
func UserIDFrom(ctx context.Context) int64 {
	return metaFrom(ctx).userID
}

// ChatIDFrom returns the chat id.
func ChatIDFrom(ctx context.Context) int64 {
	return metaFrom(ctx).chatID
}

// WithHandler names the handler serving the update. An empty name is ignored.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) { m.handler = handler })
}

// HandlerFrom returns the handler name.
func HandlerFrom(ctx context.Context) string {
	return metaFrom(ctx).handler
}

// WithFlow records the flow and step index being executed. An empty flow is ignored.
func WithFlow(ctx context.Context, flow string, step int) context.Context {
	if flow == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *meta) {
		m.flow = flow
		m.step = step
	})
}

// FlowFrom returns the flow and step stored by WithFlow.
func FlowFrom(ctx context.Context) (string, int, bool) {
	m := metaFrom(ctx)
	return m.flow, m.step, m.flow != ""
}
