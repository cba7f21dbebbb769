package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/flowbot/core/engine"
	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/logger"
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"
	"github.com/m3rciful/flowbot/core/telegram/keyboard"
	tgsender "github.com/m3rciful/flowbot/core/telegram/sender"
)

// ErrPayloadTooLong reports a keyboard the Bot API would reject for oversized callback data.
var ErrPayloadTooLong = errors.New("callback payload too long")

// Sender is the part of *tele.Bot used to deliver flow messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Transport delivers engine output through the Bot API. Sends are synchronous so
// the engine sees failures; network retries happen in the HTTP client.
type Transport struct {
	bot       Sender
	parseMode tele.ParseMode
}

var _ engine.Transport = (*Transport)(nil)

// NewTransport wraps a bot. An empty parseMode sends plain text.
func NewTransport(bot Sender, parseMode tele.ParseMode) *Transport {
	return &Transport{bot: bot, parseMode: parseMode}
}

// SendMessage sends text to an actor's private chat.
func (t *Transport) SendMessage(ctx context.Context, actorID int64, text string) error {
	return t.send(ctx, actorID, 0, text, nil)
}

// SendMessageWithKeyboard sends text with an inline keyboard to an actor's private chat.
func (t *Transport) SendMessageWithKeyboard(ctx context.Context, actorID int64, text string, kb flow.Keyboard) error {
	return t.send(ctx, actorID, 0, text, kb)
}

// SendMessageToTopic sends text into a forum topic.
func (t *Transport) SendMessageToTopic(ctx context.Context, chatID, topicID int64, text string) error {
	return t.send(ctx, chatID, topicID, text, nil)
}

// SendMessageWithKeyboardToTopic sends text with an inline keyboard into a forum topic.
func (t *Transport) SendMessageWithKeyboardToTopic(ctx context.Context, chatID, topicID int64, text string, kb flow.Keyboard) error {
	return t.send(ctx, chatID, topicID, text, kb)
}

func (t *Transport) send(ctx context.Context, chatID, topicID int64, text string, kb flow.Keyboard) error {
	if bad := keyboard.Oversized(kb); len(bad) > 0 {
		logger.Warn(ctx, "tg.sender", "send.payload_too_long",
			slog.Int64("chat_id", chatID),
			slog.String("payload", logger.SanitizeLimit(bad[0], 96)),
			slog.Int("count", len(bad)),
		)
		return fmt.Errorf("telegram send to %d: %w: %d button(s) over %d bytes", chatID, ErrPayloadTooLong, len(bad), keyboard.MaxPayloadBytes)
	}
	opts := &tele.SendOptions{
		ParseMode:   t.parseMode,
		ThreadID:    int(topicID),
		ReplyMarkup: keyboard.FromFlow(kb),
	}

	start := time.Now()
	_, err := t.bot.Send(tele.ChatID(chatID), text, opts)
	attrs := []slog.Attr{
		slog.String("action", "send.flow"),
		slog.Int64("chat_id", chatID),
		slog.Bool("kb", opts.ReplyMarkup != nil),
		slog.Duration("duration", logger.Took(start)),
	}
	if topicID != 0 {
		attrs = append(attrs, slog.Int64("topic_id", topicID))
	}
	if err != nil {
		logger.Error(ctx, "tg.sender", "send.fail", append(attrs, tgsender.ErrAttr(err))...)
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	tghelpers.CountReply(ctx, opts.ReplyMarkup != nil)
	logger.Debug(ctx, "tg.sender", "send.success", attrs...)
	return nil
}
