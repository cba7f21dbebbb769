// Package relay copies ordinary messages between users and their topics in the
// admin forum chat.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/flowbot/core/logger"
	"github.com/m3rciful/flowbot/core/store"
	tgsender "github.com/m3rciful/flowbot/core/telegram/sender"
)

const component = "tg.relay"

// Bot is the part of *tele.Bot the relay calls.
type Bot interface {
	CreateTopic(chat *tele.Chat, topic *tele.Topic) (*tele.Topic, error)
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
}

// Options configures a Relay.
type Options struct {
	// ChatID is the admin forum chat.
	ChatID int64
	// TopicName is a fmt template receiving the display name and the user id.
	TopicName  string
	Dispatcher *tgsender.Dispatcher
}

// Relay forwards messages in both directions. Topics are created on first use and
// recorded in the topic directory.
type Relay struct {
	bot    Bot
	topics store.TopicDirectory
	opts   Options

	// serializes topic creation so one user never gets two topics
	mu sync.Mutex
}

// New builds a Relay.
func New(bot Bot, topics store.TopicDirectory, opts Options) *Relay {
	if strings.TrimSpace(opts.TopicName) == "" {
		opts.TopicName = "%s (%d)"
	}
	return &Relay{bot: bot, topics: topics, opts: opts}
}

// ChatID returns the admin forum chat.
func (r *Relay) ChatID() int64 {
	return r.opts.ChatID
}

// InAdminTopic reports whether msg was written inside a topic of the admin chat.
func (r *Relay) InAdminTopic(msg *tele.Message) bool {
	return msg != nil && msg.Chat != nil && msg.Chat.ID == r.opts.ChatID && msg.ThreadID != 0
}

// ToAdmin copies a user's message into the user's topic.
func (r *Relay) ToAdmin(ctx context.Context, user *tele.User, msg *tele.Message) error {
	if user == nil || msg == nil {
		return nil
	}
	topicID, err := r.EnsureTopic(ctx, user)
	if err != nil {
		return err
	}
	logger.Debug(ctx, component, "relay.to_admin",
		slog.Int64("user_id", user.ID),
		slog.Int64("topic_id", topicID),
	)
	return r.copy(ctx, "relay.to_admin", tele.ChatID(r.opts.ChatID), msg, &tele.SendOptions{ThreadID: int(topicID)})
}

// ToUser copies an admin message written in a topic to the topic's user. It reports
// false when the topic is not bound to anyone.
func (r *Relay) ToUser(ctx context.Context, msg *tele.Message) (bool, error) {
	if !r.InAdminTopic(msg) {
		return false, nil
	}
	userID, ok, err := r.topics.UserForTopic(ctx, int64(msg.ThreadID))
	if err != nil {
		return false, fmt.Errorf("relay lookup topic %d: %w", msg.ThreadID, err)
	}
	if !ok {
		logger.Debug(ctx, component, "relay.unbound_topic",
			slog.Int("topic_id", msg.ThreadID),
		)
		return false, nil
	}
	logger.Debug(ctx, component, "relay.to_user",
		slog.Int64("user_id", userID),
		slog.Int("topic_id", msg.ThreadID),
	)
	return true, r.copy(ctx, "relay.to_user", tele.ChatID(userID), msg)
}

// TopicUser returns the user bound to a topic of the admin chat.
func (r *Relay) TopicUser(ctx context.Context, topicID int64) (int64, bool, error) {
	return r.topics.UserForTopic(ctx, topicID)
}

// EnsureTopic returns the user's topic, creating and binding it when missing.
func (r *Relay) EnsureTopic(ctx context.Context, user *tele.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topicID, ok, err := r.topics.TopicFor(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("relay lookup user %d: %w", user.ID, err)
	}
	if ok {
		return topicID, nil
	}

	name := TopicName(r.opts.TopicName, user)
	topic, err := r.bot.CreateTopic(&tele.Chat{ID: r.opts.ChatID}, &tele.Topic{Name: name})
	if err != nil {
		logger.Error(ctx, component, "relay.topic_create_failed",
			slog.Int64("user_id", user.ID),
			tgsender.ErrAttr(err),
		)
		return 0, fmt.Errorf("relay create topic: %w", err)
	}
	topicID = int64(topic.ThreadID)
	if err := r.topics.BindTopic(ctx, user.ID, topicID); err != nil {
		return 0, fmt.Errorf("relay bind topic: %w", err)
	}
	logger.Info(ctx, component, "relay.topic_created",
		slog.Int64("user_id", user.ID),
		slog.Int64("topic_id", topicID),
	)
	return topicID, nil
}

func (r *Relay) copy(ctx context.Context, action string, to tele.Recipient, msg *tele.Message, opts ...interface{}) error {
	return r.opts.Dispatcher.Do(ctx, action, "copyMessage", func() error {
		_, err := r.bot.Copy(to, msg, opts...)
		return err
	})
}

// TopicName renders the topic title of a user. Telegram caps titles at 128 characters.
func TopicName(template string, user *tele.User) string {
	display := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if display == "" && user.Username != "" {
		display = "@" + user.Username
	}
	if display == "" {
		display = "user"
	}
	name := fmt.Sprintf(template, display, user.ID)
	if r := []rune(name); len(r) > 128 {
		name = string(r[:128])
	}
	return name
}
