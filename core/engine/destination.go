package engine

import (
	"context"
	"fmt"

	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/state"
)

// Transport delivers outbound flow messages.
type Transport interface {
	SendMessage(ctx context.Context, actorID int64, text string) error
	SendMessageWithKeyboard(ctx context.Context, actorID int64, text string, kb flow.Keyboard) error
	SendMessageToTopic(ctx context.Context, chatID, topicID int64, text string) error
	SendMessageWithKeyboardToTopic(ctx context.Context, chatID, topicID int64, text string, kb flow.Keyboard) error
}

// Destination is where the messages of one flow run are delivered: the actor
// directly, or a forum topic of the admin chat.
type Destination struct {
	ActorID int64
	ChatID  int64
	TopicID int64
	topic   bool
}

// Direct addresses an actor's private chat.
func Direct(actorID int64) Destination {
	return Destination{ActorID: actorID}
}

// Topic addresses a forum topic.
func Topic(chatID, topicID int64) Destination {
	return Destination{ChatID: chatID, TopicID: topicID, topic: true}
}

// DestinationFor derives the destination from a context.
func DestinationFor(actorID int64, uc *state.UserContext) Destination {
	if uc != nil && uc.FlowInTopic && uc.TopicID != nil && uc.AdminChatID != nil {
		return Topic(*uc.AdminChatID, *uc.TopicID)
	}
	return Direct(actorID)
}

// IsTopic reports whether the destination is a forum topic.
func (d Destination) IsTopic() bool {
	return d.topic
}

func (d Destination) String() string {
	if d.topic {
		return fmt.Sprintf("topic:%d/%d", d.ChatID, d.TopicID)
	}
	return fmt.Sprintf("direct:%d", d.ActorID)
}

// Send delivers text, with kb when it has rows.
func (d Destination) Send(ctx context.Context, t Transport, text string, kb flow.Keyboard) error {
	switch {
	case d.topic && len(kb) > 0:
		return t.SendMessageWithKeyboardToTopic(ctx, d.ChatID, d.TopicID, text, kb)
	case d.topic:
		return t.SendMessageToTopic(ctx, d.ChatID, d.TopicID, text)
	case len(kb) > 0:
		return t.SendMessageWithKeyboard(ctx, d.ActorID, text, kb)
	default:
		return t.SendMessage(ctx, d.ActorID, text)
	}
}
