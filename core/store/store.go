// Package store provides context repositories, identity resolution and topic
// bookkeeping for the flow engine on top of SQL, Redis or process memory.
package store

import (
	"context"
	"errors"

	"github.com/m3rciful/flowbot/core/state"
)

// ErrUnknownActor is returned when an operation needs a registered actor that does not exist.
var ErrUnknownActor = errors.New("store: unknown actor")

// Users registers chat platform users and assigns their internal identity.
type Users interface {
	EnsureUser(ctx context.Context, externalID int64, username string) (int64, error)
}

// TopicDirectory keeps the actor <-> forum topic mapping used by the relay.
type TopicDirectory interface {
	TopicFor(ctx context.Context, externalID int64) (int64, bool, error)
	UserForTopic(ctx context.Context, topicID int64) (int64, bool, error)
	BindTopic(ctx context.Context, externalID, topicID int64) error
}

// Backend bundles every storage contract a bot needs.
type Backend interface {
	state.Repository
	state.IdentityResolver
	Users
	TopicDirectory
	Close() error
}

