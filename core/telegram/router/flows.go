package router

import (
	"context"

	"github.com/m3rciful/flowbot/core/engine"
)

// Flows is the part of the flow engine fed by inbound updates.
type Flows interface {
	HandleIncomingMessage(ctx context.Context, actor int64, text string) engine.Result
	HandleTopicMessage(ctx context.Context, admin, topicID int64, text string) engine.Result
	HandleIncomingCallback(ctx context.Context, actor int64, payload string) engine.Result
}
