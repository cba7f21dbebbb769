package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/flowbot/core/logger"
)

// HandleIncomingMessage feeds a freeform message to an armed wait-state. Without one
// the message is ignored and left to the caller.
func (e *Engine) HandleIncomingMessage(ctx context.Context, actor int64, text string) (res Result) {
	ctx = e.begin(ctx)
	defer e.guard(ctx, "incoming_message", actor, &res)
	return e.answer(ctx, actor, nil, text)
}

// HandleTopicMessage feeds a message an admin wrote in forum topic topicID. It only
// applies while the admin runs a topic flow in that same topic.
func (e *Engine) HandleTopicMessage(ctx context.Context, admin, topicID int64, text string) (res Result) {
	ctx = e.begin(ctx)
	defer e.guard(ctx, "topic_message", admin, &res)
	return e.answer(ctx, admin, &topicID, text)
}

// answer completes the armed wait-state. A non-nil topic restricts it to a topic flow
// running in that topic.
func (e *Engine) answer(ctx context.Context, actor int64, topic *int64, text string) Result {
	uc, ok := e.contexts.GetContext(ctx, actor)
	if !ok {
		return ignored(ReasonUnknownActor)
	}
	if topic != nil && (!uc.FlowInTopic || uc.TopicID == nil || *uc.TopicID != *topic) {
		return ignored(ReasonNotInTopic)
	}
	ws, ok := ReadWaitState(uc)
	if !ok {
		return ignored(ReasonNoWaitState)
	}
	ctx = logger.WithFlow(ctx, uc.CurrentFlow, uc.CurrentStep)

	if !ValidateInput(ws.Validation, text) {
		vt := ""
		if ws.Validation != nil {
			vt = ws.Validation.Type
		}
		logger.Info(ctx, component, "input.invalid",
			slog.Int64("user_id", actor),
			slog.String("validation", vt),
		)
		if res := e.send(ctx, DestinationFor(actor, uc), validationMessage(ws.Validation), nil); !res.OK() {
			return res
		}
		return okResult(ReasonInvalidInput)
	}

	if !uc.Data.Set(ws.SaveToVariable, text) {
		logger.Warn(ctx, component, "variable.invalid_path",
			slog.Int64("user_id", actor),
			slog.String("path", ws.SaveToVariable),
		)
	}
	clearWaitState(uc)
	if !e.contexts.SaveContext(ctx, actor, uc) {
		return failed(ReasonStore, errors.New("answer not saved"))
	}
	logger.Debug(ctx, component, "input.accepted",
		slog.Int64("user_id", actor),
		slog.String("step_id", ws.StepID),
	)
	return e.transition(ctx, actor, ws.NextFlow, ws.NextStepID)
}
