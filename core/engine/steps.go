package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/logger"
	"github.com/m3rciful/flowbot/core/state"
)

// DefaultChoicePrompt is sent with callback menus that have no text of their own.
const DefaultChoicePrompt = "Choose an option:"

// executeStep runs the step the actor is positioned at.
func (e *Engine) executeStep(ctx context.Context, actor int64) Result {
	if !e.hop(ctx) {
		logger.Error(ctx, component, "step.hop_limit",
			slog.Int64("user_id", actor),
			slog.Int("hops", e.maxHops),
		)
		return failed(ReasonHopLimit, fmt.Errorf("more than %d steps in one event", e.maxHops))
	}

	uc, f, res, ok := e.activeFlow(ctx, actor)
	if !ok {
		return res
	}
	index := uc.CurrentStep
	step, ok := f.Step(index)
	if !ok {
		logger.Error(ctx, component, "step.out_of_range",
			slog.Int64("user_id", actor),
			slog.String("flow", f.Name),
			slog.Int("index", index),
		)
		return failed(ReasonStepNotFound, fmt.Errorf("step %d out of range in flow %q", index, f.Name))
	}

	uc.AppendHistory(f.Name, index, e.contexts.Now(), e.contexts.HistoryLimit())
	if !e.contexts.SaveContext(ctx, actor, uc) {
		return failed(ReasonStore, errors.New("context not saved"))
	}

	ctx = logger.WithFlow(ctx, f.Name, index)
	dest := DestinationFor(actor, uc)
	logger.Debug(ctx, component, "step.execute",
		slog.Int64("user_id", actor),
		slog.String("step_type", string(step.Type)),
		slog.String("step_id", step.ID),
		slog.String("dest", dest.String()),
	)

	switch step.Type {
	case flow.StepMessage:
		return e.runMessage(ctx, actor, dest, step)
	case flow.StepWaitInput:
		return e.runWaitInput(ctx, actor, uc, dest, step)
	case flow.StepCallback:
		return e.runCallback(ctx, dest, step)
	case flow.StepCondition:
		return e.runCondition(ctx, actor, uc, step)
	case flow.StepHandler:
		return e.runHandler(ctx, actor, f.Name, index, step)
	case flow.StepFlow:
		return e.startFlowFrom(ctx, actor, step.Flow)
	case flow.StepForwardingControl:
		uc.MessageForwardingEnabled = step.Action == flow.ForwardingEnable
		if !e.contexts.SaveContext(ctx, actor, uc) {
			return failed(ReasonStore, errors.New("context not saved"))
		}
		return e.transition(ctx, actor, step.NextFlow, step.NextStepID)
	case flow.StepDelay:
		parent := ctx
		e.scheduler.After(step.Duration, func() {
			e.resume(parent, actor, f.Name, index, step)
		})
		return okResult("delayed")
	case flow.StepDynamic:
		return e.runDynamic(ctx, actor, dest, step)
	case flow.StepDynamicCallback:
		return e.runDynamicCallback(ctx, actor, dest, step)
	default:
		logger.Error(ctx, component, "step.unknown_type",
			slog.Int64("user_id", actor),
			slog.String("step_type", string(step.Type)),
		)
		return failed(ReasonStepNotFound, fmt.Errorf("unknown step type %q", step.Type))
	}
}

func (e *Engine) send(ctx context.Context, dest Destination, text string, kb flow.Keyboard) Result {
	if err := dest.Send(ctx, e.transport, text, kb); err != nil {
		logger.Error(ctx, component, "send.failed",
			slog.String("dest", dest.String()),
			logger.Err(err),
		)
		return failed(ReasonTransport, err)
	}
	return okResult("")
}

func (e *Engine) keyboard(ctx context.Context, name string) flow.Keyboard {
	if name == "" {
		return nil
	}
	kb, ok := e.registry.Keyboard(name)
	if !ok {
		logger.Warn(ctx, component, "keyboard.not_found",
			slog.String("kb", name),
		)
		return nil
	}
	return kb
}

func (e *Engine) runMessage(ctx context.Context, actor int64, dest Destination, step flow.Step) Result {
	kb := e.keyboard(ctx, step.Keyboard)
	if res := e.send(ctx, dest, step.Text, kb); !res.OK() {
		return res
	}
	if len(kb) > 0 {
		return okResult(ReasonAwaitingChoice)
	}
	return e.transition(ctx, actor, step.NextFlow, step.NextStepID)
}

func (e *Engine) runWaitInput(ctx context.Context, actor int64, uc *state.UserContext, dest Destination, step flow.Step) Result {
	if res := e.send(ctx, dest, step.Text, e.keyboard(ctx, step.Keyboard)); !res.OK() {
		return res
	}
	armWaitState(uc, WaitState{
		StepID:         step.ID,
		SaveToVariable: step.SaveToVariable,
		Validation:     step.Validation,
		NextStepID:     step.NextStepID,
		NextFlow:       step.NextFlow,
	})
	if !e.contexts.SaveContext(ctx, actor, uc) {
		return failed(ReasonStore, errors.New("wait-state not saved"))
	}
	return okResult(ReasonAwaitingInput)
}

func (e *Engine) runCallback(ctx context.Context, dest Destination, step flow.Step) Result {
	kb := make(flow.Keyboard, 0, len(step.Buttons))
	for _, b := range step.Buttons {
		payload, err := b.Payload()
		if err != nil {
			return failed(ReasonTransport, err)
		}
		kb = append(kb, []flow.KeyButton{{Text: b.Text, Payload: payload}})
	}
	text := step.Text
	if text == "" {
		text = DefaultChoicePrompt
	}
	if res := e.send(ctx, dest, text, kb); !res.OK() {
		return res
	}
	return okResult(ReasonAwaitingChoice)
}

func (e *Engine) runCondition(ctx context.Context, actor int64, uc *state.UserContext, step flow.Step) Result {
	ok, err := e.conditions.Eval(step.Condition, uc.Data.Snapshot())
	if err != nil {
		logger.Warn(ctx, component, "condition.failed",
			slog.Int64("user_id", actor),
			slog.String("condition", logger.SanitizeLimit(step.Condition, 256)),
			logger.Err(err),
		)
	}
	logger.Debug(ctx, component, "condition.eval",
		slog.Int64("user_id", actor),
		slog.Bool("result", ok),
	)
	if ok {
		return e.transition(ctx, actor, step.TrueFlow, step.TrueStep)
	}
	return e.transition(ctx, actor, step.FalseFlow, step.FalseStep)
}

func (e *Engine) call(actor int64, step flow.Step, payload string) Call {
	return Call{
		ActorID:  actor,
		Contexts: e.contexts,
		Engine:   e,
		Payload:  payload,
		Step:     step,
	}
}

func (e *Engine) runHandler(ctx context.Context, actor int64, flowName string, index int, step flow.Step) Result {
	fn, err := e.handlers.action(step.Handler)
	if err != nil {
		logger.Warn(ctx, component, "handler.not_found",
			slog.Int64("user_id", actor),
			slog.String("handler", step.Handler),
		)
		return ignored(ReasonHandlerNotFound)
	}

	start := time.Now()
	err = invoke(func() error { return fn(ctx, e.call(actor, step, "")) })
	if err != nil {
		logger.Error(ctx, component, "handler.failed",
			slog.Int64("user_id", actor),
			slog.String("handler", step.Handler),
			since(start),
			logger.Err(err),
		)
	} else {
		logger.Debug(ctx, component, "handler.done",
			slog.Int64("user_id", actor),
			slog.String("handler", step.Handler),
			since(start),
		)
	}

	if step.NextStepID == "" && step.NextFlow == "" {
		return okResult("")
	}
	// the handler may already have moved the actor
	uc, ok := e.contexts.GetContext(ctx, actor)
	if !ok || uc.CurrentFlow != flowName || uc.CurrentStep != index {
		return okResult(ReasonStale)
	}
	return e.transition(ctx, actor, step.NextFlow, step.NextStepID)
}

func (e *Engine) runDynamic(ctx context.Context, actor int64, dest Destination, step flow.Step) Result {
	fn, err := e.handlers.contentFn(step.Handler)
	if err != nil {
		logger.Warn(ctx, component, "handler.not_found",
			slog.Int64("user_id", actor),
			slog.String("handler", step.Handler),
		)
		return ignored(ReasonHandlerNotFound)
	}

	var text string
	err = invoke(func() error {
		var callErr error
		text, callErr = fn(ctx, e.call(actor, step, ""))
		return callErr
	})
	switch {
	case err != nil:
		logger.Error(ctx, component, "handler.failed",
			slog.Int64("user_id", actor),
			slog.String("handler", step.Handler),
			logger.Err(err),
		)
	case text != "":
		if res := e.send(ctx, dest, text, e.keyboard(ctx, step.Keyboard)); !res.OK() {
			return res
		}
	}
	return e.transition(ctx, actor, step.NextFlow, step.NextStepID)
}

func (e *Engine) runDynamicCallback(ctx context.Context, actor int64, dest Destination, step flow.Step) Result {
	fn, err := e.handlers.menu(step.Handler)
	if err != nil {
		logger.Warn(ctx, component, "handler.not_found",
			slog.Int64("user_id", actor),
			slog.String("handler", step.Handler),
		)
		return ignored(ReasonHandlerNotFound)
	}

	var menu Menu
	err = invoke(func() error {
		var callErr error
		menu, callErr = fn(ctx, e.call(actor, step, ""))
		return callErr
	})
	if err != nil {
		logger.Error(ctx, component, "handler.failed",
			slog.Int64("user_id", actor),
			slog.String("handler", step.Handler),
			logger.Err(err),
		)
		return failed(ReasonHandlerFailed, err)
	}

	prefix := step.DynamicPrefix()
	kb := make(flow.Keyboard, 0, len(menu.Buttons))
	for _, b := range menu.Buttons {
		kb = append(kb, []flow.KeyButton{{Text: b.Text, Payload: prefix + "_" + b.Value}})
	}
	text := menu.Message
	if text == "" {
		text = DefaultChoicePrompt
	}
	if res := e.send(ctx, dest, text, kb); !res.OK() {
		return res
	}
	return okResult(ReasonAwaitingChoice)
}
