package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/logger"
)

// DefaultCallbackVariable receives the payload of a keyboard press on a message
// step without save_to.
const DefaultCallbackVariable = "lastCallback"

// HandleIncomingCallback routes a button payload. Resolution order: registered
// callback action, dynamic callback prefix, JSON action, keyboard of the current
// message step.
func (e *Engine) HandleIncomingCallback(ctx context.Context, actor int64, payload string) (res Result) {
	ctx = e.begin(ctx)
	defer e.guard(ctx, "incoming_callback", actor, &res)

	if action, ok := e.registry.CallbackAction(payload); ok {
		logger.Debug(ctx, component, "callback.action",
			slog.Int64("user_id", actor),
			slog.String("cb_key", payload),
			slog.String("op", string(action.Action)),
		)
		return e.runAction(ctx, actor, action, payload)
	}
	if res, handled := e.dynamicCallback(ctx, actor, payload); handled {
		return res
	}
	if res, handled := e.jsonCallback(ctx, actor, payload); handled {
		return res
	}
	return e.keyboardCallback(ctx, actor, payload)
}

func (e *Engine) runAction(ctx context.Context, actor int64, a flow.CallbackAction, payload string) Result {
	switch a.Action {
	case flow.ActionStartFlow:
		return e.startFlowFrom(ctx, actor, a.FlowName)
	case flow.ActionGoToStep:
		return e.goToRef(ctx, actor, a.StepID)
	case flow.ActionSetVariable:
		if !e.contexts.SetVariable(ctx, actor, a.Variable, a.Value) {
			return failed(ReasonStore, fmt.Errorf("variable %q not saved", a.Variable))
		}
	case flow.ActionHandler:
		fn, err := e.handlers.action(a.Handler)
		if err != nil {
			logger.Warn(ctx, component, "handler.not_found",
				slog.Int64("user_id", actor),
				slog.String("handler", a.Handler),
			)
			return ignored(ReasonHandlerNotFound)
		}
		if err := invoke(func() error { return fn(ctx, e.call(actor, flow.Step{}, payload)) }); err != nil {
			logger.Error(ctx, component, "handler.failed",
				slog.Int64("user_id", actor),
				slog.String("handler", a.Handler),
				logger.Err(err),
			)
		}
	default:
		logger.Warn(ctx, component, "callback.unknown_action",
			slog.Int64("user_id", actor),
			slog.String("op", string(a.Action)),
		)
		return failed(ReasonUnknownAction, fmt.Errorf("unknown callback action %q", a.Action))
	}
	if a.NextFlow == "" && a.NextStepID == "" {
		return okResult("")
	}
	return e.transition(ctx, actor, a.NextFlow, a.NextStepID)
}

func (e *Engine) dynamicCallback(ctx context.Context, actor int64, payload string) (Result, bool) {
	uc, f, _, ok := e.activeFlow(ctx, actor)
	var (
		match  flow.Step
		prefix string
	)
	if ok {
		for _, s := range f.Steps {
			if s.Type != flow.StepDynamicCallback {
				continue
			}
			p := s.DynamicPrefix()
			if strings.HasPrefix(payload, p+"_") && len(p) > len(prefix) {
				match, prefix = s, p
			}
		}
	}
	if prefix == "" {
		if strings.HasPrefix(payload, flow.DynamicCallbackSentinel) {
			logger.Warn(ctx, component, "callback.unresolved_dynamic",
				slog.Int64("user_id", actor),
				slog.String("payload", logger.SanitizeLimit(payload, 64)),
			)
			return ignored(ReasonUnresolved), true
		}
		return Result{}, false
	}

	value := strings.TrimPrefix(payload, prefix+"_")
	if !uc.Data.Set(match.SaveToVariable, value) {
		logger.Warn(ctx, component, "variable.invalid_path",
			slog.Int64("user_id", actor),
			slog.String("path", match.SaveToVariable),
		)
	}
	if !e.contexts.SaveContext(ctx, actor, uc) {
		return failed(ReasonStore, errors.New("selection not saved")), true
	}
	logger.Debug(ctx, component, "callback.dynamic",
		slog.Int64("user_id", actor),
		slog.String("step_id", match.ID),
		slog.String("cb_key", prefix),
	)
	return e.transition(ctx, actor, match.NextFlow, match.NextStepID), true
}

func (e *Engine) jsonCallback(ctx context.Context, actor int64, payload string) (Result, bool) {
	if !gjson.Valid(payload) {
		return Result{}, false
	}
	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return Result{}, false
	}
	str := func(paths ...string) string {
		for _, p := range paths {
			if v := doc.Get(p); v.Exists() {
				return v.String()
			}
		}
		return ""
	}
	val := func(paths ...string) any {
		for _, p := range paths {
			if v := doc.Get(p); v.Exists() {
				return v.Value()
			}
		}
		return nil
	}

	kind := flow.ActionKind(str("action", "a"))
	switch kind {
	case flow.ActionStartFlow, flow.ActionGoToStep, flow.ActionSetVariable, flow.ActionHandler:
		a := flow.CallbackAction{
			Action:     kind,
			FlowName:   str("flowName", "flow"),
			StepID:     str("stepId", "step"),
			Variable:   str("variable", "saveToVariable", "s"),
			Handler:    str("handler", "handlerName"),
			NextFlow:   str("nextFlow", "f"),
			NextStepID: str("nextStepId", "n"),
			Value:      val("value", "v"),
		}
		return e.runAction(ctx, actor, a, payload), true
	}

	// legacy button payload: save the value, then move on
	if save := str("saveToVariable", "s"); save != "" {
		if !e.contexts.SetVariable(ctx, actor, save, val("value", "v")) {
			return failed(ReasonStore, fmt.Errorf("variable %q not saved", save)), true
		}
	}
	nextFlow, nextStep := str("nextFlow", "f"), str("nextStepId", "n")
	if nextFlow == "" && nextStep == "" {
		return okResult(""), true
	}
	return e.transition(ctx, actor, nextFlow, nextStep), true
}

func (e *Engine) keyboardCallback(ctx context.Context, actor int64, payload string) Result {
	uc, f, res, ok := e.activeFlow(ctx, actor)
	if !ok {
		e.unresolved(ctx, actor, payload)
		if res.Outcome == OutcomeFailed {
			return res
		}
		return ignored(ReasonUnresolved)
	}
	step, ok := f.Step(uc.CurrentStep)
	if !ok || step.Type != flow.StepMessage || step.Keyboard == "" {
		e.unresolved(ctx, actor, payload)
		return ignored(ReasonUnresolved)
	}

	variable := step.SaveToVariable
	if variable == "" {
		variable = DefaultCallbackVariable
	}
	uc.Data.Set(variable, payload)
	if !e.contexts.SaveContext(ctx, actor, uc) {
		return failed(ReasonStore, errors.New("callback not saved"))
	}
	return e.transition(ctx, actor, step.NextFlow, step.NextStepID)
}

func (e *Engine) unresolved(ctx context.Context, actor int64, payload string) {
	logger.Debug(ctx, component, "callback.unresolved",
		slog.Int64("user_id", actor),
		slog.String("payload", logger.SanitizeLimit(payload, 64)),
	)
}
