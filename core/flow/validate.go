package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/flowbot/core/flow/condition"
)

// Problem is one definition defect reported by Validate.
type Problem struct {
	Flow string
	Step int
	Msg  string
}

func (p Problem) Error() string {
	if p.Flow == "" {
		return p.Msg
	}
	if p.Step < 0 {
		return fmt.Sprintf("flow %q: %s", p.Flow, p.Msg)
	}
	return fmt.Sprintf("flow %q step %d: %s", p.Flow, p.Step, p.Msg)
}

// Validate checks every definition and returns all problems joined, each wrapping
// ErrInvalidDefinition. Handler names are checked only when known is non-nil.
func (r *Registry) Validate(known func(handler string) bool) error {
	var errs []error
	add := func(flow string, step int, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidDefinition, Problem{Flow: flow, Step: step, Msg: fmt.Sprintf(format, args...)}))
	}

	for _, name := range r.FlowNames() {
		f := r.flows[name]
		if len(f.Steps) == 0 {
			add(name, -1, "has no steps")
		}
		seen := make(map[string]int, len(f.Steps))
		for i, s := range f.Steps {
			if s.ID != "" {
				if prev, dup := seen[s.ID]; dup {
					add(name, i, "duplicate step id %q (first at %d)", s.ID, prev)
				}
				seen[s.ID] = i
			}
			for _, msg := range r.checkStep(f, s, known) {
				add(name, i, "%s", msg)
			}
		}
	}

	for payload, a := range r.callbacks {
		if len(payload) > MaxPayloadBytes {
			add("", -1, "callback %q: payload exceeds %d bytes", payload, MaxPayloadBytes)
		}
		for _, msg := range r.checkAction(a, known) {
			add("", -1, "callback %q: %s", payload, msg)
		}
	}
	for name, kb := range r.keyboards {
		for _, row := range kb {
			for _, b := range row {
				if strings.TrimSpace(b.Payload) == "" {
					add("", -1, "keyboard %q: button %q has empty payload", name, b.Text)
				} else if len(b.Payload) > MaxPayloadBytes {
					add("", -1, "keyboard %q: button %q payload exceeds %d bytes", name, b.Text, MaxPayloadBytes)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) checkStep(f *Flow, s Step, known func(string) bool) []string {
	var out []string
	need := func(ok bool, field string) {
		if !ok {
			out = append(out, fmt.Sprintf("%s step requires %s", s.Type, field))
		}
	}
	stepRef := func(id, field string) {
		if id == "" {
			return
		}
		if _, ok := f.IndexOf(id); !ok {
			out = append(out, fmt.Sprintf("%s references unknown step %q", field, id))
		}
	}
	flowRef := func(name, field string) {
		if name == "" {
			return
		}
		if _, ok := r.flows[name]; !ok {
			out = append(out, fmt.Sprintf("%s references unknown flow %q", field, name))
		}
	}
	handlerRef := func(name string) {
		if name != "" && known != nil && !known(name) {
			out = append(out, fmt.Sprintf("handler %q is not registered", name))
		}
	}

	if !s.Type.Known() {
		return []string{fmt.Sprintf("unknown step type %q", s.Type)}
	}
	stepRef(s.NextStepID, "next_step")
	flowRef(s.NextFlow, "next_flow")

	switch s.Type {
	case StepMessage:
		need(s.Text != "", "text")
		if s.Keyboard != "" {
			if _, ok := r.keyboards[s.Keyboard]; !ok {
				out = append(out, fmt.Sprintf("keyboard %q is not defined", s.Keyboard))
			}
		}
	case StepWaitInput:
		need(s.Text != "", "text")
		need(s.SaveToVariable != "", "save_to")
	case StepCallback:
		need(len(s.Buttons) > 0, "buttons")
		for _, b := range s.Buttons {
			if b.Text == "" {
				out = append(out, "callback button requires text")
			}
			if _, err := b.Payload(); err != nil {
				out = append(out, err.Error())
			}
			stepRef(b.NextStepID, "button next_step")
			flowRef(b.NextFlow, "button next_flow")
		}
	case StepCondition:
		need(s.Condition != "", "condition")
		if s.Condition != "" {
			if _, err := condition.Compile(s.Condition); err != nil {
				out = append(out, fmt.Sprintf("condition %q does not compile: %v", s.Condition, err))
			}
		}
		stepRef(s.TrueStep, "true_step")
		stepRef(s.FalseStep, "false_step")
		flowRef(s.TrueFlow, "true_flow")
		flowRef(s.FalseFlow, "false_flow")
	case StepHandler, StepDynamic:
		need(s.Handler != "", "handler")
		handlerRef(s.Handler)
	case StepDynamicCallback:
		need(s.Handler != "", "handler")
		need(s.SaveToVariable != "", "save_to")
		need(s.ID != "" || s.CallbackPrefix != "", "id or callback_prefix")
		handlerRef(s.Handler)
	case StepFlow:
		need(s.Flow != "", "flow")
		flowRef(s.Flow, "flow")
	case StepForwardingControl:
		if s.Action != ForwardingEnable && s.Action != ForwardingDisable {
			out = append(out, fmt.Sprintf("forwarding action %q must be enable or disable", s.Action))
		}
	case StepDelay:
		need(s.Duration > 0, "positive duration")
	}
	return out
}

func (r *Registry) checkAction(a CallbackAction, known func(string) bool) []string {
	var out []string
	switch a.Action {
	case ActionStartFlow:
		if _, ok := r.flows[a.FlowName]; !ok {
			out = append(out, fmt.Sprintf("start_flow references unknown flow %q", a.FlowName))
		}
	case ActionGoToStep:
		if a.StepID == "" {
			out = append(out, "go_to_step requires step")
		}
	case ActionSetVariable:
		if a.Variable == "" {
			out = append(out, "set_variable requires variable")
		}
	case ActionHandler:
		if a.Handler == "" {
			out = append(out, "handler action requires handler")
		} else if known != nil && !known(a.Handler) {
			out = append(out, fmt.Sprintf("handler %q is not registered", a.Handler))
		}
	default:
		out = append(out, fmt.Sprintf("unknown action %q", a.Action))
	}
	if a.NextFlow != "" {
		if _, ok := r.flows[a.NextFlow]; !ok {
			out = append(out, fmt.Sprintf("next_flow references unknown flow %q", a.NextFlow))
		}
	}
	return out
}
