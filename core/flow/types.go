// Package flow defines declarative conversation flows and the immutable registry
// the interpreter reads them from.
package flow

import "time"

// StepType tags the behavior of a Step.
type StepType string

const (
	StepMessage           StepType = "message"
	StepWaitInput         StepType = "wait_input"
	StepCallback          StepType = "callback"
	StepCondition         StepType = "condition"
	StepHandler           StepType = "handler"
	StepFlow              StepType = "flow"
	StepDelay             StepType = "delay"
	StepForwardingControl StepType = "forwarding_control"
	StepDynamic           StepType = "dynamic"
	StepDynamicCallback   StepType = "dynamic_callback"
)

// Known reports whether t is a supported step type.
func (t StepType) Known() bool {
	switch t {
	case StepMessage, StepWaitInput, StepCallback, StepCondition, StepHandler,
		StepFlow, StepDelay, StepForwardingControl, StepDynamic, StepDynamicCallback:
		return true
	}
	return false
}

// Forwarding actions of a forwarding_control step.
const (
	ForwardingEnable  = "enable"
	ForwardingDisable = "disable"
)

// Validation types understood by wait_input steps. Unknown types accept any input.
const (
	ValidateText   = "text"
	ValidateNumber = "number"
	ValidateEmail  = "email"
	ValidateDate   = "date"
)

// Validation describes how a wait_input answer is checked.
type Validation struct {
	Type         string `yaml:"type" json:"type"`
	ErrorMessage string `yaml:"error_message" json:"errorMessage,omitempty"`
}

// Button is one option of a callback step. Its transition is embedded in the payload.
type Button struct {
	Text           string `yaml:"text"`
	Value          string `yaml:"value"`
	SaveToVariable string `yaml:"save_to"`
	NextStepID     string `yaml:"next_step"`
	NextFlow       string `yaml:"next_flow"`
}

// Step is one unit of flow behavior. Which fields apply depends on Type.
type Step struct {
	ID   string   `yaml:"id"`
	Type StepType `yaml:"type"`

	Text           string      `yaml:"text"`
	Keyboard       string      `yaml:"keyboard"`
	SaveToVariable string      `yaml:"save_to"`
	Validation     *Validation `yaml:"validation"`
	Buttons        []Button    `yaml:"buttons"`

	Condition string `yaml:"condition"`
	TrueStep  string `yaml:"true_step"`
	TrueFlow  string `yaml:"true_flow"`
	FalseStep string `yaml:"false_step"`
	FalseFlow string `yaml:"false_flow"`

	Handler        string        `yaml:"handler"`
	Flow           string        `yaml:"flow"`
	Duration       time.Duration `yaml:"duration"`
	Action         string        `yaml:"action"`
	CallbackPrefix string        `yaml:"callback_prefix"`

	NextStepID string `yaml:"next_step"`
	NextFlow   string `yaml:"next_flow"`
}

// DynamicPrefix returns the callback prefix of a dynamic_callback step.
func (s Step) DynamicPrefix() string {
	if s.CallbackPrefix != "" {
		return s.CallbackPrefix
	}
	return DynamicCallbackSentinel + s.ID
}

// DynamicCallbackSentinel starts every default dynamic callback prefix.
const DynamicCallbackSentinel = "dc_"

// Flow is a named ordered list of steps.
type Flow struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Len returns the number of steps.
func (f *Flow) Len() int {
	return len(f.Steps)
}

// Step returns the step at index i.
func (f *Flow) Step(i int) (Step, bool) {
	if i < 0 || i >= len(f.Steps) {
		return Step{}, false
	}
	return f.Steps[i], true
}

// IndexOf returns the index of the step with the given id.
func (f *Flow) IndexOf(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i, s := range f.Steps {
		if s.ID == id {
			return i, true
		}
	}
	return 0, false
}

// KeyButton is one inline button of a keyboard layout.
type KeyButton struct {
	Text    string `yaml:"text"`
	Payload string `yaml:"payload"`
}

// Keyboard is an ordered list of button rows.
type Keyboard [][]KeyButton

// ActionKind names a callback action.
type ActionKind string

const (
	ActionStartFlow   ActionKind = "start_flow"
	ActionGoToStep    ActionKind = "go_to_step"
	ActionSetVariable ActionKind = "set_variable"
	ActionHandler     ActionKind = "handler"
)

// CallbackAction is the effect bound to a button payload.
type CallbackAction struct {
	Action     ActionKind `yaml:"action" json:"action"`
	FlowName   string     `yaml:"flow" json:"flowName,omitempty"`
	StepID     string     `yaml:"step" json:"stepId,omitempty"`
	Variable   string     `yaml:"variable" json:"variable,omitempty"`
	Value      any        `yaml:"value" json:"value,omitempty"`
	Handler    string     `yaml:"handler" json:"handler,omitempty"`
	NextFlow   string     `yaml:"next_flow" json:"nextFlow,omitempty"`
	NextStepID string     `yaml:"next_step" json:"nextStepId,omitempty"`
}
