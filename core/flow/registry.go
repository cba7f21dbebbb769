package flow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidDefinition wraps every definition problem found while building or validating a registry.
var ErrInvalidDefinition = errors.New("invalid flow definition")

// Definitions is the static configuration a Registry is built from.
type Definitions struct {
	Flows     map[string]*Flow          `yaml:"flows"`
	Keyboards map[string]Keyboard       `yaml:"keyboards"`
	Callbacks map[string]CallbackAction `yaml:"callbacks"`
}

// Registry holds flows, keyboard layouts and callback actions. It is never mutated
// after construction and is safe for concurrent readers.
type Registry struct {
	flows     map[string]*Flow
	keyboards map[string]Keyboard
	callbacks map[string]CallbackAction
}

// NewRegistry copies defs into an immutable registry.
func NewRegistry(defs Definitions) (*Registry, error) {
	r := &Registry{
		flows:     make(map[string]*Flow, len(defs.Flows)),
		keyboards: make(map[string]Keyboard, len(defs.Keyboards)),
		callbacks: make(map[string]CallbackAction, len(defs.Callbacks)),
	}
	for name, f := range defs.Flows {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: empty flow name", ErrInvalidDefinition)
		}
		if f == nil {
			f = &Flow{}
		}
		clone := f.clone()
		clone.Name = name
		r.flows[name] = clone
	}
	for name, kb := range defs.Keyboards {
		rows := make(Keyboard, len(kb))
		for i, row := range kb {
			rows[i] = append([]KeyButton(nil), row...)
		}
		r.keyboards[name] = rows
	}
	for payload, action := range defs.Callbacks {
		r.callbacks[payload] = action
	}
	return r, nil
}

// Flow returns a copy of the flow registered under name; changes to it do not
// reach the registry.
func (r *Registry) Flow(name string) (*Flow, bool) {
	f, ok := r.flows[name]
	if !ok {
		return nil, false
	}
	return f.clone(), true
}

func (f *Flow) clone() *Flow {
	out := &Flow{
		Name:        f.Name,
		Description: f.Description,
		Steps:       append([]Step(nil), f.Steps...),
	}
	for i := range out.Steps {
		out.Steps[i].Buttons = append([]Button(nil), out.Steps[i].Buttons...)
		if v := out.Steps[i].Validation; v != nil {
			cp := *v
			out.Steps[i].Validation = &cp
		}
	}
	return out
}

// Keyboard returns a copy of the named layout.
func (r *Registry) Keyboard(name string) (Keyboard, bool) {
	kb, ok := r.keyboards[name]
	if !ok {
		return nil, false
	}
	out := make(Keyboard, len(kb))
	for i, row := range kb {
		out[i] = append([]KeyButton(nil), row...)
	}
	return out, true
}

// CallbackAction returns the action registered for an exact payload.
func (r *Registry) CallbackAction(payload string) (CallbackAction, bool) {
	a, ok := r.callbacks[payload]
	return a, ok
}

// FlowNames returns the registered flow names in lexical order.
func (r *Registry) FlowNames() []string {
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
