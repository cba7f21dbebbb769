package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/state"
)

// ErrHandlerNotFound is returned when a handler name is not registered with the expected kind.
var ErrHandlerNotFound = errors.New("handler not found")

// Call carries what a custom handler may use.
type Call struct {
	ActorID  int64
	Contexts *state.Manager
	Engine   *Engine
	// Payload is the callback payload for handlers invoked from a button press.
	Payload string
	// Step is the step that invoked the handler; zero for callback actions.
	Step flow.Step
}

// HandlerFunc performs side effects for handler steps and handler callback actions.
type HandlerFunc func(ctx context.Context, call Call) error

// ContentFunc computes the text of a dynamic step.
type ContentFunc func(ctx context.Context, call Call) (string, error)

// MenuButton is one choice offered by a dynamic callback step.
type MenuButton struct {
	Text  string
	Value string
}

// Menu is the message and choices of a dynamic callback step.
type Menu struct {
	Message string
	Buttons []MenuButton
}

// MenuFunc computes the menu of a dynamic callback step.
type MenuFunc func(ctx context.Context, call Call) (Menu, error)

// Handlers maps names to custom handlers. Register everything before serving events.
type Handlers struct {
	mu      sync.RWMutex
	actions map[string]HandlerFunc
	content map[string]ContentFunc
	menus   map[string]MenuFunc
}

// NewHandlers returns an empty registry.
func NewHandlers() *Handlers {
	return &Handlers{
		actions: make(map[string]HandlerFunc),
		content: make(map[string]ContentFunc),
		menus:   make(map[string]MenuFunc),
	}
}

// Handle registers an action handler.
func (h *Handlers) Handle(name string, fn HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions[name] = fn
}

// Content registers a dynamic text handler.
func (h *Handlers) Content(name string, fn ContentFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.content[name] = fn
}

// Menu registers a dynamic menu handler.
func (h *Handlers) Menu(name string, fn MenuFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.menus[name] = fn
}

// Has reports whether any handler kind is registered under name.
func (h *Handlers) Has(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, a := h.actions[name]
	_, c := h.content[name]
	_, m := h.menus[name]
	return a || c || m
}

// Names lists every registered name.
func (h *Handlers) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for n := range h.actions {
		seen[n] = struct{}{}
	}
	for n := range h.content {
		seen[n] = struct{}{}
	}
	for n := range h.menus {
		seen[n] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (h *Handlers) action(name string) (HandlerFunc, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, name)
	}
	return fn, nil
}

func (h *Handlers) contentFn(name string) (ContentFunc, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.content[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, name)
	}
	return fn, nil
}

func (h *Handlers) menu(name string) (MenuFunc, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.menus[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrHandlerNotFound, name)
	}
	return fn, nil
}

// invoke runs fn and turns a panic into an error.
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn()
}
