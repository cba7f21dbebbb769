package bootstrap

import (
	"context"
	"fmt"

	"github.com/m3rciful/flowbot/core/engine"
	"github.com/m3rciful/flowbot/core/store"
)

// Module contributes custom step handlers to the flow engine.
type Module interface {
	Name() string
	Register(ctx context.Context, handlers *engine.Handlers, backend store.Backend) error
}

// ModuleFunc adapts a bare function to the Module interface.
type ModuleFunc struct {
	ModuleName string
	Fn         func(ctx context.Context, handlers *engine.Handlers, backend store.Backend) error
}

// Name returns the module name used in errors.
func (m ModuleFunc) Name() string {
	return m.ModuleName
}

// Register executes the underlying function.
func (m ModuleFunc) Register(ctx context.Context, handlers *engine.Handlers, backend store.Backend) error {
	if m.Fn == nil {
		return nil
	}
	return m.Fn(ctx, handlers, backend)
}

// Modules groups handler modules registered at startup.
type Modules []Module

// Register runs every module in order and stops on the first failure.
func (ms Modules) Register(ctx context.Context, handlers *engine.Handlers, backend store.Backend) error {
	for _, m := range ms {
		if m == nil {
			continue
		}
		if err := m.Register(ctx, handlers, backend); err != nil {
			return fmt.Errorf("bootstrap: module %s: %w", m.Name(), err)
		}
	}
	return nil
}
