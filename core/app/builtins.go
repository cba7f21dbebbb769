package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/m3rciful/flowbot/core/bootstrap"
	"github.com/m3rciful/flowbot/core/engine"
	"github.com/m3rciful/flowbot/core/state"
	"github.com/m3rciful/flowbot/core/store"
)

// Names of the built-in handlers flows may reference.
const (
	HandlerSummary = "summary"
	HandlerReset   = "reset_answers"
)

// Builtins registers the handlers every flowbot ships with.
func Builtins() bootstrap.Module {
	return bootstrap.ModuleFunc{
		ModuleName: "builtin",
		Fn: func(_ context.Context, h *engine.Handlers, _ store.Backend) error {
			h.Content(HandlerSummary, summary)
			h.Handle(HandlerReset, resetAnswers)
			return nil
		},
	}
}

// summary renders the collected answers, one "key: value" line each. Internal keys
// and the topic target are skipped.
func summary(ctx context.Context, call engine.Call) (string, error) {
	uc, ok := call.Contexts.GetContext(ctx, call.ActorID)
	if !ok {
		return "", fmt.Errorf("summary: no context for %d", call.ActorID)
	}
	var lines []string
	flatten("", uc.Data.Snapshot(), &lines)
	if len(lines) == 0 {
		return "Nothing collected yet.", nil
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

func flatten(prefix string, m map[string]any, out *[]string) {
	for k, v := range m {
		if strings.HasPrefix(k, "_") || (prefix == "" && k == state.TargetUserIDVar) {
			continue
		}
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		*out = append(*out, fmt.Sprintf("%s: %v", key, v))
	}
}

// resetAnswers drops every collected variable, keeping internal ones.
func resetAnswers(ctx context.Context, call engine.Call) error {
	ok := call.Contexts.UpdateContext(ctx, call.ActorID, func(uc *state.UserContext) {
		for k := range uc.Data.Snapshot() {
			if !strings.HasPrefix(k, "_") && k != state.TargetUserIDVar {
				uc.Data.Delete(k)
			}
		}
	})
	if !ok {
		return fmt.Errorf("reset answers: context of %d not updated", call.ActorID)
	}
	return nil
}
