package engine

import (
	"encoding/json"

	"github.com/m3rciful/flowbot/core/flow"
	"github.com/m3rciful/flowbot/core/state"
)

// WaitStatePath is the reserved variable holding the armed wait-state.
const WaitStatePath = "_waitState"

// WaitState marks that the next freeform message answers a wait_input step.
type WaitState struct {
	StepID         string           `json:"stepId"`
	SaveToVariable string           `json:"saveToVariable"`
	Validation     *flow.Validation `json:"validation,omitempty"`
	NextStepID     string           `json:"nextStepId,omitempty"`
	NextFlow       string           `json:"nextFlow,omitempty"`
}

// ReadWaitState returns the wait-state armed in uc.
func ReadWaitState(uc *state.UserContext) (WaitState, bool) {
	raw, ok := uc.Data.Get(WaitStatePath)
	if !ok {
		return WaitState{}, false
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return WaitState{}, false
	}
	var ws WaitState
	if err := json.Unmarshal(blob, &ws); err != nil || ws.SaveToVariable == "" {
		return WaitState{}, false
	}
	return ws, true
}

func armWaitState(uc *state.UserContext, ws WaitState) {
	uc.Data.Set(WaitStatePath, ws.fields())
}

// fields renders ws with the same keys and omissions as its JSON encoding.
func (ws WaitState) fields() map[string]any {
	m := map[string]any{
		"stepId":         ws.StepID,
		"saveToVariable": ws.SaveToVariable,
	}
	if v := ws.Validation; v != nil {
		vm := map[string]any{"type": v.Type}
		if v.ErrorMessage != "" {
			vm["errorMessage"] = v.ErrorMessage
		}
		m["validation"] = vm
	}
	if ws.NextStepID != "" {
		m["nextStepId"] = ws.NextStepID
	}
	if ws.NextFlow != "" {
		m["nextFlow"] = ws.NextFlow
	}
	return m
}

func clearWaitState(uc *state.UserContext) bool {
	return uc.Data.Delete(WaitStatePath)
}
