package flow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	reg, err := LoadFile("testdata/flows.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"onboarding", "support"}, reg.FlowNames())

	f, ok := reg.Flow("onboarding")
	require.True(t, ok)
	assert.Equal(t, "onboarding", f.Name)
	require.Equal(t, 5, f.Len())

	ask, _ := f.Step(1)
	assert.Equal(t, StepWaitInput, ask.Type)
	require.NotNil(t, ask.Validation)
	assert.Equal(t, ValidateEmail, ask.Validation.Type)

	pause, _ := f.Step(3)
	assert.Equal(t, 2*time.Second, pause.Duration)

	idx, ok := f.IndexOf("done")
	require.True(t, ok)
	assert.Equal(t, 4, idx)
	_, ok = f.IndexOf("missing")
	assert.False(t, ok)
	_, ok = f.Step(5)
	assert.False(t, ok)

	kb, ok := reg.Keyboard("yes_no")
	require.True(t, ok)
	require.Len(t, kb, 1)
	assert.Equal(t, "no", kb[0][1].Payload)

	action, ok := reg.CallbackAction("remember_lang")
	require.True(t, ok)
	assert.Equal(t, ActionSetVariable, action.Action)
	assert.Equal(t, "en", action.Value)

	require.NoError(t, reg.Validate(func(name string) bool { return name == "list_topics" }))
}

func TestRegistryIsImmutable(t *testing.T) {
	defs := Definitions{
		Flows: map[string]*Flow{"a": {Steps: []Step{{ID: "s", Type: StepMessage, Text: "hi"}}}},
		Keyboards: map[string]Keyboard{
			"kb": {{{Text: "x", Payload: "x"}}},
		},
	}
	reg, err := NewRegistry(defs)
	require.NoError(t, err)

	defs.Flows["a"].Steps[0].Text = "changed"
	kb, _ := reg.Keyboard("kb")
	kb[0][0].Payload = "changed"

	f, _ := reg.Flow("a")
	assert.Equal(t, "hi", f.Steps[0].Text)
	kb2, _ := reg.Keyboard("kb")
	assert.Equal(t, "x", kb2[0][0].Payload)
}

func TestDynamicPrefix(t *testing.T) {
	assert.Equal(t, "dc_select", Step{ID: "select"}.DynamicPrefix())
	assert.Equal(t, "pick", Step{ID: "select", CallbackPrefix: "pick"}.DynamicPrefix())
}

func TestValidateReportsProblems(t *testing.T) {
	reg, err := NewRegistry(Definitions{
		Flows: map[string]*Flow{
			"broken": {Steps: []Step{
				{ID: "a", Type: "teleport"},
				{ID: "a", Type: StepMessage, Text: "hi", Keyboard: "nope", NextStepID: "ghost"},
				{Type: StepWaitInput, Text: "?"},
				{Type: StepFlow, Flow: "elsewhere"},
				{Type: StepForwardingControl, Action: "toggle"},
				{Type: StepHandler, Handler: "unknown"},
				{Type: StepCondition, Condition: "data.x ==="},
			}},
			"empty": {},
		},
		Callbacks: map[string]CallbackAction{
			"bad": {Action: "explode"},
		},
	})
	require.NoError(t, err)

	err = reg.Validate(func(string) bool { return false })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDefinition))

	msg := err.Error()
	for _, want := range []string{
		`unknown step type "teleport"`,
		`duplicate step id "a"`,
		`keyboard "nope" is not defined`,
		`next_step references unknown step "ghost"`,
		`wait_input step requires save_to`,
		`flow references unknown flow "elsewhere"`,
		`forwarding action "toggle"`,
		`handler "unknown" is not registered`,
		`condition "data.x ===" does not compile`,
		`flow "empty": has no steps`,
		`callback "bad": unknown action "explode"`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	_, err := Parse([]byte("flows: ["))
	assert.Error(t, err)

	_, err = NewRegistry(Definitions{Flows: map[string]*Flow{" ": {}}})
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestButtonPayload(t *testing.T) {
	p, err := Button{Text: "Yes", Value: "yes", SaveToVariable: "answer", NextStepID: "done"}.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"yes","s":"answer","n":"done"}`, p)

	_, err = Button{
		Text:           "Yearly",
		Value:          "premium_subscription_yearly",
		SaveToVariable: "profile.subscription.plan",
		NextStepID:     "confirm_subscription",
	}.Payload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `button "Yearly" payload is`)
}

func TestValidateRejectsOversizedPayloads(t *testing.T) {
	long := strings.Repeat("p", MaxPayloadBytes+1)
	reg, err := NewRegistry(Definitions{
		Flows: map[string]*Flow{
			"plans": {Steps: []Step{
				{ID: "choose", Type: StepCallback, Buttons: []Button{
					{Text: "Monthly", Value: "m", NextStepID: "confirm_subscription"},
					{
						Text:           "Yearly",
						Value:          "premium_subscription_yearly",
						SaveToVariable: "profile.subscription.plan",
						NextStepID:     "confirm_subscription",
					},
				}},
				{ID: "confirm_subscription", Type: StepMessage, Text: "ok"},
			}},
		},
		Keyboards: map[string]Keyboard{
			"wide": {{{Text: "Wide", Payload: long}}},
		},
		Callbacks: map[string]CallbackAction{
			long: {Action: ActionStartFlow, FlowName: "plans"},
		},
	})
	require.NoError(t, err)

	err = reg.Validate(nil)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `flow "plans" step 0: button "Yearly" payload is`)
	assert.NotContains(t, msg, `button "Monthly"`)
	assert.Contains(t, msg, `keyboard "wide": button "Wide" payload exceeds 64 bytes`)
	assert.Contains(t, msg, "payload exceeds 64 bytes")
	assert.Equal(t, 3, strings.Count(msg, "exceeds 64 bytes")+strings.Count(msg, "payload is"))
}

func TestFlowReturnsCopy(t *testing.T) {
	reg, err := NewRegistry(Definitions{Flows: map[string]*Flow{
		"a": {Steps: []Step{
			{ID: "ask", Type: StepWaitInput, Text: "age?", SaveToVariable: "age", Validation: &Validation{Type: ValidateNumber}},
			{ID: "pick", Type: StepCallback, Buttons: []Button{{Text: "Yes", Value: "yes"}}},
		}},
	}})
	require.NoError(t, err)

	f, ok := reg.Flow("a")
	require.True(t, ok)
	f.Steps[0].Text = "changed"
	f.Steps[0].Validation.Type = ValidateEmail
	f.Steps[1].Buttons[0].Value = "no"
	f.Steps = append(f.Steps[:0], Step{ID: "injected"})

	again, _ := reg.Flow("a")
	require.Equal(t, 2, again.Len())
	assert.Equal(t, "age?", again.Steps[0].Text)
	assert.Equal(t, ValidateNumber, again.Steps[0].Validation.Type)
	assert.Equal(t, "yes", again.Steps[1].Buttons[0].Value)

	_, ok = reg.Flow("missing")
	assert.False(t, ok)
}
