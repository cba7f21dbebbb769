package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/flowbot/core/flow"
)

func TestFromFlowKeepsRowsAndRawPayloads(t *testing.T) {
	markup := FromFlow(flow.Keyboard{
		{{Text: "Yes", Payload: "yes"}, {Text: "No", Payload: "no"}},
		{},
		{{Text: "Pick", Payload: `{"v":"a"}`}},
	})
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "no", markup.InlineKeyboard[0][1].Data)
	assert.Empty(t, markup.InlineKeyboard[0][1].Unique)
	assert.Equal(t, `{"v":"a"}`, markup.InlineKeyboard[1][0].Data)
}

func TestFromFlowEmpty(t *testing.T) {
	assert.Nil(t, FromFlow(nil))
	assert.Nil(t, FromFlow(flow.Keyboard{{}}))
}

func TestOversized(t *testing.T) {
	long := strings.Repeat("x", MaxPayloadBytes+1)
	got := Oversized(flow.Keyboard{{{Payload: "ok"}, {Payload: long}}})
	assert.Equal(t, []string{long}, got)
}

func TestInlineButtonsOnePerRow(t *testing.T) {
	markup := InlineButtons([]InlineBtn{
		{Text: "a", Unique: "flow", Data: "a"},
		{Text: "b", Unique: "flow", Data: "b"},
	})
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, "flow", markup.InlineKeyboard[1][0].Unique)
	assert.Equal(t, "b", markup.InlineKeyboard[1][0].Data)
}
