package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/flowbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type menuRecorder struct {
	calls [][]interface{}
}

func (m *menuRecorder) SetCommands(opts ...interface{}) error {
	m.calls = append(m.calls, opts)
	return nil
}

func testRegistry() *Registry {
	reg := NewRegistry()
	noop := func(tele.Context) error { return nil }
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start"})
	reg.RegisterCommand("/flow", commands.Command{Handler: noop, Description: "Run a flow", AdminOnly: true, Aliases: []string{"flows"}})
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "Debug", Hidden: true})
	return reg
}

func TestLookupCommand(t *testing.T) {
	reg := testRegistry()

	key, _, ok := reg.LookupCommand("flows")
	require.True(t, ok)
	assert.Equal(t, "/flow", key)

	key, _, ok = reg.LookupCommand("/start@flowbot")
	require.True(t, ok)
	assert.Equal(t, "/start", key)

	_, _, ok = reg.LookupCommand("/nope")
	assert.False(t, ok)
}

func TestInitBotCommandsScopesAdminMenu(t *testing.T) {
	reg := testRegistry()
	bot := &menuRecorder{}

	InitBotCommands(bot, reg, -100)

	require.Len(t, bot.calls, 2)
	assert.Equal(t, []interface{}{[]tele.Command{{Text: "start", Description: "Start"}}}, bot.calls[0])
	assert.Equal(t, []interface{}{
		[]tele.Command{{Text: "flow", Description: "Run a flow"}, {Text: "start", Description: "Start"}},
		tele.CommandScope{Type: tele.CommandScopeChat, ChatID: -100},
	}, bot.calls[1])

	bot = &menuRecorder{}
	InitBotCommands(bot, reg, 0)
	assert.Len(t, bot.calls, 1)
}
