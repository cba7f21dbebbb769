package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "/flow", Normalize("flow"))
	assert.Equal(t, "/flow", Normalize(" /flow "))
	assert.Equal(t, "/flow", Normalize("/flow@flowbot"))
	assert.Equal(t, "/start@example.com", Normalize("start@example.com"))
}

func TestAnswers(t *testing.T) {
	cmd := Command{Aliases: []string{"flows", "/menu"}}
	assert.True(t, cmd.Answers("/flow", "/flow"))
	assert.True(t, cmd.Answers("/flow", "/flow@flowbot"))
	assert.False(t, cmd.Answers("/flow", "flow@example.com"))
	assert.True(t, cmd.Answers("/flow", "flows"))
	assert.True(t, cmd.Answers("/flow", "menu"))
	assert.False(t, cmd.Answers("/flow", "/start"))
}

func TestListed(t *testing.T) {
	assert.True(t, Command{}.Listed(false))
	assert.False(t, Command{AdminOnly: true}.Listed(false))
	assert.True(t, Command{AdminOnly: true}.Listed(true))
	assert.False(t, Command{Hidden: true}.Listed(true))
}
