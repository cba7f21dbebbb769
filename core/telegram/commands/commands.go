// Package commands describes slash commands and how they appear in the bot menu.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command. AdminOnly commands are wrapped with the operator
// check and listed only in the admin chat menu; Hidden ones are never listed.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	// Aliases also match as bare words, so "flows" in a private chat runs /flow.
	Aliases []string
}

// Normalize returns name with a leading slash. A bot mention is stripped only from
// slash commands, so free text such as an email address never names a command.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "/") {
		return "/" + name
	}
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return name
}

// Answers reports whether text names the command registered under key or one of
// its aliases.
func (c Command) Answers(key, text string) bool {
	text = Normalize(text)
	if text == key {
		return true
	}
	for _, alias := range c.Aliases {
		if Normalize(alias) == text {
			return true
		}
	}
	return false
}

// Listed reports whether the command belongs in a menu; admin menus include
// AdminOnly commands.
func (c Command) Listed(admin bool) bool {
	if c.Hidden {
		return false
	}
	return admin || !c.AdminOnly
}
