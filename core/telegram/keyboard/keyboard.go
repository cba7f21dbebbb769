package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/flowbot/core/flow"
)

// MaxPayloadBytes is the callback_data limit of the Bot API.
const MaxPayloadBytes = flow.MaxPayloadBytes

// InlineBtn describes a button routed through the callback registry by Unique.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// FromFlow converts a flow keyboard into inline markup. Payloads are sent without a
// unique prefix so they come back verbatim and reach the flow engine.
func FromFlow(kb flow.Keyboard) *tele.ReplyMarkup {
	if len(kb) == 0 {
		return nil
	}
	inline := make([][]tele.InlineButton, 0, len(kb))
	for _, row := range kb {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, tele.InlineButton{Text: b.Text, Data: b.Payload})
		}
		inline = append(inline, r)
	}
	if len(inline) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

// Oversized lists payloads that exceed MaxPayloadBytes and would be rejected on send.
func Oversized(kb flow.Keyboard) []string {
	var out []string
	for _, row := range kb {
		for _, b := range row {
			if len(b.Payload) > MaxPayloadBytes {
				out = append(out, b.Payload)
			}
		}
	}
	return out
}

// InlineButtons builds an inline keyboard with one registry button per row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(buttons))
	for _, btn := range buttons {
		inline = append(inline, []tele.InlineButton{*markup.Data(btn.Text, btn.Unique, btn.Data).Inline()})
	}
	markup.InlineKeyboard = inline
	return markup
}

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
