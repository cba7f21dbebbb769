package helpers

import (
	"sync/atomic"

	"github.com/m3rciful/flowbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	return currentDispatcher().Do(BuildContext(c), action, endpoint, run)
}

// SendText sends raw text (no parse mode) to the current recipient. Replies to a
// forum topic message stay in that topic.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	sendOpts := &tele.SendOptions{}
	if len(opts) > 0 && opts[0] != nil {
		sendOpts = opts[0]
	}
	if msg := c.Message(); msg != nil && msg.ThreadID != 0 && sendOpts.ThreadID == 0 {
		sendOpts.ThreadID = msg.ThreadID
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		return c.Send(text, sendOpts)
	})
}
