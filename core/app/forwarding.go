package app

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/flowbot/core/logger"
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"
)

// forwardToAdmin relays a private message no flow consumed into the sender's topic,
// provided forwarding is enabled for them.
func (a *App) forwardToAdmin(c tele.Context) error {
	user := c.Sender()
	msg := c.Message()
	chat := c.Chat()
	if user == nil || msg == nil || chat == nil || chat.Type != tele.ChatPrivate {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	uc, ok := a.contexts.GetOrCreateContext(ctx, user.ID)
	if !ok {
		return tghelpers.SendText(c, "Send /start to begin.")
	}
	if !uc.MessageForwardingEnabled {
		// a flow is running and waits for a button press
		return tghelpers.SendText(c, "Please use the buttons above.")
	}
	if a.relay == nil {
		return tghelpers.SendText(c, "Send /start to begin.")
	}
	if err := a.relay.ToAdmin(ctx, user, msg); err != nil {
		logger.Error(ctx, component, "relay.to_admin_failed",
			slog.Int64("user_id", user.ID),
			logger.Err(err),
		)
		return tghelpers.SendText(c, "Your message could not be delivered, please try again later.")
	}
	return nil
}

// forwardToUser relays an operator message written in a user topic to that user.
func (a *App) forwardToUser(c tele.Context) error {
	msg := c.Message()
	if a.relay == nil || msg == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	delivered, err := a.relay.ToUser(ctx, msg)
	if err != nil {
		logger.Error(ctx, component, "relay.to_user_failed",
			slog.Int("topic_id", msg.ThreadID),
			logger.Err(err),
		)
		return tghelpers.SendText(c, "Delivery failed.")
	}
	if !delivered {
		logger.Debug(ctx, component, "relay.topic_without_user",
			slog.Int("topic_id", msg.ThreadID),
		)
	}
	return nil
}
