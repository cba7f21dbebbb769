package app

import (
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/flowbot/core/engine"
	"github.com/m3rciful/flowbot/core/logger"
	"github.com/m3rciful/flowbot/core/telegram/callbacks"
	"github.com/m3rciful/flowbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"
	"github.com/m3rciful/flowbot/core/telegram/keyboard"
	"github.com/m3rciful/flowbot/core/telegram/middleware"
)

// flowPickUnique routes the buttons of the /flow picker.
const flowPickUnique = "flow"

func (a *App) registerCommands() {
	a.registry.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start the conversation",
	})
	a.registry.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Stop the current flow",
	})
	a.registry.RegisterCommand("/flow", commands.Command{
		Handler:     a.handleFlow,
		Description: "Run a flow; inside a user topic it runs for that user",
		AdminOnly:   true,
		Aliases:     []string{"flows"},
	})
	_ = a.registry.RegisterCallback(flowPickUnique, a.handleFlowPick)
}

func (a *App) adminOptions() middleware.AdminOptions {
	return middleware.AdminOptions{
		AdminID:     a.cfg.Telegram.AdminID,
		AdminChatID: a.cfg.Flows.DefaultAdminChatID,
	}
}

func (a *App) reply(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, text)
	}
}

func (a *App) handleStart(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	name := a.cfg.Flows.StartFlow
	if name == "" {
		return tghelpers.SendText(c, "Hello! There is nothing to start yet.")
	}
	res := a.engine.StartFlow(tghelpers.BuildContext(c), user.ID, name)
	return a.replyFailure(c, res)
}

func (a *App) handleCancel(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	res := a.engine.CompleteFlow(tghelpers.BuildContext(c), user.ID)
	if res.Outcome == engine.OutcomeFailed {
		return a.replyFailure(c, res)
	}
	return tghelpers.SendText(c, "Cancelled.")
}

func (a *App) handleFlow(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return a.sendFlowPicker(c)
	}
	return a.runFlow(c, strings.TrimSpace(args[0]))
}

func (a *App) handleFlowPick(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || !a.adminOptions().IsAdmin(c) {
		return nil
	}
	_, name := callbacks.ParseCallbackData(cb)
	if name == "" {
		return nil
	}
	return a.runFlow(c, name)
}

func (a *App) sendFlowPicker(c tele.Context) error {
	names := a.engine.Registry().FlowNames()
	if len(names) == 0 {
		return tghelpers.SendText(c, "No flows are defined.")
	}
	buttons := make([]keyboard.InlineBtn, 0, len(names))
	for _, name := range names {
		buttons = append(buttons, keyboard.InlineBtn{Text: name, Unique: flowPickUnique, Data: name})
	}
	return tghelpers.SendText(c, "Pick a flow:", &tele.SendOptions{ReplyMarkup: keyboard.InlineButtons(buttons)})
}

// runFlow starts name for the operator. Inside a user's topic of the admin chat the
// flow is proxied into that topic and targets the topic's user.
func (a *App) runFlow(c tele.Context, name string) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	msg := c.Message()
	if cb := c.Callback(); cb != nil && cb.Message != nil {
		msg = cb.Message
	}
	if a.relay == nil || !a.relay.InAdminTopic(msg) {
		return a.replyFailure(c, a.engine.StartFlow(ctx, user.ID, name))
	}

	topicID := int64(msg.ThreadID)
	target, ok, err := a.relay.TopicUser(ctx, topicID)
	if err != nil {
		logger.Error(ctx, component, "flow.topic_lookup_failed",
			slog.Int64("topic_id", topicID),
			logger.Err(err),
		)
		return tghelpers.SendText(c, "Could not resolve the user of this topic.")
	}
	opts := engine.TopicOptions{}
	if ok {
		opts.TargetUserID = &target
	}
	chatID := a.relay.ChatID()
	opts.AdminChatID = &chatID

	// topic flows need an existing operator context
	if _, ok := a.contexts.GetOrCreateContext(ctx, user.ID); !ok {
		return tghelpers.SendText(c, "You are not registered yet, send /start first.")
	}
	return a.replyFailure(c, a.engine.StartTopicFlow(ctx, user.ID, topicID, name, opts))
}

// replyFailure tells the user about results they can act on.
func (a *App) replyFailure(c tele.Context, res engine.Result) error {
	switch res.Reason {
	case engine.ReasonFlowNotFound:
		return tghelpers.SendText(c, "Unknown flow.")
	case engine.ReasonUnknownActor:
		return tghelpers.SendText(c, "You are not registered yet, please try again.")
	case engine.ReasonEmptyFlow:
		return tghelpers.SendText(c, "This flow has no steps.")
	}
	if res.Outcome == engine.OutcomeFailed {
		return tghelpers.SendText(c, "Something went wrong, please try again later.")
	}
	return nil
}
