package router

import (
	"time"

	"github.com/m3rciful/flowbot/core/engine"
	tg "github.com/m3rciful/flowbot/core/telegram"
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"
	"github.com/m3rciful/flowbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls routing of text and document updates.
type TextOptions struct {
	// AdminChatID is the forum chat whose topic messages feed topic flows.
	AdminChatID int64
	// TopicFallback receives admin topic messages no topic flow consumed.
	TopicFallback   tele.HandlerFunc
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

func inAdminTopic(c tele.Context, adminChatID int64) bool {
	msg := c.Message()
	return adminChatID != 0 && msg != nil && msg.Chat != nil && msg.Chat.ID == adminChatID && msg.ThreadID != 0
}

// TextRoutes builds handlers for text and document routing. A message goes to the
// first of: a topic flow (admin topics), a command alias, an armed wait_input step,
// the registry text fallback, UnknownText.
func TextRoutes(flows Flows, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		ctx := tghelpers.BuildContext(c)

		if inAdminTopic(c, opts.AdminChatID) {
			if flows != nil {
				res := flows.HandleTopicMessage(ctx, sender.ID, int64(c.Message().ThreadID), text)
				if res.Outcome != engine.OutcomeIgnored {
					logResult(c, "flow.topic_input", start, res)
					return nil
				}
			}
			if opts.TopicFallback != nil {
				return handleWithSummary(c, "topic_fallback", start, "", "", func() error {
					return opts.TopicFallback(c)
				})
			}
			logHandlerSummary(c, "topic_fallback", start, "skip", "ok", nil)
			return nil
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if flows != nil && c.Chat() != nil && c.Chat().Type == tele.ChatPrivate {
			res := flows.HandleIncomingMessage(ctx, sender.ID, text)
			if res.Outcome != engine.OutcomeIgnored {
				logResult(c, "flow.input", start, res)
				return nil
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if inAdminTopic(c, opts.AdminChatID) && opts.TopicFallback != nil {
			return handleWithSummary(c, "topic_fallback", start, "", "", func() error {
				return opts.TopicFallback(c)
			})
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", "", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
		{
			Endpoint: tele.OnPhoto,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
