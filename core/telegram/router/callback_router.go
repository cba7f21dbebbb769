package router

import (
	"time"

	"github.com/m3rciful/flowbot/core/engine"
	tg "github.com/m3rciful/flowbot/core/telegram"
	"github.com/m3rciful/flowbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"
	"github.com/m3rciful/flowbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes callbacks. Buttons with a unique go
// to the registry; every other payload goes to the flow engine verbatim.
func CallbackRoute(reg *tg.Registry, flows Flows, opts CallbackOptions) tg.Route {
	notFound := func(c tele.Context) error {
		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		if fallback != nil {
			return fallback(c)
		}
		return nil
	}

	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		_ = c.Respond()

		key, payload := callbacks.ParseCallbackData(cb)
		if key != "" {
			name := "callback." + normalizeHandlerName(key)
			extras := []slog.Attr{slog.String("cb_key", key)}
			cbHandler, ok := reg.GetCallback(key)
			if !ok || cbHandler == nil {
				extras = append(extras, slog.String("reason", "not_found"))
				return handleWithSummary(c, name, start, "", "", func() error {
					return notFound(c)
				}, extras...)
			}
			return handleWithSummary(c, name, start, "", "", func() error {
				return cbHandler(c)
			}, extras...)
		}

		if flows == nil || c.Sender() == nil {
			return handleWithSummary(c, "callback.unknown", start, "", "", func() error {
				return notFound(c)
			})
		}
		res := flows.HandleIncomingCallback(tghelpers.BuildContext(c), c.Sender().ID, payload)
		logResult(c, "callback.flow", start, res)
		if res.Outcome == engine.OutcomeIgnored {
			return notFound(c)
		}
		return nil
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
