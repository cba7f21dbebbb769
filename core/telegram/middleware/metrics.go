package middleware

import (
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// countingContext reports successful replies made through tele.Context to the
// update's Replies. Flow messages are counted by the transport instead.
type countingContext struct{ tele.Context }

func (c countingContext) count(err error, opts []interface{}) error {
	if err == nil {
		tghelpers.CountReply(tghelpers.BuildContext(c.Context), withMarkup(opts))
	}
	return err
}

func withMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Reply(what, opts...), opts)
}

// Edit counts as a reply: the user sees a changed message.
func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.EditOrSend(what, opts...), opts)
}

func (c countingContext) EditOrReply(what interface{}, opts ...interface{}) error {
	return c.count(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware makes replies sent through the handler's context count
// towards the update's message tally.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tghelpers.BuildContext(c)
		return next(countingContext{Context: c})
	}
}

// GetCounters returns how many messages the update produced and whether any had a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	return tghelpers.RepliesFrom(tghelpers.BuildContext(c)).Snapshot()
}
