package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines who counts as an operator.
type AdminOptions struct {
	AdminID int64
	// AdminChatID admits every member writing inside the admin forum chat.
	AdminChatID int64
	OnReject    tele.HandlerFunc
}

// IsAdmin reports whether the update comes from an operator.
func (o AdminOptions) IsAdmin(c tele.Context) bool {
	if o.AdminID == 0 && o.AdminChatID == 0 {
		return true
	}
	if u := c.Sender(); u != nil && o.AdminID != 0 && u.ID == o.AdminID {
		return true
	}
	if chat := c.Chat(); chat != nil && o.AdminChatID != 0 && chat.ID == o.AdminChatID {
		return true
	}
	return false
}

// AdminOnlyMiddleware lets only operators reach downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.IsAdmin(c) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
