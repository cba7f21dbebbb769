package middleware

import (
	"strconv"
	"time"

	"github.com/m3rciful/flowbot/core/logger"
	"github.com/m3rciful/flowbot/core/store"
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"
	"github.com/patrickmn/go-cache"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// IdentityOptions tunes the identity middleware.
type IdentityOptions struct {
	// Remember skips EnsureUser for a sender seen within this window.
	Remember time.Duration
}

// Identity registers every sender with the user store so the flow engine can
// resolve them. Store failures are logged and the update continues.
func Identity(users store.Users, opts IdentityOptions) tele.MiddlewareFunc {
	if opts.Remember <= 0 {
		opts.Remember = 10 * time.Minute
	}
	known := cache.New(opts.Remember, 2*opts.Remember)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || user.IsBot {
				return next(c)
			}
			key := strconv.FormatInt(user.ID, 10) + "|" + user.Username
			if _, ok := known.Get(key); ok {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			id, err := users.EnsureUser(ctx, user.ID, user.Username)
			if err != nil {
				logger.Error(ctx, "tg", "identity.ensure_failed",
					slog.Int64("user_id", user.ID),
					logger.Err(err),
				)
				return next(c)
			}
			known.SetDefault(key, id)
			return next(c)
		}
	}
}
