package middleware

import (
	"strconv"
	"time"

	"github.com/m3rciful/flowbot/core/logger"
	"github.com/m3rciful/flowbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"
	"github.com/patrickmn/go-cache"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// recent keeps processed update IDs for a short while to avoid double logging.
var recent = cache.New(10*time.Second, time.Minute)

func alreadyLogged(updateID int) bool {
	return recent.Add(strconv.Itoa(updateID), struct{}{}, cache.DefaultExpiration) != nil
}

// LoggerMiddleware logs a single receipt line per update and sets rid.
// It deduplicates by update_id to prevent double logging when middleware is applied on multiple branches.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set("update_start", time.Now())
		ctx := tghelpers.BuildContext(c)
		rid := logger.RIDFrom(ctx)
		c.Set("rid", rid)

		upd := c.Update()
		user := c.Sender()
		chat := c.Chat()
		chatID, userID := logger.ChatIDFrom(ctx), logger.UserIDFrom(ctx)

		// Deduplicate update receipt logs
		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("rid", rid),
				slog.Int("update_id", upd.ID),
			}
			if chatID != 0 {
				attrs = append(attrs, slog.Int64("chat_id", chatID))
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", userID))
				if user != nil && user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
				if user != nil && user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
			}

			// Enrich by kind
			switch {
			case upd.Callback != nil:
				key, payload := callbacks.ParseCallbackData(upd.Callback)
				if key != "" {
					attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				}
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
			}
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
