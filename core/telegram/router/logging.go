package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/flowbot/core/engine"
	"github.com/m3rciful/flowbot/core/logger"
	tghelpers "github.com/m3rciful/flowbot/core/telegram/helpers"
	"github.com/m3rciful/flowbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// handleWithSummary runs fn under handlerName and logs one handler.handled line.
func handleWithSummary(c tele.Context, handlerName string, start time.Time, status, outcome string, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, status, outcome, err, extras...)
	return err
}

// logHandlerSummary logs the outcome of one update. Empty status and outcome are
// derived from err.
func logHandlerSummary(c tele.Context, handlerName string, start time.Time, status, outcome string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	if status == "" {
		status = okOrFail(err)
	}
	if outcome == "" {
		outcome = okOrFail(err)
	}
	msgs, kb := middleware.GetCounters(c)

	attrs := make([]slog.Attr, 0, 8+len(extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.Took(start).Milliseconds()),
	)
	if err != nil {
		attrs = append(attrs, logger.Err(err), slog.String("err_code", errorCode(err)))
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

// logResult logs the summary of a flow engine call.
func logResult(c tele.Context, handlerName string, start time.Time, res engine.Result, extras ...slog.Attr) {
	status := "ok"
	switch res.Outcome {
	case engine.OutcomeIgnored:
		status = "skip"
	case engine.OutcomeFailed:
		status = "fail"
	}
	if res.Reason != "" {
		extras = append(extras, slog.String("reason", res.Reason))
	}
	logHandlerSummary(c, handlerName, start, status, string(res.Outcome), res.Err, extras...)
}

func okOrFail(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// normalizeHandlerName turns a command or callback key into a log-friendly name.
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode is a stable upper-case code for dashboards: API_<status> for Bot API
// errors, FLOOD_WAIT for rate limits, else the error's own code or type name.
func errorCode(err error) string {
	var apiErr *tele.Error
	var flood tele.FloodError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &flood):
		return "FLOOD_WAIT"
	case errors.As(err, &apiErr):
		return "API_" + strconv.Itoa(apiErr.Code)
	}

	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
